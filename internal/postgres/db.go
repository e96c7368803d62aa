package postgres

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	reconnectWindow = 5 * time.Second
	reconnectPause  = 500 * time.Millisecond
)

// ResolveDSN normalizes a connection URL for the pool: the legacy
// postgres:// prefix becomes postgresql://, and non-local hosts get
// sslmode=require unless the caller already chose one (managed Postgres
// refuses plaintext connections).
func ResolveDSN(raw string) string {
	dsn := strings.TrimSpace(raw)
	if strings.HasPrefix(dsn, "postgres://") {
		dsn = "postgresql://" + strings.TrimPrefix(dsn, "postgres://")
	}
	if !strings.Contains(dsn, "sslmode=") && !localDSN(dsn) {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "sslmode=require"
	}
	return dsn
}

func localDSN(dsn string) bool {
	return strings.Contains(dsn, "@localhost") || strings.Contains(dsn, "@127.0.0.1")
}

// SearchPath builds the SET search_path statement for a schema list.
// Identifiers are quoted so a weird schema name can't splice SQL.
func SearchPath(schemas []string) string {
	quoted := make([]string, 0, len(schemas))
	for _, s := range schemas {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		quoted = append(quoted, QuoteIdentifier(s))
	}
	if len(quoted) == 0 {
		quoted = append(quoted, "public")
	}
	return "SET search_path TO " + strings.Join(quoted, ", ")
}

func QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// Connect opens a bounded pool with pre-ping semantics and connection
// recycling. Every new physical connection gets the schema search path so
// unqualified table names resolve across the shop/users/clients/projects
// schemas.
func Connect(ctx context.Context, dsn string, schemas []string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(ResolveDSN(dsn))
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	searchPath := SearchPath(schemas)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, searchPath)
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres liveness probe: %w", err)
	}
	return pool, nil
}

// Manager owns the pool and can tear it down and rebuild it after a
// sustained failure. Request paths call Reconnect defensively, so it
// returns errors instead of panicking and callers degrade gracefully.
type Manager struct {
	dsn     string
	schemas []string

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewManager(ctx context.Context, dsn string, schemas []string) (*Manager, error) {
	pool, err := Connect(ctx, dsn, schemas)
	if err != nil {
		return nil, err
	}
	return &Manager{dsn: dsn, schemas: schemas, pool: pool}, nil
}

func (m *Manager) Pool() *pgxpool.Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool
}

// Healthy reports whether the current pool answers a ping.
func (m *Manager) Healthy(ctx context.Context) error {
	pool := m.Pool()
	if pool == nil {
		return fmt.Errorf("postgres: no pool")
	}
	return pool.Ping(ctx)
}

// Reconnect disposes the pool and opens a fresh one, verifying liveness
// with a bounded retry loop. With forceNew=false a live pool is kept.
func (m *Manager) Reconnect(ctx context.Context, forceNew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !forceNew && m.pool != nil {
		if err := m.pool.Ping(ctx); err == nil {
			return nil
		}
	}
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}

	deadline := time.Now().Add(reconnectWindow)
	var lastErr error
	for {
		pool, err := Connect(ctx, m.dsn, m.schemas)
		if err == nil {
			m.pool = pool
			log.Printf("postgres: pool rebuilt")
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectPause):
		}
	}
	return fmt.Errorf("postgres reconnect failed: %w", lastErr)
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}
