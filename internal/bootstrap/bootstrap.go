// Package bootstrap creates the Postgres schemas, tables and additive
// columns this service needs. Everything here is idempotent and safe to run
// on every process start; in production nothing is ever dropped.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/rozoom/shop-api/internal/postgres"
)

const opTimeout = 10 * time.Second

// Schemas is the registry of logical schema names, resolved once at startup
// so no SQL string ever embeds an ad hoc value.
type Schemas struct {
	Users    string
	Shop     string
	Clients  string
	Projects string
}

func (s Schemas) list() []string {
	return []string{s.Users, s.Shop, s.Clients, s.Projects}
}

type table struct {
	schema string
	name   string
	ddl    string // body between the parentheses of CREATE TABLE
	extra  []string
}

type column struct {
	schema string
	table  string
	name   string
	ddl    string
}

type Bootstrapper struct {
	db         *sql.DB
	schemas    Schemas
	production bool
}

// Open connects with the database/sql driver (lib/pq). The request path
// runs on pgx; DDL goes through this secondary driver so a broken pgx pool
// never blocks a repair run.
func Open(dsn string, schemas Schemas, production bool) (*Bootstrapper, error) {
	db, err := sql.Open("postgres", postgres.ResolveDSN(dsn))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	return &Bootstrapper{db: db, schemas: schemas, production: production}, nil
}

func (b *Bootstrapper) Close() error { return b.db.Close() }

// Run performs the full bootstrap: schemas, tables in dependency order,
// then additive column migrations. Table failures are logged per-table and
// do not abort the rest.
func (b *Bootstrapper) Run(ctx context.Context) error {
	for _, schema := range b.schemas.list() {
		if err := b.EnsureSchema(ctx, schema); err != nil {
			return fmt.Errorf("ensure schema %s: %w", schema, err)
		}
	}
	b.EnsureTables(ctx)
	b.EnsureColumns(ctx)
	return nil
}

func (b *Bootstrapper) EnsureSchema(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := b.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(name))
	return err
}

// EnsureTables creates every missing table, referenced tables first.
// Best-effort: a single bad table (usually a dependency violation from a
// half-migrated database) is logged and skipped.
func (b *Bootstrapper) EnsureTables(ctx context.Context) {
	for _, t := range b.tables() {
		if err := b.createTable(ctx, t); err != nil {
			log.Printf("bootstrap: table %s.%s: %v", t.schema, t.name, err)
		}
	}
}

func (b *Bootstrapper) createTable(ctx context.Context, t table) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", b.qualify(t.schema, t.name), t.ddl)
	if _, err := b.db.ExecContext(ctx, stmt); err != nil {
		return err
	}
	for _, extra := range t.extra {
		if _, err := b.db.ExecContext(ctx, extra); err != nil {
			return err
		}
	}
	return nil
}

// EnsureColumn adds a column only when an information_schema lookup says it
// is absent, so repeated startups are no-ops even on Postgres versions
// without ADD COLUMN IF NOT EXISTS.
func (b *Bootstrapper) EnsureColumn(ctx context.Context, schema, tbl, col, ddl string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	exists, err := b.columnExists(ctx, schema, tbl, col)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		b.qualify(schema, tbl), pq.QuoteIdentifier(col), ddl)
	_, err = b.db.ExecContext(ctx, stmt)
	return err
}

func (b *Bootstrapper) EnsureColumns(ctx context.Context) {
	for _, c := range b.columns() {
		if err := b.EnsureColumn(ctx, c.schema, c.table, c.name, c.ddl); err != nil {
			log.Printf("bootstrap: column %s.%s.%s: %v", c.schema, c.table, c.name, err)
		}
	}
}

func (b *Bootstrapper) columnExists(ctx context.Context, schema, tbl, col string) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`,
		schema, tbl, col).Scan(&n)
	return n > 0, err
}

// MissingColumns reports schema drift for the health endpoint: required
// columns the running database does not have.
func (b *Bootstrapper) MissingColumns(ctx context.Context) ([]string, error) {
	var missing []string
	for _, c := range b.columns() {
		exists, err := b.columnExists(ctx, c.schema, c.table, c.name)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, c.table+"."+c.name)
		}
	}
	return missing, nil
}

// Reset drops and recreates everything. Development convenience only;
// refuses to run in production.
func (b *Bootstrapper) Reset(ctx context.Context) error {
	if b.production {
		return fmt.Errorf("bootstrap: refusing to drop tables in production")
	}
	tables := b.tables()
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		stmt := "DROP TABLE IF EXISTS " + b.qualify(t.schema, t.name) + " CASCADE"
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	b.EnsureTables(ctx)
	b.EnsureColumns(ctx)
	return nil
}

func (b *Bootstrapper) qualify(schema, name string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name)
}
