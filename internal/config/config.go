package config

import (
	"fmt"
	"os"
	"strings"
)

// StockMode selects how stock limits are applied. The shop historically
// sold developer hours, so the default leaves stock unenforced.
type StockMode string

const (
	StockUnlimited StockMode = "unlimited"
	StockEnforced  StockMode = "enforced"
)

type Config struct {
	HTTPAddr    string
	BaseURL     string
	ServiceName string
	Environment string

	DatabaseURL string
	// Logical schemas in search_path order: shop tables first, then
	// users/clients/projects so unqualified names resolve across all of them.
	SchemaShop     string
	SchemaUsers    string
	SchemaClients  string
	SchemaProjects string

	RedisAddr    string
	KafkaBrokers []string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeTestPriceID   string
	Currency            string

	Stock          StockMode
	AllowZeroPrice bool
}

func Load() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		ServiceName: getenv("SERVICE_NAME", "shop-api"),
		Environment: getenv("ENVIRONMENT", "development"),

		DatabaseURL:    databaseURL(),
		SchemaShop:     getenv("POSTGRES_SCHEMA_SHOP", "rozoom_shop"),
		SchemaUsers:    getenv("POSTGRES_SCHEMA", "rozoom_schema"),
		SchemaClients:  getenv("POSTGRES_SCHEMA_CLIENTS", "rozoom_clients"),
		SchemaProjects: getenv("POSTGRES_SCHEMA_PROJECTS", "rozoom_projects"),

		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeTestPriceID:   os.Getenv("STRIPE_TEST_PRICE_ID"),
		Currency:            strings.ToLower(getenv("CURRENCY", "eur")),

		Stock:          stockMode(getenv("STOCK_ENFORCEMENT", string(StockUnlimited))),
		AllowZeroPrice: getenv("ALLOW_ZERO_PRICE", "false") == "true",
	}
}

// Schemas returns the search_path list. Order matters: the shop schema wins
// name collisions since it owns the hot tables.
func (c Config) Schemas() []string {
	seen := map[string]bool{}
	out := make([]string, 0, 4)
	for _, s := range []string{c.SchemaShop, c.SchemaUsers, c.SchemaClients, c.SchemaProjects} {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// databaseURL prefers DATABASE_URL, falls back to the legacy DATABASE_URI,
// then assembles a URL from the individual DATABASE_* parts.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("DATABASE_URI"); v != "" {
		return v
	}
	host := getenv("DATABASE_HOST", "localhost")
	port := getenv("DATABASE_PORT", "5432")
	name := getenv("DATABASE_NAME", "rozoom")
	user := getenv("DATABASE_USERNAME", "postgres")
	pass := getenv("DATABASE_PASSWORD", "postgres")
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func stockMode(s string) StockMode {
	if strings.EqualFold(s, string(StockEnforced)) {
		return StockEnforced
	}
	return StockUnlimited
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
