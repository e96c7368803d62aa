package bootstrap

import "fmt"

// tables returns the DDL set in dependency order: a table always appears
// after every table it references.
func (b *Bootstrapper) tables() []table {
	users := b.qualify(b.schemas.Users, "users")
	clients := b.qualify(b.schemas.Clients, "clients")
	categories := b.qualify(b.schemas.Shop, "categories")
	products := b.qualify(b.schemas.Shop, "products")
	carts := b.qualify(b.schemas.Shop, "carts")
	orders := b.qualify(b.schemas.Shop, "orders")
	projects := b.qualify(b.schemas.Projects, "projects")

	return []table{
		{schema: b.schemas.Users, name: "users", ddl: `
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`},
		{schema: b.schemas.Clients, name: "clients", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT REFERENCES %s(id),
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, users)},
		{schema: b.schemas.Clients, name: "client_requests", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			client_id BIGINT REFERENCES %s(id),
			subject TEXT,
			body TEXT,
			status TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, clients)},
		{schema: b.schemas.Shop, name: "categories", ddl: `
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`},
		{schema: b.schemas.Shop, name: "products", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			category_id BIGINT REFERENCES %s(id),
			name TEXT NOT NULL,
			slug TEXT UNIQUE,
			sku TEXT UNIQUE,
			short_description TEXT,
			price_cents BIGINT NOT NULL DEFAULT 0,
			sale_price_cents BIGINT,
			stock INTEGER,
			in_stock BOOLEAN NOT NULL DEFAULT TRUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			duration_minutes INTEGER,
			stripe_price_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, categories)},
		{schema: b.schemas.Shop, name: "carts", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT REFERENCES %s(id),
			session_token TEXT UNIQUE,
			status TEXT NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((user_id IS NULL) <> (session_token IS NULL))`, users),
			extra: []string{
				// at most one open cart per identity
				fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS carts_open_user_idx
					ON %s (user_id) WHERE status = 'open' AND user_id IS NOT NULL`, carts),
				fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS carts_open_session_idx
					ON %s (session_token) WHERE status = 'open' AND session_token IS NOT NULL`, carts),
			}},
		{schema: b.schemas.Shop, name: "cart_items", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			cart_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL REFERENCES %s(id),
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			unit_price_cents BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (cart_id, product_id)`, carts, products)},
		{schema: b.schemas.Shop, name: "orders", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			order_number TEXT NOT NULL UNIQUE,
			user_id BIGINT REFERENCES %s(id),
			session_token TEXT,
			email TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT,
			payment_method TEXT NOT NULL DEFAULT 'stripe',
			payment_status TEXT NOT NULL DEFAULT 'pending',
			order_status TEXT NOT NULL DEFAULT 'pending',
			subtotal_cents BIGINT NOT NULL,
			discount_cents BIGINT NOT NULL DEFAULT 0,
			tax_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL,
			coupon_id BIGINT,
			coupon_code TEXT,
			billing_applied BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, users)},
		// product_id is a weak reference on purpose: order history must
		// survive catalog deletions.
		{schema: b.schemas.Shop, name: "order_items", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			product_id BIGINT,
			product_name TEXT NOT NULL,
			product_slug TEXT,
			product_duration INTEGER,
			unit_price_cents BIGINT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			total_cents BIGINT NOT NULL,
			project_stage_id BIGINT,
			billed_hours INTEGER NOT NULL DEFAULT 0`, orders)},
		{schema: b.schemas.Projects, name: "projects", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			client_id BIGINT REFERENCES %s(id),
			user_id BIGINT REFERENCES %s(id),
			name TEXT NOT NULL,
			slug TEXT UNIQUE,
			status TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, clients, users)},
		{schema: b.schemas.Projects, name: "project_stages", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			project_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			order_number INTEGER NOT NULL DEFAULT 0,
			estimated_hours INTEGER NOT NULL DEFAULT 0,
			billed_hours INTEGER NOT NULL DEFAULT 0,
			is_paid BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, projects)},
		{schema: b.schemas.Shop, name: "coupons", ddl: `
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			percent_off INTEGER,
			amount_off_cents BIGINT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`},
		{schema: b.schemas.Shop, name: "payments", ddl: fmt.Sprintf(`
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL UNIQUE REFERENCES %s(id) ON DELETE CASCADE,
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'eur',
			status TEXT NOT NULL DEFAULT 'pending',
			provider TEXT,
			provider_payment_id TEXT,
			provider_session_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`, orders)},
	}
}

// columns lists the additive migrations applied on top of older databases.
// All nullable or defaulted, never destructive.
func (b *Bootstrapper) columns() []column {
	shop := b.schemas.Shop
	return []column{
		{shop, "order_items", "project_stage_id", "BIGINT"},
		{shop, "order_items", "billed_hours", "INTEGER NOT NULL DEFAULT 0"},
		{shop, "orders", "billing_applied", "BOOLEAN NOT NULL DEFAULT FALSE"},
		{shop, "orders", "session_token", "TEXT"},
		{shop, "products", "sale_price_cents", "BIGINT"},
		{shop, "products", "stripe_price_id", "TEXT"},
		{shop, "payments", "provider_session_id", "TEXT"},
	}
}
