package store

import "context"

// Schema notes: cart's UNIQUE(customer_id, product_id) backs the
// merge-on-add upsert; the stock CHECK is the last line of defense behind
// the conditional decrement in the order engine. No cross-table foreign
// keys: deleting a customer or product leaves historical rows dangling,
// which the read paths tolerate.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		password    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id     BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL UNIQUE,
		price          NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		description    TEXT NOT NULL DEFAULT '',
		stock_quantity INT NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS cart (
		cart_id     BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		product_id  BIGINT NOT NULL,
		quantity    INT NOT NULL CHECK (quantity > 0),
		UNIQUE (customer_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id         BIGSERIAL PRIMARY KEY,
		customer_id      BIGINT NOT NULL,
		order_date       TIMESTAMPTZ NOT NULL DEFAULT now(),
		total_price      NUMERIC(12,2) NOT NULL CHECK (total_price >= 0),
		shipping_address TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_item_id BIGSERIAL PRIMARY KEY,
		order_id      BIGINT NOT NULL,
		product_id    BIGINT NOT NULL,
		quantity      INT NOT NULL CHECK (quantity > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id         BIGSERIAL PRIMARY KEY,
		event_id   TEXT NOT NULL UNIQUE,
		topic      TEXT NOT NULL,
		key        TEXT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		sent_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS inbox (
		event_id    TEXT PRIMARY KEY,
		received_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id          BIGSERIAL PRIMARY KEY,
		event_id    TEXT NOT NULL UNIQUE,
		order_id    BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		type        TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. Statements are idempotent, so repeated runs
// are safe.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
