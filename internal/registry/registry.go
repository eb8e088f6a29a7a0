// Package registry holds the customer and product catalogs: creation with
// uniqueness pre-checks, deletion, listing and customer updates. Stock is
// never mutated here; that right belongs to the order engine.
package registry

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
)

type Registry struct {
	store *store.Store
}

func New(st *store.Store) *Registry {
	return &Registry{store: st}
}

// CreateProduct inserts a new product and returns it with its generated id.
// Product names are unique; the duplicate pre-check is surfaced as a typed
// error, with the 23505 backstop covering a racing insert.
func (r *Registry) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	var existing int64
	err := r.store.Pool.QueryRow(ctx, `SELECT product_id FROM products WHERE name = $1`, p.Name).Scan(&existing)
	if err == nil {
		return domain.Product{}, &apperr.DuplicateError{Kind: apperr.KindProduct, Field: "name", Value: p.Name}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, apperr.Storage("create_product", err)
	}

	err = r.store.Pool.QueryRow(ctx,
		`INSERT INTO products (name, price, description, stock_quantity) VALUES ($1, $2, $3, $4) RETURNING product_id`,
		p.Name, p.Price, p.Description, p.StockQuantity,
	).Scan(&p.ID)
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return domain.Product{}, &apperr.DuplicateError{Kind: apperr.KindProduct, Field: "name", Value: p.Name}
		}
		return domain.Product{}, apperr.Storage("create_product", err)
	}
	return p, nil
}

// CreateCustomer inserts a new customer. Emails are unique.
func (r *Registry) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	var existing int64
	err := r.store.Pool.QueryRow(ctx, `SELECT customer_id FROM customers WHERE email = $1`, c.Email).Scan(&existing)
	if err == nil {
		return domain.Customer{}, &apperr.DuplicateError{Kind: apperr.KindCustomer, Field: "email", Value: c.Email}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, apperr.Storage("create_customer", err)
	}

	err = r.store.Pool.QueryRow(ctx,
		`INSERT INTO customers (name, email, password) VALUES ($1, $2, $3) RETURNING customer_id`,
		c.Name, c.Email, c.Password,
	).Scan(&c.ID)
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return domain.Customer{}, &apperr.DuplicateError{Kind: apperr.KindCustomer, Field: "email", Value: c.Email}
		}
		return domain.Customer{}, apperr.Storage("create_customer", err)
	}
	return c, nil
}

// DeleteProduct removes a product by id. Historical orders and order items
// keep referencing the id; read queries tolerate the dangling reference.
func (r *Registry) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.store.Pool.Exec(ctx, `DELETE FROM products WHERE product_id = $1`, id)
	if err != nil {
		return apperr.Storage("delete_product", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Kind: apperr.KindProduct, ID: id}
	}
	return nil
}

func (r *Registry) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := r.store.Pool.Exec(ctx, `DELETE FROM customers WHERE customer_id = $1`, id)
	if err != nil {
		return apperr.Storage("delete_customer", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Kind: apperr.KindCustomer, ID: id}
	}
	return nil
}

func (r *Registry) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.store.Pool.Query(ctx,
		`SELECT product_id, name, price, description, stock_quantity FROM products`)
	if err != nil {
		return nil, apperr.Storage("list_products", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.StockQuantity); err != nil {
			return nil, apperr.Storage("list_products", err)
		}
		out = append(out, p)
	}
	return out, apperr.Storage("list_products", rows.Err())
}

// ListCustomers never selects the password column; the returned records carry
// an empty secret.
func (r *Registry) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.store.Pool.Query(ctx, `SELECT customer_id, name, email FROM customers`)
	if err != nil {
		return nil, apperr.Storage("list_customers", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, apperr.Storage("list_customers", err)
		}
		out = append(out, c)
	}
	return out, apperr.Storage("list_customers", rows.Err())
}

// UpdateCustomer overwrites name, email and password by id and reports
// whether a row was affected.
func (r *Registry) UpdateCustomer(ctx context.Context, c domain.Customer) (bool, error) {
	tag, err := r.store.Pool.Exec(ctx,
		`UPDATE customers SET name = $1, email = $2, password = $3 WHERE customer_id = $4`,
		c.Name, c.Email, c.Password, c.ID,
	)
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return false, &apperr.DuplicateError{Kind: apperr.KindCustomer, Field: "email", Value: c.Email}
		}
		return false, apperr.Storage("update_customer", err)
	}
	return tag.RowsAffected() > 0, nil
}
