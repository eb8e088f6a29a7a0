// Package cart manages pending-purchase lines. A customer holds at most one
// line per product; repeated adds accumulate quantity. Stock is not checked
// here - only order placement validates it.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
)

type Manager struct {
	store *store.Store
}

func New(st *store.Store) *Manager {
	return &Manager{store: st}
}

// Add puts quantity units of a product into the customer's cart. If a line
// for the pair already exists its quantity grows by quantity (additive, not
// absolute); the upsert makes the merge a single atomic statement. Returns
// the resulting line with its final quantity.
func (m *Manager) Add(ctx context.Context, customerID, productID int64, quantity int) (domain.CartLine, error) {
	if quantity <= 0 {
		return domain.CartLine{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	if err := customerExists(ctx, m.store.Pool, customerID); err != nil {
		return domain.CartLine{}, err
	}
	if err := productExists(ctx, m.store.Pool, productID); err != nil {
		return domain.CartLine{}, err
	}

	line := domain.CartLine{CustomerID: customerID, ProductID: productID}
	err := m.store.Pool.QueryRow(ctx,
		`INSERT INTO cart (customer_id, product_id, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (customer_id, product_id)
		 DO UPDATE SET quantity = cart.quantity + EXCLUDED.quantity
		 RETURNING cart_id, quantity`,
		customerID, productID, quantity,
	).Scan(&line.ID, &line.Quantity)
	if err != nil {
		return domain.CartLine{}, apperr.Storage("add_to_cart", err)
	}
	return line, nil
}

// Remove deletes the customer's line for the product. The second return is
// false when no line matched - an empty cart slot is a signal, not an error.
func (m *Manager) Remove(ctx context.Context, customerID, productID int64) (domain.CartLine, bool, error) {
	if err := customerExists(ctx, m.store.Pool, customerID); err != nil {
		return domain.CartLine{}, false, err
	}
	if err := productExists(ctx, m.store.Pool, productID); err != nil {
		return domain.CartLine{}, false, err
	}

	var line domain.CartLine
	err := m.store.Pool.QueryRow(ctx,
		`DELETE FROM cart WHERE customer_id = $1 AND product_id = $2
		 RETURNING cart_id, customer_id, product_id, quantity`,
		customerID, productID,
	).Scan(&line.ID, &line.CustomerID, &line.ProductID, &line.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CartLine{}, false, nil
	}
	if err != nil {
		return domain.CartLine{}, false, apperr.Storage("remove_from_cart", err)
	}
	return line, true, nil
}

// List returns the customer's cart joined with the products as they stand
// right now. The result is the snapshot fed into order placement.
func (m *Manager) List(ctx context.Context, customerID int64) ([]domain.CartView, error) {
	if err := customerExists(ctx, m.store.Pool, customerID); err != nil {
		return nil, err
	}

	rows, err := m.store.Pool.Query(ctx,
		`SELECT c.cart_id, c.customer_id, c.product_id, c.quantity,
		        p.product_id, p.name, p.price, p.description, p.stock_quantity
		 FROM cart c
		 JOIN products p ON c.product_id = p.product_id
		 WHERE c.customer_id = $1
		 ORDER BY c.cart_id`,
		customerID,
	)
	if err != nil {
		return nil, apperr.Storage("list_cart", err)
	}
	defer rows.Close()

	var out []domain.CartView
	for rows.Next() {
		var v domain.CartView
		if err := rows.Scan(
			&v.Line.ID, &v.Line.CustomerID, &v.Line.ProductID, &v.Line.Quantity,
			&v.Product.ID, &v.Product.Name, &v.Product.Price, &v.Product.Description, &v.Product.StockQuantity,
		); err != nil {
			return nil, apperr.Storage("list_cart", err)
		}
		out = append(out, v)
	}
	return out, apperr.Storage("list_cart", rows.Err())
}

func customerExists(ctx context.Context, q store.Querier, id int64) error {
	var found int64
	err := q.QueryRow(ctx, `SELECT customer_id FROM customers WHERE customer_id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.NotFoundError{Kind: apperr.KindCustomer, ID: id}
	}
	return apperr.Storage("customer_exists", err)
}

func productExists(ctx context.Context, q store.Querier, id int64) error {
	var found int64
	err := q.QueryRow(ctx, `SELECT product_id FROM products WHERE product_id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.NotFoundError{Kind: apperr.KindProduct, ID: id}
	}
	return apperr.Storage("product_exists", err)
}
