// Package query is the read side: joins over committed orders, items,
// products and customers. It never writes. Product columns are read through
// LEFT JOINs with COALESCE because catalog deletion leaves historical order
// items dangling.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
)

type Queries struct {
	store *store.Store
}

func New(st *store.Store) *Queries {
	return &Queries{store: st}
}

// ItemView pairs an order item with its product as currently cataloged.
// Product carries only its id when the product has since been deleted.
type ItemView struct {
	Item    domain.OrderItem `json:"item"`
	Product domain.Product   `json:"product"`
}

// CustomerOrder bundles one order with its item views.
type CustomerOrder struct {
	Order domain.Order `json:"order"`
	Items []ItemView   `json:"items"`
}

// DailyOrder additionally carries the ordering customer. The password field
// stays empty - it is never selected on read paths.
type DailyOrder struct {
	Order    domain.Order    `json:"order"`
	Customer domain.Customer `json:"customer"`
	Items    []ItemView      `json:"items"`
}

// OrdersByCustomer returns the customer's orders newest-first, each with its
// item views. The slice replaces the obvious map keyed by order id because
// date ordering must survive; the key is Order.ID.
func (q *Queries) OrdersByCustomer(ctx context.Context, customerID int64) ([]CustomerOrder, error) {
	if err := q.customerExists(ctx, customerID); err != nil {
		return nil, err
	}

	rows, err := q.store.Pool.Query(ctx,
		`SELECT o.order_id, o.customer_id, o.order_date, o.total_price, o.shipping_address,
		        oi.order_item_id, oi.product_id, oi.quantity,
		        COALESCE(p.name, ''), COALESCE(p.price, 0), COALESCE(p.description, ''), COALESCE(p.stock_quantity, 0)
		 FROM orders o
		 JOIN order_items oi ON o.order_id = oi.order_id
		 LEFT JOIN products p ON oi.product_id = p.product_id
		 WHERE o.customer_id = $1
		 ORDER BY o.order_date DESC, o.order_id DESC, oi.order_item_id`,
		customerID,
	)
	if err != nil {
		return nil, apperr.Storage("orders_by_customer", err)
	}
	defer rows.Close()

	var out []CustomerOrder
	index := map[int64]int{}
	for rows.Next() {
		var ord domain.Order
		var iv ItemView
		if err := rows.Scan(
			&ord.ID, &ord.CustomerID, &ord.OrderDate, &ord.TotalPrice, &ord.ShippingAddress,
			&iv.Item.ID, &iv.Item.ProductID, &iv.Item.Quantity,
			&iv.Product.Name, &iv.Product.Price, &iv.Product.Description, &iv.Product.StockQuantity,
		); err != nil {
			return nil, apperr.Storage("orders_by_customer", err)
		}
		iv.Item.OrderID = ord.ID
		iv.Product.ID = iv.Item.ProductID

		pos, ok := index[ord.ID]
		if !ok {
			out = append(out, CustomerOrder{Order: ord})
			pos = len(out) - 1
			index[ord.ID] = pos
		}
		out[pos].Items = append(out[pos].Items, iv)
	}
	return out, apperr.Storage("orders_by_customer", rows.Err())
}

// OrderByID fetches one order with its items. The items slice may be empty:
// an order whose items were removed elsewhere still reads back.
func (q *Queries) OrderByID(ctx context.Context, orderID int64) (*domain.Order, []domain.OrderItem, error) {
	rows, err := q.store.Pool.Query(ctx,
		`SELECT o.order_id, o.customer_id, o.order_date, o.total_price, o.shipping_address,
		        oi.order_item_id, oi.product_id, oi.quantity
		 FROM orders o
		 LEFT JOIN order_items oi ON o.order_id = oi.order_id
		 WHERE o.order_id = $1
		 ORDER BY oi.order_item_id`,
		orderID,
	)
	if err != nil {
		return nil, nil, apperr.Storage("order_by_id", err)
	}
	defer rows.Close()

	var ord *domain.Order
	var items []domain.OrderItem
	for rows.Next() {
		var o domain.Order
		var itemID, productID *int64
		var quantity *int
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.OrderDate, &o.TotalPrice, &o.ShippingAddress,
			&itemID, &productID, &quantity,
		); err != nil {
			return nil, nil, apperr.Storage("order_by_id", err)
		}
		if ord == nil {
			ord = &o
		}
		if itemID != nil {
			items = append(items, domain.OrderItem{
				ID:        *itemID,
				OrderID:   o.ID,
				ProductID: *productID,
				Quantity:  *quantity,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperr.Storage("order_by_id", err)
	}
	if ord == nil {
		return nil, nil, &apperr.NotFoundError{Kind: apperr.KindOrder, ID: orderID}
	}
	return ord, items, nil
}

// OrdersByDate returns every order placed on the given calendar date,
// newest-first, with customer and item views.
func (q *Queries) OrdersByDate(ctx context.Context, day time.Time) ([]DailyOrder, error) {
	rows, err := q.store.Pool.Query(ctx,
		`SELECT o.order_id, o.customer_id, o.order_date, o.total_price, o.shipping_address,
		        c.name, c.email,
		        oi.order_item_id, oi.product_id, oi.quantity,
		        COALESCE(p.name, ''), COALESCE(p.price, 0), COALESCE(p.description, ''), COALESCE(p.stock_quantity, 0)
		 FROM orders o
		 JOIN order_items oi ON o.order_id = oi.order_id
		 JOIN customers c ON o.customer_id = c.customer_id
		 LEFT JOIN products p ON oi.product_id = p.product_id
		 WHERE o.order_date::date = $1::date
		 ORDER BY o.order_date DESC, o.order_id DESC, oi.order_item_id`,
		day.Format("2006-01-02"),
	)
	if err != nil {
		return nil, apperr.Storage("orders_by_date", err)
	}
	defer rows.Close()

	var out []DailyOrder
	index := map[int64]int{}
	for rows.Next() {
		var ord domain.Order
		var cust domain.Customer
		var iv ItemView
		if err := rows.Scan(
			&ord.ID, &ord.CustomerID, &ord.OrderDate, &ord.TotalPrice, &ord.ShippingAddress,
			&cust.Name, &cust.Email,
			&iv.Item.ID, &iv.Item.ProductID, &iv.Item.Quantity,
			&iv.Product.Name, &iv.Product.Price, &iv.Product.Description, &iv.Product.StockQuantity,
		); err != nil {
			return nil, apperr.Storage("orders_by_date", err)
		}
		cust.ID = ord.CustomerID
		iv.Item.OrderID = ord.ID
		iv.Product.ID = iv.Item.ProductID

		pos, ok := index[ord.ID]
		if !ok {
			out = append(out, DailyOrder{Order: ord, Customer: cust})
			pos = len(out) - 1
			index[ord.ID] = pos
		}
		out[pos].Items = append(out[pos].Items, iv)
	}
	return out, apperr.Storage("orders_by_date", rows.Err())
}

func (q *Queries) customerExists(ctx context.Context, id int64) error {
	var found int64
	err := q.store.Pool.QueryRow(ctx, `SELECT customer_id FROM customers WHERE customer_id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.NotFoundError{Kind: apperr.KindCustomer, ID: id}
	}
	return apperr.Storage("customer_exists", err)
}
