// Package order is the write side of the order lifecycle: it alone creates
// orders, snapshots cart lines into order items, and mutates product stock.
// Placement and cancellation each run as one transaction - all writes commit
// together or none do.
package order

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
	"github.com/ragavivenugopal/ecom-app/pkg/contracts"
	"github.com/ragavivenugopal/ecom-app/pkg/logging"
	"github.com/ragavivenugopal/ecom-app/pkg/metrics"
	"github.com/ragavivenugopal/ecom-app/pkg/outbox"
)

const DefaultTopic = "ecom.orders"

// ErrEmptyCart rejects placement over an empty cart snapshot.
var ErrEmptyCart = errors.New("cart snapshot is empty")

type Engine struct {
	store *store.Store
	// Topic receives order.placed / order.cancelled events via the outbox.
	Topic string
	// Ops, when set, records count and latency per operation.
	Ops *metrics.OpsMetrics
}

func New(st *store.Store) *Engine {
	return &Engine{store: st, Topic: DefaultTopic}
}

// Place converts the customer's cart snapshot into a committed order.
//
// When total is nil it is recomputed from the snapshot (price x quantity,
// 2 dp). Inside one transaction: the order row is inserted, each line becomes
// an order item with a conditional stock decrement, the customer's cart is
// bulk-cleared (lines outside the snapshot included), and an order.placed
// event joins the outbox. Any failure rolls the whole transaction back.
//
// The decrement carries its own stock guard (AND stock_quantity >= n with an
// affected-rows check), so two placements racing on one product cannot
// oversell even though the snapshot check passed for both.
func (e *Engine) Place(ctx context.Context, customerID int64, snapshot []domain.CartView, shippingAddress string, total *decimal.Decimal) (*domain.Order, []domain.OrderItem, error) {
	start := time.Now()
	ord, items, err := e.place(ctx, customerID, snapshot, shippingAddress, total)
	e.observe("place_order", outcome(err), start)
	if err != nil {
		return nil, nil, err
	}

	logging.Log(logging.Fields{
		Service:    "order-engine",
		Op:         "place_order",
		CustomerID: customerID,
		OrderID:    ord.ID,
		Status:     "placed",
		DurationMS: time.Since(start).Milliseconds(),
	})
	return ord, items, nil
}

func (e *Engine) place(ctx context.Context, customerID int64, snapshot []domain.CartView, shippingAddress string, total *decimal.Decimal) (*domain.Order, []domain.OrderItem, error) {
	if err := customerExists(ctx, e.store.Pool, customerID); err != nil {
		return nil, nil, err
	}
	if len(snapshot) == 0 {
		return nil, nil, ErrEmptyCart
	}

	var orderTotal decimal.Decimal
	if total != nil {
		orderTotal = total.Round(2)
	} else {
		var err error
		orderTotal, err = ComputeTotal(snapshot)
		if err != nil {
			return nil, nil, err
		}
	}

	ord := domain.Order{CustomerID: customerID, TotalPrice: orderTotal, ShippingAddress: shippingAddress}
	var items []domain.OrderItem

	err := e.store.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (customer_id, total_price, shipping_address) VALUES ($1, $2, $3)
			 RETURNING order_id, order_date`,
			customerID, orderTotal, shippingAddress,
		).Scan(&ord.ID, &ord.OrderDate)
		if err != nil {
			return err
		}

		for _, v := range snapshot {
			item := domain.OrderItem{OrderID: ord.ID, ProductID: v.Line.ProductID, Quantity: v.Line.Quantity}
			err := tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)
				 RETURNING order_item_id`,
				ord.ID, v.Line.ProductID, v.Line.Quantity,
			).Scan(&item.ID)
			if err != nil {
				return err
			}

			tag, err := tx.Exec(ctx,
				`UPDATE products SET stock_quantity = stock_quantity - $1
				 WHERE product_id = $2 AND stock_quantity >= $1`,
				v.Line.Quantity, v.Line.ProductID,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				available := 0
				_ = tx.QueryRow(ctx,
					`SELECT stock_quantity FROM products WHERE product_id = $1`,
					v.Line.ProductID,
				).Scan(&available)
				return &apperr.InsufficientStockError{
					ProductID: v.Line.ProductID,
					Available: available,
					Requested: v.Line.Quantity,
				}
			}
			items = append(items, item)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart WHERE customer_id = $1`, customerID); err != nil {
			return err
		}

		return e.queueEvent(ctx, tx, contracts.EventOrderPlaced, ord.ID, customerID, map[string]any{
			contracts.PayloadTotalPrice:      orderTotal.StringFixed(2),
			contracts.PayloadItemCount:       len(items),
			contracts.PayloadShippingAddress: shippingAddress,
		})
	})
	if err != nil {
		return nil, nil, apperr.Storage("place_order", err)
	}
	return &ord, items, nil
}

// Cancel reverses a placement: every order item's quantity returns to its
// product's stock, then the items and the order row are deleted, all in one
// transaction. Restocking is pure addition.
func (e *Engine) Cancel(ctx context.Context, orderID int64) error {
	start := time.Now()
	customerID, err := e.cancel(ctx, orderID)
	e.observe("cancel_order", outcome(err), start)
	if err != nil {
		return err
	}

	logging.Log(logging.Fields{
		Service:    "order-engine",
		Op:         "cancel_order",
		CustomerID: customerID,
		OrderID:    orderID,
		Status:     "cancelled",
		DurationMS: time.Since(start).Milliseconds(),
	})
	return nil
}

func (e *Engine) cancel(ctx context.Context, orderID int64) (int64, error) {
	var customerID int64

	err := e.store.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT customer_id FROM orders WHERE order_id = $1`, orderID).Scan(&customerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return &apperr.NotFoundError{Kind: apperr.KindOrder, ID: orderID}
		}
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx,
			`SELECT product_id, quantity FROM order_items WHERE order_id = $1`, orderID)
		if err != nil {
			return err
		}
		type restock struct {
			productID int64
			quantity  int
		}
		var restocks []restock
		for rows.Next() {
			var r restock
			if err := rows.Scan(&r.productID, &r.quantity); err != nil {
				rows.Close()
				return err
			}
			restocks = append(restocks, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, r := range restocks {
			_, err := tx.Exec(ctx,
				`UPDATE products SET stock_quantity = stock_quantity + $1 WHERE product_id = $2`,
				r.quantity, r.productID)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID); err != nil {
			return err
		}

		return e.queueEvent(ctx, tx, contracts.EventOrderCancelled, orderID, customerID, map[string]any{
			contracts.PayloadRestockedLines: len(restocks),
		})
	})
	if err != nil {
		return 0, apperr.Storage("cancel_order", err)
	}
	return customerID, nil
}

func (e *Engine) observe(op, status string, start time.Time) {
	if e.Ops == nil {
		return
	}
	e.Ops.Ops.WithLabelValues(op, status).Inc()
	e.Ops.LatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

// outcome separates business rejections from storage failures so a burst of
// out-of-stock placements does not read as an error spike.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsNotFound(err), apperr.IsInsufficientStock(err), errors.Is(err, ErrEmptyCart):
		return "rejected"
	default:
		return "error"
	}
}

func (e *Engine) queueEvent(ctx context.Context, q store.Querier, eventType string, orderID, customerID int64, payload map[string]any) error {
	evt := contracts.Event{
		EventID:    uuid.NewString(),
		OrderID:    orderID,
		CustomerID: customerID,
		CreatedAt:  time.Now().UTC(),
		Type:       eventType,
		Payload:    payload,
	}
	return outbox.Insert(ctx, q, evt.EventID, e.Topic, strconv.FormatInt(orderID, 10), evt)
}

func customerExists(ctx context.Context, q store.Querier, id int64) error {
	var found int64
	err := q.QueryRow(ctx, `SELECT customer_id FROM customers WHERE customer_id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.NotFoundError{Kind: apperr.KindCustomer, ID: id}
	}
	return apperr.Storage("customer_exists", err)
}
