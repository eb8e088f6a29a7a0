package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragavivenugopal/ecom-app/internal/cart"
	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/query"
	"github.com/ragavivenugopal/ecom-app/internal/registry"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/internal/store/storetest"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
	"github.com/ragavivenugopal/ecom-app/pkg/metrics"
)

type fixture struct {
	st       *store.Store
	reg      *registry.Registry
	cart     *cart.Manager
	engine   *Engine
	queries  *query.Queries
	customer domain.Customer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := storetest.Open(t)

	f := &fixture{
		st:      st,
		reg:     registry.New(st),
		cart:    cart.New(st),
		engine:  New(st),
		queries: query.New(st),
	}

	ctx := context.Background()
	c, err := f.reg.CreateCustomer(ctx, domain.Customer{
		Name:     "Order Test User",
		Email:    fmt.Sprintf("order-%s@test.local", uuid.NewString()),
		Password: "secret",
	})
	require.NoError(t, err)
	f.customer = c

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = st.Pool.Exec(ctx, `DELETE FROM cart WHERE customer_id = $1`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM order_items WHERE order_id IN (SELECT order_id FROM orders WHERE customer_id = $1)`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM orders WHERE customer_id = $1`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM customers WHERE customer_id = $1`, c.ID)
	})
	return f
}

func (f *fixture) createProduct(t *testing.T, price string, stock int) domain.Product {
	t.Helper()
	ctx := context.Background()
	p, err := f.reg.CreateProduct(ctx, domain.Product{
		Name:          fmt.Sprintf("order-test-%s", uuid.NewString()),
		Price:         decimal.RequireFromString(price),
		Description:   "engine test product",
		StockQuantity: stock,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = f.st.Pool.Exec(context.Background(), `DELETE FROM products WHERE product_id = $1`, p.ID)
	})
	return p
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	var stock int
	err := f.st.Pool.QueryRow(context.Background(),
		`SELECT stock_quantity FROM products WHERE product_id = $1`, productID).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func TestPlaceOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	productA := f.createProduct(t, "10.00", 5)
	productB := f.createProduct(t, "5.00", 2)

	_, err := f.cart.Add(ctx, f.customer.ID, productA.ID, 3)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, f.customer.ID, productB.ID, 1)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	ord, items, err := f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.NoError(t, err)

	assert.Equal(t, "35.00", ord.TotalPrice.StringFixed(2))
	assert.Equal(t, f.customer.ID, ord.CustomerID)
	assert.Equal(t, "1 Test Street", ord.ShippingAddress)
	assert.WithinDuration(t, time.Now(), ord.OrderDate, time.Minute)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, ord.ID, item.OrderID)
		assert.NotZero(t, item.ID)
	}

	assert.Equal(t, 2, f.stock(t, productA.ID))
	assert.Equal(t, 1, f.stock(t, productB.ID))

	remaining, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// the placement queued exactly one order.placed event
	var events int
	err = f.st.Pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE key = $1 AND payload->>'type' = 'order.placed'`,
		fmt.Sprint(ord.ID)).Scan(&events)
	require.NoError(t, err)
	assert.Equal(t, 1, events)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	productA := f.createProduct(t, "10.00", 5)
	productB := f.createProduct(t, "5.00", 0)

	_, err := f.cart.Add(ctx, f.customer.ID, productA.ID, 3)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, f.customer.ID, productB.ID, 1)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)

	_, _, err = f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	// no partial residue: stock untouched, no orders, cart unchanged
	assert.Equal(t, 5, f.stock(t, productA.ID))
	assert.Equal(t, 0, f.stock(t, productB.ID))

	orders, err := f.queries.OrdersByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	remaining, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestPlaceOrderStockGuardBeatsStaleSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	product := f.createProduct(t, "10.00", 5)
	_, err := f.cart.Add(ctx, f.customer.ID, product.ID, 3)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)

	// stock drops after the snapshot was taken - the conditional decrement
	// must reject the placement even though the snapshot check passes
	_, err = f.st.Pool.Exec(ctx, `UPDATE products SET stock_quantity = 1 WHERE product_id = $1`, product.ID)
	require.NoError(t, err)

	_, _, err = f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))
	assert.Equal(t, 1, f.stock(t, product.ID))
}

func TestPlaceOrderRollbackLeavesNoResidue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	productA := f.createProduct(t, "10.00", 5)
	productB := f.createProduct(t, "5.00", 3)

	_, err := f.cart.Add(ctx, f.customer.ID, productA.ID, 2)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, f.customer.ID, productB.ID, 2)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	// productB's stock drops behind the snapshot, so inside the transaction
	// productA's decrement succeeds before productB's is rejected
	_, err = f.st.Pool.Exec(ctx, `UPDATE products SET stock_quantity = 1 WHERE product_id = $1`, productB.ID)
	require.NoError(t, err)

	_, _, err = f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	// the rollback undid productA's decrement and every inserted row
	assert.Equal(t, 5, f.stock(t, productA.ID))
	assert.Equal(t, 1, f.stock(t, productB.ID))

	var orders int
	err = f.st.Pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE customer_id = $1`, f.customer.ID).Scan(&orders)
	require.NoError(t, err)
	assert.Zero(t, orders)

	var items int
	err = f.st.Pool.QueryRow(ctx,
		`SELECT count(*) FROM order_items WHERE product_id IN ($1, $2)`,
		productA.ID, productB.ID).Scan(&items)
	require.NoError(t, err)
	assert.Zero(t, items)

	var events int
	err = f.st.Pool.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE payload->>'customer_id' = $1`,
		fmt.Sprint(f.customer.ID)).Scan(&events)
	require.NoError(t, err)
	assert.Zero(t, events)

	remaining, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := setup(t)

	_, _, err := f.engine.Place(context.Background(), f.customer.ID, nil, "1 Test Street", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCart))
}

func TestEngineRecordsOpsMetrics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.engine.Ops = metrics.NewOpsMetricsOn(prometheus.NewRegistry(), "order_engine")

	product := f.createProduct(t, "10.00", 5)
	_, err := f.cart.Add(ctx, f.customer.ID, product.ID, 2)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)

	ord, _, err := f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.Ops.Ops.WithLabelValues("place_order", "ok")))

	_, _, err = f.engine.Place(ctx, f.customer.ID, nil, "1 Test Street", nil)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.Ops.Ops.WithLabelValues("place_order", "rejected")))

	require.NoError(t, f.engine.Cancel(ctx, ord.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.Ops.Ops.WithLabelValues("cancel_order", "ok")))

	require.Error(t, f.engine.Cancel(ctx, 999999999))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.Ops.Ops.WithLabelValues("cancel_order", "rejected")))
}

func TestPlaceOrderWithSuppliedTotal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	product := f.createProduct(t, "10.00", 5)
	_, err := f.cart.Add(ctx, f.customer.ID, product.ID, 2)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)

	total := decimal.RequireFromString("18.50")
	ord, _, err := f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", &total)
	require.NoError(t, err)
	assert.Equal(t, "18.50", ord.TotalPrice.StringFixed(2))
}

func TestPlaceOrderClearsWholeCart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ordered := f.createProduct(t, "10.00", 5)
	leftBehind := f.createProduct(t, "3.00", 5)

	_, err := f.cart.Add(ctx, f.customer.ID, ordered.ID, 1)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)

	// a line added after the snapshot is still discarded by placement
	_, err = f.cart.Add(ctx, f.customer.ID, leftBehind.ID, 2)
	require.NoError(t, err)

	_, _, err = f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.NoError(t, err)

	remaining, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, 5, f.stock(t, leftBehind.ID))
}

func TestPlaceOrderUnknownCustomer(t *testing.T) {
	f := setup(t)
	product := f.createProduct(t, "10.00", 5)
	snapshot := []domain.CartView{{
		Line:    domain.CartLine{CustomerID: 999999999, ProductID: product.ID, Quantity: 1},
		Product: product,
	}}

	_, _, err := f.engine.Place(context.Background(), 999999999, snapshot, "nowhere", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	productA := f.createProduct(t, "10.00", 5)
	productB := f.createProduct(t, "5.00", 2)

	_, err := f.cart.Add(ctx, f.customer.ID, productA.ID, 3)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, f.customer.ID, productB.ID, 1)
	require.NoError(t, err)

	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	ord, _, err := f.engine.Place(ctx, f.customer.ID, snapshot, "1 Test Street", nil)
	require.NoError(t, err)

	require.NoError(t, f.engine.Cancel(ctx, ord.ID))

	assert.Equal(t, 5, f.stock(t, productA.ID))
	assert.Equal(t, 2, f.stock(t, productB.ID))

	_, _, err = f.queries.OrderByID(ctx, ord.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	var items int
	err = f.st.Pool.QueryRow(ctx, `SELECT count(*) FROM order_items WHERE order_id = $1`, ord.ID).Scan(&items)
	require.NoError(t, err)
	assert.Zero(t, items)
}

func TestCancelOrderNotFound(t *testing.T) {
	f := setup(t)
	err := f.engine.Cancel(context.Background(), 999999999)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
