package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragavivenugopal/ecom-app/internal/cart"
	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/order"
	"github.com/ragavivenugopal/ecom-app/internal/registry"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/internal/store/storetest"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
)

type fixture struct {
	st       *store.Store
	reg      *registry.Registry
	cart     *cart.Manager
	engine   *order.Engine
	queries  *Queries
	customer domain.Customer
	product  domain.Product
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := storetest.Open(t)

	f := &fixture{
		st:      st,
		reg:     registry.New(st),
		cart:    cart.New(st),
		engine:  order.New(st),
		queries: New(st),
	}

	ctx := context.Background()
	c, err := f.reg.CreateCustomer(ctx, domain.Customer{
		Name:     "Query Test User",
		Email:    fmt.Sprintf("query-%s@test.local", uuid.NewString()),
		Password: "secret",
	})
	require.NoError(t, err)
	f.customer = c

	p, err := f.reg.CreateProduct(ctx, domain.Product{
		Name:          fmt.Sprintf("query-test-%s", uuid.NewString()),
		Price:         decimal.RequireFromString("7.50"),
		Description:   "query test product",
		StockQuantity: 100,
	})
	require.NoError(t, err)
	f.product = p

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = st.Pool.Exec(ctx, `DELETE FROM cart WHERE customer_id = $1`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM order_items WHERE order_id IN (SELECT order_id FROM orders WHERE customer_id = $1)`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM orders WHERE customer_id = $1`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM customers WHERE customer_id = $1`, c.ID)
		_, _ = st.Pool.Exec(ctx, `DELETE FROM products WHERE product_id = $1`, p.ID)
	})
	return f
}

func (f *fixture) placeOrder(t *testing.T, qty int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.cart.Add(ctx, f.customer.ID, f.product.ID, qty)
	require.NoError(t, err)
	snapshot, err := f.cart.List(ctx, f.customer.ID)
	require.NoError(t, err)
	ord, _, err := f.engine.Place(ctx, f.customer.ID, snapshot, "2 Query Lane", nil)
	require.NoError(t, err)
	return ord
}

func TestOrdersByCustomer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	older := f.placeOrder(t, 1)
	newer := f.placeOrder(t, 2)

	orders, err := f.queries.OrdersByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	// newest first; same-timestamp ties break on order id
	assert.Equal(t, newer.ID, orders[0].Order.ID)
	assert.Equal(t, older.ID, orders[1].Order.ID)

	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, f.product.ID, orders[0].Items[0].Product.ID)
	assert.Equal(t, f.product.Name, orders[0].Items[0].Product.Name)
	assert.Equal(t, 2, orders[0].Items[0].Item.Quantity)
}

func TestOrdersByCustomerUnknownCustomer(t *testing.T) {
	f := setup(t)
	_, err := f.queries.OrdersByCustomer(context.Background(), 999999999)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestOrderByID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	placed := f.placeOrder(t, 3)

	ord, items, err := f.queries.OrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, ord.ID)
	assert.Equal(t, "22.50", ord.TotalPrice.StringFixed(2))
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestOrderByIDNotFound(t *testing.T) {
	f := setup(t)
	_, _, err := f.queries.OrderByID(context.Background(), 999999999)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestOrderByIDSurvivesMissingItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	placed := f.placeOrder(t, 1)
	_, err := f.st.Pool.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, placed.ID)
	require.NoError(t, err)

	ord, items, err := f.queries.OrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, ord.ID)
	assert.Empty(t, items)
}

func TestOrdersByDate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	placed := f.placeOrder(t, 2)

	orders, err := f.queries.OrdersByDate(ctx, time.Now())
	require.NoError(t, err)

	var found *DailyOrder
	for i := range orders {
		if orders[i].Order.ID == placed.ID {
			found = &orders[i]
			break
		}
	}
	require.NotNil(t, found, "placed order should appear under today's date")
	assert.Equal(t, f.customer.Name, found.Customer.Name)
	assert.Equal(t, f.customer.Email, found.Customer.Email)
	assert.Empty(t, found.Customer.Password)
	require.Len(t, found.Items, 1)
	assert.Equal(t, f.product.ID, found.Items[0].Product.ID)
}

func TestOrdersByDateExcludesOtherDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	placed := f.placeOrder(t, 1)

	orders, err := f.queries.OrdersByDate(ctx, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	for _, do := range orders {
		assert.NotEqual(t, placed.ID, do.Order.ID)
	}
}
