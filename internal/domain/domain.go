package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID    int64  `json:"customer_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// Password is write-only: read paths never select it.
	Password string `json:"-"`
}

type Product struct {
	ID            int64           `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Description   string          `json:"description"`
	StockQuantity int             `json:"stock_quantity"`
}

// CartLine is one pending-purchase record. At most one line exists per
// (customer, product) pair; repeated adds accumulate into Quantity.
type CartLine struct {
	ID         int64 `json:"cart_id"`
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

// CartView pairs a cart line with the product as read at snapshot time.
type CartView struct {
	Line    CartLine `json:"line"`
	Product Product  `json:"product"`
}

type Order struct {
	ID              int64           `json:"order_id"`
	CustomerID      int64           `json:"customer_id"`
	OrderDate       time.Time       `json:"order_date"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ShippingAddress string          `json:"shipping_address"`
}

// OrderItem is the immutable snapshot of a cart line at placement time.
type OrderItem struct {
	ID        int64 `json:"order_item_id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
