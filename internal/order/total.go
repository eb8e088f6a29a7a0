package order

import (
	"github.com/shopspring/decimal"

	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/pkg/apperr"
)

// ComputeTotal sums price x quantity over the snapshot, rounded to 2 decimal
// places. Any line whose snapshot stock cannot cover its quantity fails the
// whole computation; the caller must not write anything in that case.
func ComputeTotal(snapshot []domain.CartView) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, v := range snapshot {
		if v.Product.StockQuantity < v.Line.Quantity {
			return decimal.Zero, &apperr.InsufficientStockError{
				ProductID: v.Product.ID,
				Available: v.Product.StockQuantity,
				Requested: v.Line.Quantity,
			}
		}
		total = total.Add(v.Product.Price.Mul(decimal.NewFromInt(int64(v.Line.Quantity))))
	}
	return total.Round(2), nil
}
