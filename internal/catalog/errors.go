package catalog

import (
	"errors"
	"fmt"
)

// ErrTxConflict: serialisasi/konflik di storage. Caller boleh retry seluruh unit of work.
var ErrTxConflict = errors.New("storage transaction conflict")

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available=%d requested=%d",
		e.ProductID, e.Available, e.Requested)
}
