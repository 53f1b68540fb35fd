package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrder    = errors.New("order has no lines")
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("order belongs to another user")

	// ErrConflict: retry budget habis saat kontensi di storage.
	ErrConflict = errors.New("order conflict: retries exhausted")
)

type InvalidQuantityError struct {
	ProductID int64
	Qty       int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %d", e.Qty, e.ProductID)
}

type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
