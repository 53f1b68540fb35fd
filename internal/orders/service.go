package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
)

const defaultMaxAttempts = 3

// Service: workflow pembuatan order. Cek stok, potong stok, dan insert
// order + items terjadi dalam SATU transaksi; dua PlaceOrder yang menyentuh
// product sama ter-serialisasi lewat row lock di store.
type Service struct {
	store       Store
	maxAttempts int
	now         func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:       store,
		maxAttempts: defaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder: commit order baru + potong stok tiap product, atau tolak
// seluruh request tanpa efek parsial.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, lines []Line) (*Order, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		o, err := s.tryPlace(ctx, userID, merged)
		if errors.Is(err, catalog.ErrTxConflict) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
			}
			continue
		}
		return o, err
	}
	return nil, ErrConflict
}

func (s *Service) tryPlace(ctx context.Context, userID int64, lines []Line) (*Order, error) {
	var placed *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		// Lock product dalam urutan id naik supaya dua request yang
		// overlap tidak saling deadlock.
		var total int64
		items := make([]Item, 0, len(lines))
		for _, ln := range lines {
			p, err := tx.ProductForUpdate(ctx, ln.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < ln.Qty {
				return &catalog.InsufficientStockError{
					ProductID: ln.ProductID,
					Available: p.Stock,
					Requested: ln.Qty,
				}
			}
			total += int64(ln.Qty) * p.PriceCents
			items = append(items, Item{
				ProductID:   ln.ProductID,
				ProductName: p.Name,
				Qty:         ln.Qty,
				PriceCents:  p.PriceCents, // snapshot harga di bawah lock
			})
		}

		for _, ln := range lines {
			if err := tx.DecrementStock(ctx, ln.ProductID, ln.Qty); err != nil {
				return err
			}
		}

		o := &Order{
			UserID:     userID,
			Status:     StatusPending,
			TotalCents: total,
			CreatedAt:  s.now(),
			Items:      items,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// mergeLines memvalidasi input dan menggabungkan baris dengan product sama
// (supaya cek stok kumulatif, bukan per baris), lalu sort by product id.
func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	byID := make(map[int64]int, len(lines))
	order := make([]int64, 0, len(lines))
	for _, ln := range lines {
		if ln.Qty <= 0 {
			return nil, &InvalidQuantityError{ProductID: ln.ProductID, Qty: ln.Qty}
		}
		if _, seen := byID[ln.ProductID]; !seen {
			order = append(order, ln.ProductID)
		}
		byID[ln.ProductID] += ln.Qty
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]Line, 0, len(order))
	for _, id := range order {
		out = append(out, Line{ProductID: id, Qty: byID[id]})
	}
	return out, nil
}
