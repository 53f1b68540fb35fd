package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
)

// MemStore: implementasi Store di memori. Row lock Postgres digantikan
// mutex per product; caller (workflow) tetap bertanggung jawab mengunci
// dalam urutan id naik, sama seperti di Postgres. Dipakai di test.
type MemStore struct {
	mu       sync.Mutex // guard maps & counters
	products map[int64]catalog.Product
	locks    map[int64]*sync.Mutex
	orders   map[int64]*Order

	nextOrderID int64
	nextItemID  int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[int64]catalog.Product),
		locks:    make(map[int64]*sync.Mutex),
		orders:   make(map[int64]*Order),
	}
}

func (s *MemStore) SeedProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	if _, ok := s.locks[p.ID]; !ok {
		s.locks[p.ID] = &sync.Mutex{}
	}
}

func (s *MemStore) Product(id int64) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

type memTx struct {
	s       *MemStore
	held    []int64       // urutan akuisisi lock
	undo    map[int64]int // decrement yang sudah diterapkan
	pending *Order
}

func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{s: s, undo: make(map[int64]int)}
	err := fn(tx)
	s.mu.Lock()
	if err != nil {
		// rollback: kembalikan stok yang sudah dipotong
		for id, qty := range tx.undo {
			p := s.products[id]
			p.Stock += qty
			s.products[id] = p
		}
	} else if tx.pending != nil {
		s.nextOrderID++
		tx.pending.ID = s.nextOrderID
		for i := range tx.pending.Items {
			s.nextItemID++
			tx.pending.Items[i].ID = s.nextItemID
			tx.pending.Items[i].OrderID = tx.pending.ID
		}
		o := *tx.pending
		o.Items = append([]Item(nil), tx.pending.Items...)
		s.orders[o.ID] = &o
	}
	s.mu.Unlock()

	for i := len(tx.held) - 1; i >= 0; i-- {
		s.lockFor(tx.held[i]).Unlock()
	}
	return err
}

func (s *MemStore) lockFor(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[id]
}

func (t *memTx) ProductForUpdate(ctx context.Context, productID int64) (catalog.Product, error) {
	t.s.mu.Lock()
	lk, ok := t.s.locks[productID]
	t.s.mu.Unlock()
	if !ok {
		return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: productID}
	}

	if !t.holds(productID) {
		lk.Lock()
		t.held = append(t.held, productID)
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.products[productID]
	if !ok {
		return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: productID}
	}
	return p, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.products[productID]
	if !ok {
		return &catalog.ProductNotFoundError{ProductID: productID}
	}
	if p.Stock < qty {
		return &catalog.InsufficientStockError{ProductID: productID, Available: p.Stock, Requested: qty}
	}
	p.Stock -= qty
	t.s.products[productID] = p
	t.undo[productID] += qty
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	t.pending = o
	return nil
}

func (t *memTx) holds(id int64) bool {
	for _, h := range t.held {
		if h == id {
			return true
		}
	}
	return false
}

func (s *MemStore) OrderByID(ctx context.Context, orderID int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (s *MemStore) OrdersByUser(ctx context.Context, userID int64) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Summary
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, summaryOf(o))
		}
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemStore) ListOrders(ctx context.Context, limit, offset int) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Summary, 0, len(s.orders))
	for _, o := range s.orders {
		all = append(all, summaryOf(o))
	}
	sortSummaries(all)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemStore) UpdateStatus(ctx context.Context, orderID int64, next Status) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	if !CanTransition(o.Status, next) {
		return "", &InvalidTransitionError{From: o.Status, To: next}
	}
	prev := o.Status
	o.Status = next
	return prev, nil
}

func summaryOf(o *Order) Summary {
	return Summary{ID: o.ID, Status: o.Status, TotalCents: o.TotalCents, CreatedAt: o.CreatedAt}
}

func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}
