package orders

import "context"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query: proyeksi read-only atas order yang sudah di-commit, plus update
// status oleh admin (tanpa efek ke stok).
type Query struct {
	store Store
}

func NewQuery(store Store) *Query {
	return &Query{store: store}
}

func (q *Query) OrdersForUser(ctx context.Context, userID int64) ([]Summary, error) {
	return q.store.OrdersByUser(ctx, userID)
}

// OrderDetail: detail order utk pemiliknya atau admin.
func (q *Query) OrderDetail(ctx context.Context, orderID, callerID int64, isAdmin bool) (*Order, error) {
	o, err := q.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != callerID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (q *Query) AdminList(ctx context.Context, limit, offset int) ([]Summary, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return q.store.ListOrders(ctx, limit, offset)
}

// SetStatus mengganti status order dan mengembalikan status sebelumnya.
func (q *Query) SetStatus(ctx context.Context, orderID int64, next Status) (Status, error) {
	return q.store.UpdateStatus(ctx, orderID, next)
}
