package orders

import (
	"context"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
)

// Tx: operasi yang hanya valid di dalam satu unit of work.
// ProductForUpdate harus mengunci row product sampai commit/rollback.
type Tx interface {
	ProductForUpdate(ctx context.Context, productID int64) (catalog.Product, error)
	DecrementStock(ctx context.Context, productID int64, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
}

type Store interface {
	// InTx menjalankan fn dalam satu transaksi. Error dari fn membatalkan
	// seluruh transaksi (tidak ada efek parsial). Konflik serialisasi
	// dilaporkan sebagai catalog.ErrTxConflict.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	OrderByID(ctx context.Context, orderID int64) (*Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]Summary, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Summary, error)

	// UpdateStatus mengganti status order (tanpa efek ke stok) dan
	// mengembalikan status sebelumnya. Transisi divalidasi terhadap
	// status saat ini di bawah lock.
	UpdateStatus(ctx context.Context, orderID int64, next Status) (Status, error)
}
