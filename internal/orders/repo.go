package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-api.git/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapConflict(err)
	}
	return nil
}

// mapConflict menerjemahkan SQLSTATE serialisasi/deadlock ke ErrTxConflict
// supaya workflow bisa retry.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", catalog.ErrTxConflict, pgErr.Code)
		}
	}
	return err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) ProductForUpdate(ctx context.Context, productID int64) (catalog.Product, error) {
	var p catalog.Product
	err := t.tx.QueryRow(ctx, `SELECT id, name, description, price_cents, stock, category_id, created_at, updated_at
	                           FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: productID}
	}
	return p, err
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	// Guard stock >= qty juga di SQL; cek utama sudah terjadi di bawah
	// lock yang sama, jadi 0 row di sini berarti ada yang salah.
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
	                           WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("decrement stock product %d: no row updated", productID)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO orders(user_id, status, total_cents, created_at)
	                           VALUES ($1,$2,$3,$4) RETURNING id`,
		o.UserID, string(o.Status), o.TotalCents, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO order_items(order_id, product_id, qty, price_cents)
		                           VALUES ($1,$2,$3,$4) RETURNING id`,
			o.ID, it.ProductID, it.Qty, it.PriceCents).Scan(&it.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) OrderByID(ctx context.Context, orderID int64) (*Order, error) {
	var o Order
	var status string
	err := r.DB.QueryRow(ctx, `SELECT id, user_id, status, total_cents, created_at
	                           FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &status, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)

	rows, err := r.DB.Query(ctx, `SELECT oi.id, oi.product_id, p.name, oi.qty, oi.price_cents
	                              FROM order_items oi
	                              JOIN products p ON p.id = oi.product_id
	                              WHERE oi.order_id=$1 ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it := Item{OrderID: orderID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Qty, &it.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r *Repo) OrdersByUser(ctx context.Context, userID int64) ([]Summary, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, status, total_cents, created_at
	                              FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (r *Repo) ListOrders(ctx context.Context, limit, offset int) ([]Summary, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, status, total_cents, created_at
	                              FROM orders ORDER BY created_at DESC, id DESC
	                              LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows pgx.Rows) ([]Summary, error) {
	var out []Summary
	for rows.Next() {
		var s Summary
		var status string
		if err := rows.Scan(&s.ID, &status, &s.TotalCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Status = Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, orderID int64, next Status) (Status, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	if !CanTransition(Status(cur), next) {
		return "", &InvalidTransitionError{From: Status(cur), To: next}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, string(next)); err != nil {
		return "", err
	}
	return Status(cur), tx.Commit(ctx)
}
