package orders

import "time"

type Order struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Status     Status    `json:"status"` // lihat status.go
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
	Items      []Item    `json:"items"`
}

type Item struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"` // snapshot harga saat commit, bukan harga sekarang
}

// Line: input satu baris pesanan dari client.
type Line struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"quantity"`
}

type Summary struct {
	ID         int64     `json:"id"`
	Status     Status    `json:"status"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}
