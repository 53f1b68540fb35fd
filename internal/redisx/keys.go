package redisx

import "time"

const (
	// Cache status order: order:status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order:status:%d"

	// Cache detail order (JSON lengkap): order:detail:{order_id}
	KeyOrderDetail = "order:detail:%d"

	// Cache lookup table kategori (satu key utk seluruh list)
	KeyCategories = "catalog:categories"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLDetailCache   = 5 * time.Minute
	TTLCategoryCache = 5 * time.Minute
	TTLDedup         = 48 * time.Hour
)
