package redisx

import "time"

const (
	// Session cart blob: cart:session:{session_id} -> JSON array of lines
	KeySessionCart = "cart:session:%s"

	// Cart badge count: cart_count:{owner} -> int (owner = session:{id} | user:{id})
	KeyCartCount = "cart_count:%s"

	// Merge guard: lock:merge:{user_id} -> random token
	KeyMergeLock = "lock:merge:%s"

	// Session cart writer: lock:session:{session_id} -> random token
	KeySessionLock = "lock:session:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCartCount = 10 * time.Minute
	TTLDedup     = 48 * time.Hour
)
