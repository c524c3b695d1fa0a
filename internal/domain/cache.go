package domain

import "time"

// CacheEntry stores a cached interpretation of a request.
type CacheEntry struct {
	Key       string    `json:"key"`
	Request   string    `json:"request"`
	Intent    Intent    `json:"intent"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
