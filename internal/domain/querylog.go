package domain

import "time"

// QueryLog records one served recommendation request.
type QueryLog struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Variant    Variant   `json:"variant"`
	ProductIDs []string  `json:"product_ids"`
	Fallbacks  int       `json:"fallbacks"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
