package models

import "time"

// StatsResponse mirrors internal/stats.Snapshot for the admin API's
// read-only GET /stats endpoint. The core resolver itself has no HTTP
// surface.
type StatsResponse struct {
	Total     uint64    `json:"total"`
	Blocked   uint64    `json:"blocked"`
	Allowed   uint64    `json:"allowed"`
	StartedAt time.Time `json:"started_at"`
	UptimeSec float64   `json:"uptime_seconds"`
}
