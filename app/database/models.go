package database

import (
	"time"
)

// Scan is the persisted record of a finished (or at least started) scan
// session. Live sessions exist only in memory; a row appears here once
// the persist task flushes a terminal session.
type Scan struct {
	ID        string
	Website   string
	State     string
	Error     string
	StartedAt *time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScanResult is one deduplicated discovery, stored with its dedup key
// and insertion position so a reload rebuilds the exact store order.
type ScanResult struct {
	ID       int64
	ScanID   string
	Kind     string
	DedupKey string
	Position int
	Payload  []byte
}
