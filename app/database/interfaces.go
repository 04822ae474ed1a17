package database

import (
	"github.com/lysyi3m/scrape-comb/app/engine"
)

type ScanRepository interface {
	GetScan(scanID string) (*Scan, error)
	GetLatestScanForWebsite(website string) (*Scan, error)
	ListScans(limit int) ([]Scan, error)
	GetScanCount() (int, error)

	UpsertScan(scan Scan) error
}

type ResultRepository interface {
	ReplaceResults(scanID string, results []ScanResult) error

	GetResultCount(scanID string) (int, error)
	GetTotalResultCount() (int, error)

	LoadSnapshot(scanID string) (*engine.Snapshot, error)
}
