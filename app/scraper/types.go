package scraper

// Scan profile types

type Profile struct {
	Name         string          // Derived from filename (without .yml extension)
	URL          string          `yaml:"url"`
	EntrepriseID string          `yaml:"entreprise_id"`
	Settings     ProfileSettings `yaml:"settings"`
}

type ProfileSettings struct {
	Enabled        bool `yaml:"enabled"`
	MaxDepth       int  `yaml:"max_depth"`
	MaxWorkers     int  `yaml:"max_workers"`
	MaxTime        int  `yaml:"max_time"`        // seconds the scraper may spend
	RescanInterval int  `yaml:"rescan_interval"` // seconds between automatic relaunches
}
