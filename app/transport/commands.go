package transport

// Commands the engine sends to the scraper. The scan parameters are
// opaque here: the engine only needs to know a scan was launched so it
// can reset its session.
const (
	CommandStartScraping = "start_scraping"
	CommandStopScraping  = "stop_scraping"
)

type StartScrapingCommand struct {
	SessionID    string `json:"session_id"`
	URL          string `json:"url"`
	MaxDepth     int    `json:"max_depth"`
	MaxWorkers   int    `json:"max_workers"`
	MaxTime      int    `json:"max_time"`
	EntrepriseID string `json:"entreprise_id,omitempty"`
}

type StopScrapingCommand struct {
	SessionID string `json:"session_id"`
}
