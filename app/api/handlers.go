package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/scrape-comb/app/database"
	"github.com/lysyi3m/scrape-comb/app/engine"
	"github.com/lysyi3m/scrape-comb/app/scraper"
)

func NewHandler(hub *engine.Hub, launcher LauncherInterface, scanRepo database.ScanRepository,
	resultRepo database.ResultRepository, configCache *scraper.ConfigCache) *Handler {
	return &Handler{
		hub:         hub,
		launcher:    launcher,
		scanRepo:    scanRepo,
		resultRepo:  resultRepo,
		configCache: configCache,
	}
}

func (h *Handler) GetScan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing scan id parameter"})
		return
	}

	if session, ok := h.hub.Get(id); ok {
		c.JSON(http.StatusOK, engine.Summarize(session))
		return
	}

	scan, err := h.scanRepo.GetScan(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_scan", "scan", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if scan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	summary := gin.H{
		"id":         scan.ID,
		"website":    scan.Website,
		"state":      scan.State,
		"started_at": scan.StartedAt,
		"ended_at":   scan.EndedAt,
	}
	if scan.Error != "" {
		summary["error"] = scan.Error
	}
	if count, err := h.resultRepo.GetResultCount(id); err == nil {
		summary["result_count"] = count
	}

	c.JSON(http.StatusOK, summary)
}

// GetScanResults serves a scan's deduplicated results. Live sessions are
// projected directly; finished scans are rebuilt from persisted rows
// through the same reconciliation path that live completion uses.
func (h *Handler) GetScanResults(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing scan id parameter"})
		return
	}

	if session, ok := h.hub.Get(id); ok {
		c.JSON(http.StatusOK, engine.ResultsOf(session))
		return
	}

	scan, err := h.scanRepo.GetScan(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_scan", "scan", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if scan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	snapshot, err := h.resultRepo.LoadSnapshot(id)
	if err != nil {
		slog.Error("Database error", "operation", "load_snapshot", "scan", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	session := engine.NewSession(scan.ID, scan.Website, engine.DefaultOptions())
	session.Reconcile(snapshot)

	c.JSON(http.StatusOK, engine.ResultsOf(session))
}

type startScanRequest struct {
	Profile      string `json:"profile"`
	SessionID    string `json:"session_id"`
	URL          string `json:"url"`
	MaxDepth     int    `json:"max_depth"`
	MaxWorkers   int    `json:"max_workers"`
	MaxTime      int    `json:"max_time"`
	EntrepriseID string `json:"entreprise_id"`
}

func (h *Handler) APIStartScan(c *gin.Context) {
	var req startScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var (
		session *engine.Session
		err     error
	)
	if req.Profile != "" {
		profile, profileErr := h.configCache.GetProfile(req.Profile)
		if profileErr != nil {
			slog.Error("Scan profile not found", "profile", req.Profile, "error", profileErr)
			c.JSON(http.StatusNotFound, gin.H{"error": "Scan profile not found"})
			return
		}
		session, err = h.launcher.LaunchProfile(profile)
	} else {
		if req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Either profile or url is required"})
			return
		}
		session, err = h.launcher.Launch(scraper.LaunchParams{
			SessionID:    req.SessionID,
			URL:          req.URL,
			MaxDepth:     req.MaxDepth,
			MaxWorkers:   req.MaxWorkers,
			MaxTime:      req.MaxTime,
			EntrepriseID: req.EntrepriseID,
		})
	}
	if err != nil {
		slog.Error("Failed to launch scan", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to launch scan", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, engine.Summarize(session))
}

func (h *Handler) APIStopScan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing scan id parameter"})
		return
	}

	if _, ok := h.hub.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	if err := h.launcher.Stop(id); err != nil {
		slog.Error("Failed to stop scan", "scan", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to stop scan", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Stop requested",
		"scan":    id,
	})
}

func (h *Handler) APIListScans(c *gin.Context) {
	sessions := h.hub.Sessions()

	live := make([]engine.Summary, 0, len(sessions))
	for _, session := range sessions {
		live = append(live, engine.Summarize(session))
	}

	response := gin.H{
		"live":  live,
		"total": len(live),
	}

	if scans, err := h.scanRepo.ListScans(100); err == nil {
		persisted := make([]gin.H, 0, len(scans))
		for _, scan := range scans {
			persisted = append(persisted, gin.H{
				"id":         scan.ID,
				"website":    scan.Website,
				"state":      scan.State,
				"started_at": scan.StartedAt,
				"ended_at":   scan.EndedAt,
			})
		}
		response["persisted"] = persisted
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if scanCount, err := h.scanRepo.GetScanCount(); err == nil {
		health["scans"] = scanCount
	}

	health["live_sessions"] = h.hub.Count()
	health["loaded_profiles"] = h.configCache.GetProfileCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"live_sessions":   h.hub.Count(),
		"loaded_profiles": h.configCache.GetProfileCount(),
	}

	if scanCount, err := h.scanRepo.GetScanCount(); err == nil {
		stats["persisted_scans"] = scanCount
	}
	if resultCount, err := h.resultRepo.GetTotalResultCount(); err == nil {
		stats["persisted_results"] = resultCount
	}

	running := 0
	for _, session := range h.hub.Sessions() {
		if session.State() == engine.StateRunning {
			running++
		}
	}
	stats["running_scans"] = running

	c.JSON(http.StatusOK, stats)
}
