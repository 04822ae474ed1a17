package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lysyi3m/scrape-comb/app/database"
	"github.com/lysyi3m/scrape-comb/app/engine"
	"github.com/lysyi3m/scrape-comb/app/scraper"
)

type fakeLauncher struct {
	hub      *engine.Hub
	launched []string
	stopped  []string
}

func (l *fakeLauncher) Launch(params scraper.LaunchParams) (*engine.Session, error) {
	session := l.hub.Create(params.SessionID, params.URL, engine.DefaultOptions())
	session.Start()
	l.launched = append(l.launched, session.ID)
	return session, nil
}

func (l *fakeLauncher) LaunchProfile(profile *scraper.Profile) (*engine.Session, error) {
	return l.Launch(scraper.LaunchParams{SessionID: profile.Name, URL: profile.URL})
}

func (l *fakeLauncher) Stop(sessionID string) error {
	l.stopped = append(l.stopped, sessionID)
	return nil
}

type fakeScanRepo struct {
	scans map[string]database.Scan
}

func (r *fakeScanRepo) GetScan(scanID string) (*database.Scan, error) {
	scan, ok := r.scans[scanID]
	if !ok {
		return nil, nil
	}
	return &scan, nil
}

func (r *fakeScanRepo) GetLatestScanForWebsite(website string) (*database.Scan, error) {
	return nil, nil
}

func (r *fakeScanRepo) ListScans(limit int) ([]database.Scan, error) {
	var out []database.Scan
	for _, scan := range r.scans {
		out = append(out, scan)
	}
	return out, nil
}

func (r *fakeScanRepo) GetScanCount() (int, error) {
	return len(r.scans), nil
}

func (r *fakeScanRepo) UpsertScan(scan database.Scan) error {
	r.scans[scan.ID] = scan
	return nil
}

type fakeResultRepo struct {
	snapshots map[string]*engine.Snapshot
}

func (r *fakeResultRepo) ReplaceResults(scanID string, results []database.ScanResult) error {
	return nil
}

func (r *fakeResultRepo) GetResultCount(scanID string) (int, error) {
	return 0, nil
}

func (r *fakeResultRepo) GetTotalResultCount() (int, error) {
	return 0, nil
}

func (r *fakeResultRepo) LoadSnapshot(scanID string) (*engine.Snapshot, error) {
	return r.snapshots[scanID], nil
}

type testEnv struct {
	hub        *engine.Hub
	launcher   *fakeLauncher
	scanRepo   *fakeScanRepo
	resultRepo *fakeResultRepo
	server     http.Handler
}

func newTestEnv(t *testing.T, apiAccessKey string) *testEnv {
	t.Helper()

	hub := engine.NewHub()
	launcher := &fakeLauncher{hub: hub}
	scanRepo := &fakeScanRepo{scans: make(map[string]database.Scan)}
	resultRepo := &fakeResultRepo{snapshots: make(map[string]*engine.Snapshot)}
	configCache := scraper.NewConfigCache(t.TempDir())

	handler := NewHandler(hub, launcher, scanRepo, resultRepo, configCache)
	return &testEnv{
		hub:        hub,
		launcher:   launcher,
		scanRepo:   scanRepo,
		resultRepo: resultRepo,
		server:     NewServer(handler, apiAccessKey),
	}
}

func (env *testEnv) request(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	return w
}

func TestGetScan_LiveSession(t *testing.T) {
	env := newTestEnv(t, "")

	session := env.hub.Create("scan-1", "https://example.com", engine.DefaultOptions())
	session.Start()
	session.Apply(engine.KindEmail, "a@example.com")

	w := env.request("GET", "/scans/scan-1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var summary engine.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if summary.State != engine.StateRunning {
		t.Errorf("Expected running state, got %s", summary.State)
	}
	if summary.Counts[engine.KindEmail] != 1 {
		t.Errorf("Expected 1 email in counts, got %d", summary.Counts[engine.KindEmail])
	}
}

func TestGetScan_PersistedScan(t *testing.T) {
	env := newTestEnv(t, "")
	env.scanRepo.scans["old"] = database.Scan{ID: "old", Website: "https://old.example.com", State: "completed"}

	w := env.request("GET", "/scans/old", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["state"] != "completed" {
		t.Errorf("Expected completed state, got %v", body["state"])
	}
}

func TestGetScan_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.request("GET", "/scans/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestGetScanResults_LiveSession(t *testing.T) {
	env := newTestEnv(t, "")

	session := env.hub.Create("scan-1", "https://example.com", engine.DefaultOptions())
	session.Start()
	session.Apply(engine.KindEmail, "a@example.com")
	session.Apply(engine.KindPhone, map[string]any{"phone": "0102030405", "page_url": "https://example.com/contact"})

	w := env.request("GET", "/scans/scan-1/results", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var results engine.ResultSet
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(results.Emails) != 1 || results.Emails[0].Address != "a@example.com" {
		t.Errorf("Unexpected emails: %+v", results.Emails)
	}
	if len(results.Phones) != 1 || results.Phones[0].Number != "0102030405" {
		t.Errorf("Unexpected phones: %+v", results.Phones)
	}
}

func TestGetScanResults_RebuiltFromStorage(t *testing.T) {
	env := newTestEnv(t, "")
	env.scanRepo.scans["old"] = database.Scan{ID: "old", Website: "https://old.example.com", State: "completed"}
	env.resultRepo.snapshots["old"] = &engine.Snapshot{
		Emails: []any{"a@example.com", "b@example.com"},
	}

	w := env.request("GET", "/scans/old/results", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var results engine.ResultSet
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(results.Emails) != 2 {
		t.Errorf("Expected 2 emails rebuilt from storage, got %d", len(results.Emails))
	}
}

func TestAPIStartScan_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.request("POST", "/api/scans", `{"url": "https://example.com"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	w = env.request("POST", "/api/scans", `{"url": "https://example.com"}`,
		map[string]string{"X-API-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
}

func TestAPIStartScan_LaunchesScan(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.request("POST", "/api/scans", `{"url": "https://example.com", "session_id": "scan-1"}`,
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	if len(env.launcher.launched) != 1 || env.launcher.launched[0] != "scan-1" {
		t.Errorf("Expected a launch for scan-1, got %v", env.launcher.launched)
	}
}

func TestAPIStartScan_RejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.request("POST", "/api/scans", `{}`,
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing url and profile, got %d", w.Code)
	}
}

func TestAPIStopScan(t *testing.T) {
	env := newTestEnv(t, "secret")

	session := env.hub.Create("scan-1", "https://example.com", engine.DefaultOptions())
	session.Start()

	w := env.request("POST", "/api/scans/scan-1/stop", "",
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if len(env.launcher.stopped) != 1 || env.launcher.stopped[0] != "scan-1" {
		t.Errorf("Expected a stop for scan-1, got %v", env.launcher.stopped)
	}

	w = env.request("POST", "/api/scans/missing/stop", "",
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown scan, got %d", w.Code)
	}
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.request("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, ok := body["timestamp"]; !ok {
		t.Errorf("Expected a timestamp in the health response")
	}
}
