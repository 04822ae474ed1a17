package scraper

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/scrape-comb/app/engine"
	"github.com/lysyi3m/scrape-comb/app/transport"
)

// CommandEmitter is the transport surface the launcher needs: the
// engine's subscribe side plus the ability to send commands.
type CommandEmitter interface {
	engine.Emitter
	Emit(event string, payload any) error
}

var _ CommandEmitter = (*transport.Client)(nil)

// sessionEmitter narrows the shared connection to one session's event
// namespace. Several scans run concurrently on the same connection, so
// routers must never subscribe on bare event names: a bind or unbind for
// one scan would otherwise see, or drop, another scan's events.
type sessionEmitter struct {
	client    CommandEmitter
	sessionID string
}

func (e *sessionEmitter) On(event string, handler func(data json.RawMessage)) {
	e.client.On(transport.ScopedEvent(event, e.sessionID), handler)
}

func (e *sessionEmitter) Off(event string) {
	e.client.Off(transport.ScopedEvent(event, e.sessionID))
}

// LaunchParams mirror the scraper's start_scraping command. The engine
// treats them as opaque; they only pass through here.
type LaunchParams struct {
	SessionID    string
	URL          string
	MaxDepth     int
	MaxWorkers   int
	MaxTime      int
	EntrepriseID string
}

// Launcher ties the pieces of a scan launch together: it registers a
// session, scopes an event router to it, and issues the transport
// command. Callers always get an explicit session handle back; no
// package-level "current scan" exists.
type Launcher struct {
	hub    *engine.Hub
	client CommandEmitter
}

func NewLauncher(hub *engine.Hub, client CommandEmitter) *Launcher {
	return &Launcher{hub: hub, client: client}
}

// Launch starts a scan and returns its running session. Relaunching
// with the same session ID reuses the handle and resets it to a clean
// run. A transport failure surfaces as an errored session carrying the
// upstream error, so even a launch that never left the building is
// queryable.
func (l *Launcher) Launch(params LaunchParams) (*engine.Session, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("launch requires a URL")
	}

	session := l.hub.Create(params.SessionID, params.URL, engine.DefaultOptions())
	session.Start()

	engine.NewRouter(&sessionEmitter{client: l.client, sessionID: session.ID}, session).Bind()

	cmd := transport.StartScrapingCommand{
		SessionID:    session.ID,
		URL:          params.URL,
		MaxDepth:     params.MaxDepth,
		MaxWorkers:   params.MaxWorkers,
		MaxTime:      params.MaxTime,
		EntrepriseID: params.EntrepriseID,
	}
	if err := l.client.Emit(transport.CommandStartScraping, cmd); err != nil {
		session.Fail(err)
		return nil, fmt.Errorf("failed to launch scan: %w", err)
	}

	slog.Info("Scan launched", "session", session.ID, "url", params.URL)
	return session, nil
}

// LaunchProfile starts a scan for a configured profile. The profile
// name doubles as the session ID, so automatic rescans keep one session
// handle per target.
func (l *Launcher) LaunchProfile(profile *Profile) (*engine.Session, error) {
	return l.Launch(LaunchParams{
		SessionID:    profile.Name,
		URL:          profile.URL,
		MaxDepth:     profile.Settings.MaxDepth,
		MaxWorkers:   profile.Settings.MaxWorkers,
		MaxTime:      profile.Settings.MaxTime,
		EntrepriseID: profile.EntrepriseID,
	})
}

// Stop asks the scraper to wind the scan down. The transition to
// stopped happens when the scraping_stopped event comes back;
// accumulated results stay queryable throughout, and a completion
// payload arriving afterwards is still reconciled under the default
// session options.
func (l *Launcher) Stop(sessionID string) error {
	session, ok := l.hub.Get(sessionID)
	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	if session.State() != engine.StateRunning {
		return nil
	}

	cmd := transport.StopScrapingCommand{SessionID: session.ID}
	if err := l.client.Emit(transport.CommandStopScraping, cmd); err != nil {
		return fmt.Errorf("failed to stop scan: %w", err)
	}

	slog.Info("Scan stop requested", "session", session.ID)
	return nil
}
