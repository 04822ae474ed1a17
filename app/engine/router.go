package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
)

// Transport event names. The scraper namespaces everything under
// "scraping_"; found events map 1:1 onto discovery kinds.
const (
	EventStarted  = "scraping_started"
	EventProgress = "scraping_progress"
	EventComplete = "scraping_complete"
	EventStopped  = "scraping_stopped"
	EventError    = "scraping_error"
)

var foundEvents = map[string]Kind{
	"scraping_email_found":       KindEmail,
	"scraping_person_found":      KindPerson,
	"scraping_phone_found":       KindPhone,
	"scraping_social_link_found": KindSocialLink,
	"scraping_technology_found":  KindTechnology,
	"scraping_metadata_found":    KindMetadata,
}

// EventNames lists every event the router subscribes to.
func EventNames() []string {
	names := []string{EventStarted, EventProgress, EventComplete, EventStopped, EventError}
	for name := range foundEvents {
		names = append(names, name)
	}
	return names
}

// Emitter is the named-event transport surface the router needs:
// at-least-once delivery, synchronous handler invocation, subscribe and
// unsubscribe by name. Ordering is not assumed; correctness comes from
// idempotent TryInsert, not from the transport.
type Emitter interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
}

// Router subscribes to the scraper's events and translates each into a
// single session mutation. Registration is scoped to the session
// lifecycle: Bind clears the namespace first so relaunching a scan on
// the same connection never stacks handler sets (the observed failure
// mode is counts multiplying per relaunch), and the router unbinds
// itself on any terminal transition.
type Router struct {
	emitter Emitter
	session *Session
}

func NewRouter(emitter Emitter, session *Session) *Router {
	return &Router{emitter: emitter, session: session}
}

func (r *Router) Bind() {
	// Drop whatever a previous run left registered before subscribing.
	r.Unbind()

	for name, kind := range foundEvents {
		kind := kind
		r.emitter.On(name, func(data json.RawMessage) {
			r.handleFound(kind, data)
		})
	}

	r.emitter.On(EventStarted, func(json.RawMessage) {
		r.session.ResetProgress()
	})
	r.emitter.On(EventProgress, r.handleProgress)
	r.emitter.On(EventComplete, r.handleComplete)
	r.emitter.On(EventStopped, func(json.RawMessage) {
		r.session.Stop()
	})
	r.emitter.On(EventError, r.handleError)

	r.session.OnTerminal(r.Unbind)
}

func (r *Router) Unbind() {
	for _, name := range EventNames() {
		r.emitter.Off(name)
	}
}

func (r *Router) handleFound(kind Kind, data json.RawMessage) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		// Undecodable payloads still count as a discovery attempt;
		// Normalize files them under the sentinel key.
		raw = nil
	}

	inserted, err := r.session.Apply(kind, raw)
	if err != nil {
		slog.Error("Discovery event rejected", "session", r.session.ID, "kind", kind, "error", err)
		return
	}
	if inserted {
		slog.Debug("Discovery applied", "session", r.session.ID, "kind", kind, "count", r.session.CountOf(kind))
	}
}

func (r *Router) handleProgress(data json.RawMessage) {
	var payload struct {
		PagesVisited int    `json:"pages_visited"`
		Processed    int    `json:"processed"`
		TotalPages   int    `json:"total_pages"`
		Total        int    `json:"total"`
		Phase        string `json:"phase"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Debug("Unreadable progress payload", "session", r.session.ID, "error", err)
		return
	}

	r.session.UpdateProgress(Progress{
		PagesVisited: max(payload.PagesVisited, payload.Processed),
		TotalPages:   max(payload.TotalPages, payload.Total),
		Phase:        firstNonEmpty(payload.Phase, payload.Status),
	})
}

func (r *Router) handleComplete(data json.RawMessage) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A completion we cannot decode still terminates the run; the
		// live events already applied are the final state.
		slog.Error("Unreadable completion snapshot", "session", r.session.ID, "error", err)
		r.session.Complete(&Snapshot{})
		return
	}

	inserted := r.session.Complete(&snap)
	slog.Info("Scan completed", "session", r.session.ID, "reconciled", inserted)
}

func (r *Router) handleError(data json.RawMessage) {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &payload)

	msg := firstNonEmpty(payload.Error, payload.Message, "scraper error")
	r.session.Fail(errors.New(msg))
	slog.Warn("Scan errored", "session", r.session.ID, "error", msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
