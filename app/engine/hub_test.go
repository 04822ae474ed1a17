package engine

import (
	"testing"
	"time"
)

func TestHub_CreateReusesExistingID(t *testing.T) {
	hub := NewHub()

	a := hub.Create("scan-1", "https://example.com", DefaultOptions())
	b := hub.Create("scan-1", "https://example.com", DefaultOptions())

	if a != b {
		t.Errorf("Creating with an existing ID must return the same session")
	}
	if hub.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", hub.Count())
	}
}

func TestHub_NoCrossSessionLeak(t *testing.T) {
	hub := NewHub()

	a := hub.Create("", "https://a.example.com", DefaultOptions())
	b := hub.Create("", "https://b.example.com", DefaultOptions())

	a.Start()
	b.Start()
	a.Apply(KindEmail, "a@x.com")

	if b.CountOf(KindEmail) != 0 {
		t.Errorf("Stores must never be shared across sessions")
	}
}

func TestHub_RemoveDiscardsSession(t *testing.T) {
	hub := NewHub()
	s := hub.Create("", "https://example.com", DefaultOptions())

	hub.Remove(s.ID)

	if _, ok := hub.Get(s.ID); ok {
		t.Errorf("Removed session must not be retrievable")
	}
}

func TestHub_PrunableSelection(t *testing.T) {
	hub := NewHub()

	running := hub.Create("", "https://running.example.com", DefaultOptions())
	running.Start()

	unsaved := hub.Create("", "https://unsaved.example.com", DefaultOptions())
	unsaved.Start()
	unsaved.Stop()

	saved := hub.Create("", "https://saved.example.com", DefaultOptions())
	saved.Start()
	saved.Stop()
	saved.MarkPersisted()

	prunable := hub.Prunable(time.Now().UTC().Add(time.Minute))
	if len(prunable) != 1 || prunable[0] != saved {
		t.Fatalf("Expected only the persisted terminal session to be prunable, got %d", len(prunable))
	}

	// A cutoff before the session ended keeps it.
	if got := hub.Prunable(time.Now().UTC().Add(-time.Minute)); len(got) != 0 {
		t.Errorf("Sessions newer than the cutoff must be kept, got %d", len(got))
	}
}
