package engine

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"
)

func TestSnapshot_UnmarshalObservedShapes(t *testing.T) {
	raw := `{
		"emails": ["a@x.com", {"email": "b@x.com"}],
		"people": [{"name": "Jean Dupont", "title": "CTO"}],
		"phones": ["0102030405", {"phone": "0607080910", "page_url": "/contact"}],
		"social_links": [{"platform": "facebook", "url": "https://fb.com/acme"}],
		"technologies": {"cms": ["wordpress", "drupal"], "server": "nginx"},
		"metadata": {"meta_tags": {"title": "Acme", "og:image": "/logo.png"}}
	}`

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	items := snap.Flatten()

	counts := make(map[Kind]int)
	for _, it := range items {
		counts[it.ItemKind()]++
	}

	want := map[Kind]int{
		KindEmail:      2,
		KindPerson:     1,
		KindPhone:      2,
		KindSocialLink: 1,
		KindTechnology: 3,
		KindMetadata:   2,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("Flatten counts = %v, want %v", counts, want)
	}
}

func TestSnapshot_UnmarshalResultsWrapper(t *testing.T) {
	raw := `{"results": {"emails": ["a@x.com"], "technologies": {"server": "nginx"}}}`

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(snap.Emails) != 1 {
		t.Errorf("Expected wrapped emails to be found, got %d", len(snap.Emails))
	}
	if snap.Technologies["server"] != "nginx" {
		t.Errorf("Expected scalar technology category to survive")
	}
}

func TestSnapshot_UnmarshalGarbageNeverPanics(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"emails": "not-a-list", "technologies": [], "metadata": 42}`,
		`{"phones": [null, 42]}`,
	} {
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", raw, err)
		}
		snap.Flatten()
	}
}

func TestReconcile_PhoneDualShapeScenario(t *testing.T) {
	s := newRunningSession(t)
	s.Apply(KindPhone, map[string]any{"phone": "0102030405"})

	snap := &Snapshot{Phones: []any{map[string]any{"phone": "0102030405", "page_url": "/contact"}}}
	s.Reconcile(snap)

	if got := s.CountOf(KindPhone); got != 1 {
		t.Errorf("Expected 1 phone after overlapping reconcile, got %d", got)
	}

	// First seen wins: the live event's shape (no page_url) is kept.
	phone := s.ItemsOf(KindPhone)[0].(Phone)
	if phone.PageURL != "" {
		t.Errorf("Reconcile must not enrich an already-stored item, got page_url %q", phone.PageURL)
	}
}

func TestReconcile_SocialLinkCollisionScenario(t *testing.T) {
	s := newRunningSession(t)
	s.Apply(KindSocialLink, map[string]any{"platform": "facebook", "url": "https://x.com/a"})
	s.Apply(KindSocialLink, map[string]any{"platform": "twitter", "url": "https://x.com/a"})

	if got := s.CountOf(KindSocialLink); got != 1 {
		t.Errorf("Two platforms sharing a URL collide into one link, got %d", got)
	}
}

func TestReconcile_AppendsAfterLiveItems(t *testing.T) {
	s := newRunningSession(t)
	s.Apply(KindEmail, "live@x.com")

	s.Reconcile(&Snapshot{Emails: []any{"snap@x.com", "live@x.com"}})

	items := s.ItemsOf(KindEmail)
	if len(items) != 2 {
		t.Fatalf("Expected 2 emails, got %d", len(items))
	}
	if items[0].(Email).Address != "live@x.com" {
		t.Errorf("Live items must keep their position; snapshot appends after them")
	}
}

// sessionKeys collects the dedup keys of every stored item, sorted, as
// the order-insensitive fingerprint of a session's contents.
func sessionKeys(s *Session) []string {
	var keys []string
	for _, kind := range Kinds {
		for _, it := range s.ItemsOf(kind) {
			keys = append(keys, KeyFor(it))
		}
	}
	sort.Strings(keys)
	return keys
}

func TestReconcile_MergeCommutativity(t *testing.T) {
	snap := &Snapshot{
		Emails: []any{"a@x.com", "c@x.com"},
		Phones: []any{"0102030405"},
	}
	liveEvents := []struct {
		kind Kind
		raw  any
	}{
		{KindEmail, "a@x.com"},
		{KindEmail, "b@x.com"},
		{KindPhone, map[string]any{"phone": "0102030405", "page_url": "/p"}},
	}

	// Live events first, then snapshot.
	liveFirst := newRunningSession(t)
	for _, ev := range liveEvents {
		liveFirst.Apply(ev.kind, ev.raw)
	}
	liveFirst.Reconcile(snap)

	// Snapshot first, then live events.
	snapFirst := newRunningSession(t)
	snapFirst.Reconcile(snap)
	for _, ev := range liveEvents {
		snapFirst.Apply(ev.kind, ev.raw)
	}

	if !reflect.DeepEqual(sessionKeys(liveFirst), sessionKeys(snapFirst)) {
		t.Errorf("Merge must commute:\n live-first: %v\n snap-first: %v",
			sessionKeys(liveFirst), sessionKeys(snapFirst))
	}
}
