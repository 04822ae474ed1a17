package engine

import (
	"encoding/json"
	"sort"
)

// Snapshot is an authoritative batch result set, delivered either with
// the scan completion event or fetched from storage for a scan run
// earlier. Decoding tolerates every shape the scraper has been observed
// to produce: phones as strings or objects, technologies as a map of
// category to list or scalar, metadata flat or nested under "meta_tags",
// and the whole payload optionally wrapped in a "results" object. The
// shape checking lives here, at the boundary, so nothing downstream
// re-inspects types.
type Snapshot struct {
	Emails       []any
	People       []any
	Phones       []any
	SocialLinks  []any
	Technologies map[string]any
	Metadata     map[string]any
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}

	if nested, ok := root["results"].(map[string]any); ok {
		root = nested
	}

	s.Emails = listField(root, "emails")
	s.People = listField(root, "people")
	s.Phones = listField(root, "phones")
	s.SocialLinks = listField(root, "social_links")

	if m, ok := root["technologies"].(map[string]any); ok {
		s.Technologies = m
	}

	s.Metadata = metadataField(root)

	return nil
}

func listField(root map[string]any, key string) []any {
	list, _ := root[key].([]any)
	return list
}

func metadataField(root map[string]any) map[string]any {
	meta, ok := root["metadata"].(map[string]any)
	if !ok {
		meta, ok = root["meta_tags"].(map[string]any)
	}
	if !ok {
		return nil
	}
	if nested, ok := meta["meta_tags"].(map[string]any); ok {
		meta = nested
	}
	return meta
}

// Flatten coerces the snapshot into typed items, kind by kind, in a
// deterministic order. Map-backed kinds (technologies, metadata) are
// walked in sorted key order since JSON objects carry none.
func (s *Snapshot) Flatten() []Item {
	if s == nil {
		return nil
	}

	var items []Item

	for _, raw := range s.Emails {
		items = append(items, Normalize(KindEmail, raw))
	}
	for _, raw := range s.People {
		items = append(items, Normalize(KindPerson, raw))
	}
	for _, raw := range s.Phones {
		items = append(items, Normalize(KindPhone, raw))
	}
	for _, raw := range s.SocialLinks {
		items = append(items, Normalize(KindSocialLink, raw))
	}

	for _, category := range sortedKeys(s.Technologies) {
		switch v := s.Technologies[category].(type) {
		case []any:
			for _, name := range v {
				items = append(items, normalizeTechnology(category, name))
			}
		default:
			items = append(items, normalizeTechnology(category, v))
		}
	}

	for _, key := range sortedKeys(s.Metadata) {
		value, _ := s.Metadata[key].(string)
		items = append(items, MetadataField{Key: key, Value: value})
	}

	return items
}

func normalizeTechnology(category string, raw any) Item {
	switch v := raw.(type) {
	case string:
		return Technology{Category: category, Name: v}
	case map[string]any:
		tech := Normalize(KindTechnology, v).(Technology)
		if tech.Category == "" {
			tech.Category = category
		}
		return tech
	}
	return Technology{Category: category}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reconcileLocked merges the snapshot into the stores via TryInsert, so
// a snapshot overlapping already-applied live events produces no
// duplicates. Snapshot items land after live items that arrived first;
// already-stored items are never reordered.
func (s *Session) reconcileLocked(snap *Snapshot) int {
	inserted := 0
	for _, it := range snap.Flatten() {
		if s.stores[it.ItemKind()].TryInsert(it) {
			inserted++
		}
	}
	return inserted
}
