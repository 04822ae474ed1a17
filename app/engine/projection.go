package engine

import "time"

// Read-only projections over a session. Nothing here mutates state and
// everything is safe to call mid-run, which is what lets callers render
// live counts while a scan is still in progress.

// metadataAllowList restricts which metadata keys are presented. The
// store keeps every key the scraper reports; the cut happens only here.
var metadataAllowList = map[string]bool{
	"title":               true,
	"description":         true,
	"keywords":            true,
	"author":              true,
	"og:title":            true,
	"og:description":      true,
	"og:url":              true,
	"og:image":            true,
	"og:site_name":        true,
	"twitter:title":       true,
	"twitter:description": true,
	"twitter:image":       true,
}

// VisibleMetadata filters metadata fields down to the presentation
// allow-list, preserving order.
func VisibleMetadata(items []Item) []MetadataField {
	visible := make([]MetadataField, 0, len(items))
	for _, it := range items {
		field, ok := it.(MetadataField)
		if !ok {
			continue
		}
		if metadataAllowList[field.Key] {
			visible = append(visible, field)
		}
	}
	return visible
}

// Summary is the live scan overview: state, per-kind counts, progress.
type Summary struct {
	ID        string       `json:"id"`
	Website   string       `json:"website"`
	State     State        `json:"state"`
	Counts    map[Kind]int `json:"counts"`
	Progress  Progress     `json:"progress"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

func Summarize(s *Session) Summary {
	counts := make(map[Kind]int, len(Kinds))
	for _, kind := range Kinds {
		counts[kind] = s.CountOf(kind)
	}

	return Summary{
		ID:        s.ID,
		Website:   s.Website,
		State:     s.State(),
		Counts:    counts,
		Progress:  s.Progress(),
		Error:     s.Err(),
		StartedAt: s.StartedAt(),
		EndedAt:   s.EndedAt(),
	}
}

// ResultSet is the snapshot-shaped presentation of a session's stores.
// Its JSON round-trips through Snapshot decoding, so a result set served
// to one client can be reconciled into another session without loss
// (metadata excepted: the allow-list applies at this boundary).
type ResultSet struct {
	Emails       []Email             `json:"emails"`
	People       []Person            `json:"people"`
	Phones       []Phone             `json:"phones"`
	SocialLinks  []SocialLink        `json:"social_links"`
	Technologies map[string][]string `json:"technologies"`
	Metadata     map[string]string   `json:"metadata"`
}

func ResultsOf(s *Session) ResultSet {
	rs := ResultSet{
		Emails:       []Email{},
		People:       []Person{},
		Phones:       []Phone{},
		SocialLinks:  []SocialLink{},
		Technologies: make(map[string][]string),
		Metadata:     make(map[string]string),
	}

	for _, it := range s.ItemsOf(KindEmail) {
		rs.Emails = append(rs.Emails, it.(Email))
	}
	for _, it := range s.ItemsOf(KindPerson) {
		rs.People = append(rs.People, it.(Person))
	}
	for _, it := range s.ItemsOf(KindPhone) {
		rs.Phones = append(rs.Phones, it.(Phone))
	}
	for _, it := range s.ItemsOf(KindSocialLink) {
		rs.SocialLinks = append(rs.SocialLinks, it.(SocialLink))
	}
	for _, it := range s.ItemsOf(KindTechnology) {
		tech := it.(Technology)
		rs.Technologies[tech.Category] = append(rs.Technologies[tech.Category], tech.Name)
	}
	for _, field := range VisibleMetadata(s.ItemsOf(KindMetadata)) {
		rs.Metadata[field.Key] = field.Value
	}

	return rs
}
