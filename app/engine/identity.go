package engine

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
)

// sentinelPrefix marks keys for payloads missing their identifying
// field. It starts with a NUL byte so it can never collide with a key
// derived from real scraped text. The full key also carries the payload
// itself: distinct malformed items keep distinct keys and are all
// retained, while re-delivery of the same malformed item still
// collapses.
const sentinelPrefix = "\x00invalid"

var foldCaser = cases.Fold()

func invalidKey(it Item) string {
	payload, err := json.Marshal(it)
	if err != nil {
		return sentinelPrefix
	}
	return sentinelPrefix + "|" + string(it.ItemKind()) + "|" + string(payload)
}

// KeyFor returns the stable dedup key for an item. Keys deliberately use
// the minimal fields the scraper's UI deduplicated on: a person is keyed
// by name alone (two people sharing a name collapse, first seen wins), a
// phone by its raw string (no E.164 normalization, so formatting variants
// do not collapse) and a social link by URL alone (the same URL reported
// under two platforms collapses). Known limitation, kept for
// compatibility with persisted result sets.
func KeyFor(it Item) string {
	switch v := it.(type) {
	case Email:
		if v.Address == "" {
			return invalidKey(v)
		}
		return "email|" + foldCaser.String(strings.TrimSpace(v.Address))
	case Person:
		if v.Name == "" {
			return invalidKey(v)
		}
		return "person|" + v.Name
	case Phone:
		if v.Number == "" {
			return invalidKey(v)
		}
		return "phone|" + v.Number
	case SocialLink:
		if v.URL == "" {
			return invalidKey(v)
		}
		return "social_link|" + v.URL
	case Technology:
		if v.Category == "" && v.Name == "" {
			return invalidKey(v)
		}
		return "technology|" + v.Category + "|" + v.Name
	case MetadataField:
		if v.Key == "" {
			return invalidKey(v)
		}
		return "metadata|" + v.Key
	}
	return sentinelPrefix
}

// Normalize coerces a raw event or snapshot payload into its typed item.
// The scraper delivers the same value in several shapes depending on the
// code path (a phone as "0102030405" or as {"phone": ..., "page_url": ...}),
// so every kind accepts both bare scalars and objects. Normalize is total:
// unrecognized input yields a zero item that keys to the sentinel.
func Normalize(kind Kind, raw any) Item {
	switch v := raw.(type) {
	case Item:
		if v.ItemKind() == kind {
			return v
		}
	case string:
		return normalizeScalar(kind, v)
	case map[string]any:
		return normalizeObject(kind, v)
	}
	return zeroItem(kind)
}

func normalizeScalar(kind Kind, s string) Item {
	switch kind {
	case KindEmail:
		return Email{Address: s}
	case KindPerson:
		return Person{Name: s}
	case KindPhone:
		return Phone{Number: s}
	case KindSocialLink:
		return SocialLink{URL: s}
	case KindTechnology:
		return Technology{Name: s}
	case KindMetadata:
		return MetadataField{Key: s}
	}
	return zeroItem(kind)
}

func normalizeObject(kind Kind, m map[string]any) Item {
	switch kind {
	case KindEmail:
		e := Email{Address: stringField(m, "email", "address", "value")}
		if sa, ok := m["source_analysis"].(map[string]any); ok {
			e.SourceAnalysis = &SourceAnalysis{
				Format:   stringField(sa, "format"),
				Provider: stringField(sa, "provider"),
			}
		}
		return e
	case KindPerson:
		return Person{
			Name:        stringField(m, "name"),
			Title:       stringField(m, "title"),
			Email:       stringField(m, "email"),
			Phone:       stringField(m, "phone"),
			LinkedinURL: stringField(m, "linkedin_url", "linkedin"),
		}
	case KindPhone:
		return Phone{
			Number:  stringField(m, "phone", "number", "value"),
			PageURL: stringField(m, "page_url", "url"),
		}
	case KindSocialLink:
		return SocialLink{
			Platform: stringField(m, "platform"),
			URL:      stringField(m, "url", "link"),
			Text:     stringField(m, "text"),
		}
	case KindTechnology:
		return Technology{
			Category: stringField(m, "category"),
			Name:     stringField(m, "name", "technology", "value"),
		}
	case KindMetadata:
		return MetadataField{
			Key:   stringField(m, "key", "name"),
			Value: stringField(m, "value", "content"),
		}
	}
	return zeroItem(kind)
}

func zeroItem(kind Kind) Item {
	switch kind {
	case KindEmail:
		return Email{}
	case KindPerson:
		return Person{}
	case KindPhone:
		return Phone{}
	case KindSocialLink:
		return SocialLink{}
	case KindTechnology:
		return Technology{}
	default:
		return MetadataField{}
	}
}

// stringField returns the first non-empty string value among keys.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
