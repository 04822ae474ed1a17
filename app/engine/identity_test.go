package engine

import (
	"strings"
	"testing"
)

func TestKeyFor_EmailCaseFolding(t *testing.T) {
	a := KeyFor(Email{Address: "Contact@Example.COM"})
	b := KeyFor(Email{Address: "  contact@example.com "})

	if a != b {
		t.Errorf("Expected case-folded email keys to match, got %q and %q", a, b)
	}

	c := KeyFor(Email{Address: "other@example.com"})
	if a == c {
		t.Errorf("Different addresses should not share a key")
	}
}

func TestKeyFor_PersonNameOnly(t *testing.T) {
	a := KeyFor(Person{Name: "Jean Dupont", Email: "jean@x.com"})
	b := KeyFor(Person{Name: "Jean Dupont", Email: "j.dupont@y.com", Title: "CTO"})

	if a != b {
		t.Errorf("Person key must depend on name alone, got %q and %q", a, b)
	}
}

func TestKeyFor_PhoneNotNormalized(t *testing.T) {
	a := KeyFor(Phone{Number: "0102030405"})
	b := KeyFor(Phone{Number: "01 02 03 04 05"})

	if a == b {
		t.Errorf("Phone keys are the raw string; formatting variants must not collapse")
	}
}

func TestKeyFor_SocialLinkURLOnly(t *testing.T) {
	a := KeyFor(SocialLink{Platform: "facebook", URL: "https://x.com/a"})
	b := KeyFor(SocialLink{Platform: "twitter", URL: "https://x.com/a"})

	if a != b {
		t.Errorf("Social link key must depend on URL alone")
	}
}

func TestKeyFor_TechnologyPair(t *testing.T) {
	a := KeyFor(Technology{Category: "cms", Name: "wordpress"})
	b := KeyFor(Technology{Category: "analytics", Name: "wordpress"})

	if a == b {
		t.Errorf("Technology key is the (category, name) pair")
	}
}

func TestKeyFor_SentinelNeverCollidesWithValid(t *testing.T) {
	sentinel := KeyFor(Email{})

	valid := []Item{
		Email{Address: "a@x.com"},
		Person{Name: "invalid"},
		Phone{Number: "invalid"},
		SocialLink{URL: "invalid"},
		Technology{Category: "x", Name: "invalid"},
		MetadataField{Key: "invalid"},
	}
	for _, it := range valid {
		if KeyFor(it) == sentinel {
			t.Errorf("Sentinel key collided with valid item %#v", it)
		}
	}
}

func TestKeyFor_MalformedItemsStayDistinct(t *testing.T) {
	// Two different people both missing their name are two different
	// malformed items; neither may swallow the other.
	a := KeyFor(Person{Title: "CTO", Email: "a@x.com"})
	b := KeyFor(Person{Title: "CEO", Email: "b@x.com"})

	if a == b {
		t.Errorf("Distinct malformed items must not collapse into one key")
	}
	if a != KeyFor(Person{Title: "CTO", Email: "a@x.com"}) {
		t.Errorf("Re-delivery of the same malformed item must produce the same key")
	}
}

func TestNormalize_PhoneDualShape(t *testing.T) {
	fromString := Normalize(KindPhone, "0102030405")
	fromObject := Normalize(KindPhone, map[string]any{"phone": "0102030405", "page_url": "/contact"})

	if KeyFor(fromString) != KeyFor(fromObject) {
		t.Errorf("String and object phone payloads must resolve to the same key")
	}

	phone, ok := fromObject.(Phone)
	if !ok {
		t.Fatalf("Expected Phone, got %T", fromObject)
	}
	if phone.PageURL != "/contact" {
		t.Errorf("Expected page_url to be kept, got %q", phone.PageURL)
	}
}

func TestNormalize_EmailShapes(t *testing.T) {
	cases := []any{
		"a@x.com",
		map[string]any{"email": "a@x.com"},
		map[string]any{"address": "a@x.com"},
	}

	want := KeyFor(Email{Address: "a@x.com"})
	for _, raw := range cases {
		if got := KeyFor(Normalize(KindEmail, raw)); got != want {
			t.Errorf("Payload %#v normalized to key %q, want %q", raw, got, want)
		}
	}
}

func TestNormalize_EmailSourceAnalysis(t *testing.T) {
	it := Normalize(KindEmail, map[string]any{
		"email":           "a@x.com",
		"source_analysis": map[string]any{"format": "standard", "provider": "gmail"},
	})

	email, ok := it.(Email)
	if !ok {
		t.Fatalf("Expected Email, got %T", it)
	}
	if email.SourceAnalysis == nil || email.SourceAnalysis.Provider != "gmail" {
		t.Errorf("Expected source analysis to survive normalization, got %+v", email.SourceAnalysis)
	}
}

func TestNormalize_MetadataNameContentShape(t *testing.T) {
	it := Normalize(KindMetadata, map[string]any{"name": "og:title", "content": "Acme"})

	field, ok := it.(MetadataField)
	if !ok {
		t.Fatalf("Expected MetadataField, got %T", it)
	}
	if field.Key != "og:title" || field.Value != "Acme" {
		t.Errorf("Unexpected metadata field: %+v", field)
	}
}

func TestNormalize_UnrecognizedInputIsTotal(t *testing.T) {
	// Garbage payloads must never panic, and must key to the sentinel.
	for _, kind := range Kinds {
		for _, raw := range []any{nil, 42, []any{"x"}, map[string]any{}} {
			it := Normalize(kind, raw)
			if it == nil {
				t.Fatalf("Normalize(%s, %#v) returned nil", kind, raw)
			}
			if !strings.HasPrefix(KeyFor(it), sentinelPrefix) {
				t.Errorf("Normalize(%s, %#v) should key under the sentinel, got %q", kind, raw, KeyFor(it))
			}
		}
	}
}
