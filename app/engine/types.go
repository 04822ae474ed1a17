package engine

// Discovery kinds emitted by the scraper

type Kind string

const (
	KindEmail      Kind = "email"
	KindPerson     Kind = "person"
	KindPhone      Kind = "phone"
	KindSocialLink Kind = "social_link"
	KindTechnology Kind = "technology"
	KindMetadata   Kind = "metadata"
)

// Kinds lists all discovery kinds in their canonical presentation order.
var Kinds = []Kind{KindEmail, KindPerson, KindPhone, KindSocialLink, KindTechnology, KindMetadata}

func (k Kind) Valid() bool {
	switch k {
	case KindEmail, KindPerson, KindPhone, KindSocialLink, KindTechnology, KindMetadata:
		return true
	}
	return false
}

// Item is one deduplicated discovery. Concrete types carry the marker
// method so stores stay homogeneous per kind.
type Item interface {
	ItemKind() Kind
}

type SourceAnalysis struct {
	Format   string `json:"format,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type Email struct {
	Address        string          `json:"address"`
	SourceAnalysis *SourceAnalysis `json:"source_analysis,omitempty"`
}

func (Email) ItemKind() Kind { return KindEmail }

type Person struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
}

func (Person) ItemKind() Kind { return KindPerson }

type Phone struct {
	Number  string `json:"number"`
	PageURL string `json:"page_url,omitempty"`
}

func (Phone) ItemKind() Kind { return KindPhone }

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Text     string `json:"text,omitempty"`
}

func (SocialLink) ItemKind() Kind { return KindSocialLink }

type Technology struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

func (Technology) ItemKind() Kind { return KindTechnology }

type MetadataField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (MetadataField) ItemKind() Kind { return KindMetadata }

// Progress is the transient per-scan progress indicator. It is updated by
// progress events only and never touches the stores.
type Progress struct {
	PagesVisited int    `json:"pages_visited"`
	TotalPages   int    `json:"total_pages"`
	Phase        string `json:"phase,omitempty"`
}
