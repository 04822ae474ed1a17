package engine

// Store is an insertion-ordered dedup set for a single discovery kind.
// First seen wins: a duplicate key arriving later with richer data does
// not overwrite the stored entry. Presentation order is discovery order,
// never sorted. Not safe for concurrent use on its own; the owning
// Session serializes access.
type Store struct {
	kind  Kind
	seen  map[string]struct{}
	items []Item
}

func NewStore(kind Kind) *Store {
	return &Store{
		kind: kind,
		seen: make(map[string]struct{}),
	}
}

func (s *Store) Kind() Kind {
	return s.kind
}

// TryInsert inserts the item unless its dedup key is already present.
// Returns whether the insertion happened. Items of the wrong kind are
// rejected outright.
func (s *Store) TryInsert(it Item) bool {
	if it == nil || it.ItemKind() != s.kind {
		return false
	}

	key := KeyFor(it)
	if _, ok := s.seen[key]; ok {
		return false
	}

	s.seen[key] = struct{}{}
	s.items = append(s.items, it)
	return true
}

func (s *Store) Count() int {
	return len(s.items)
}

// Items returns the stored items in insertion order. The slice is a copy
// and safe to retain.
func (s *Store) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) clear() {
	s.seen = make(map[string]struct{})
	s.items = nil
}
