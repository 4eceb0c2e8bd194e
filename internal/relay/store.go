package relay

import "sync"

// DefaultSeenLimit bounds the seen-identifier set. Sized generously
// relative to expected message volume between restarts; oldest entries
// are evicted first once the limit is reached.
const DefaultSeenLimit = 8192

// Store tracks delivered message identities and per-chat timestamp
// watermarks for one account. Both ingestion paths consult it; all
// access is serialized internally.
type Store struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	order      []string
	limit      int
	watermarks map[string]int64
}

// NewStore creates an empty store with the default seen-set bound.
func NewStore() *Store {
	return NewStoreWithLimit(DefaultSeenLimit)
}

// NewStoreWithLimit creates an empty store that evicts the oldest seen
// identifiers beyond limit. A limit <= 0 falls back to the default.
func NewStoreWithLimit(limit int) *Store {
	if limit <= 0 {
		limit = DefaultSeenLimit
	}
	return &Store{
		seen:       make(map[string]struct{}),
		limit:      limit,
		watermarks: make(map[string]int64),
	}
}

// HasSeen reports whether a message identifier was already delivered.
func (s *Store) HasSeen(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// MarkSeen records a message identifier as delivered. Empty
// identifiers are ignored; dedup for those rides on the watermark.
func (s *Store) MarkSeen(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	for len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
}

// Watermark returns the highest delivered timestamp for a chat and
// whether the chat has been seeded at all.
func (s *Store) Watermark(chatID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.watermarks[chatID]
	return ts, ok
}

// AdvanceWatermark raises a chat's watermark to ts. It never
// regresses: a value not greater than the current one is a no-op.
// The first call for a chat always sets the watermark, so seeding can
// establish a baseline of any value including zero-adjacent ones.
func (s *Store) AdvanceWatermark(chatID string, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.watermarks[chatID]; ok && ts <= current {
		return
	}
	s.watermarks[chatID] = ts
}

// SeenCount returns the number of identifiers currently tracked.
func (s *Store) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// WatermarkCount returns the number of chats with a watermark.
func (s *Store) WatermarkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watermarks)
}
