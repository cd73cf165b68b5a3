// Package pagestore owns the mapping from page identity to live PageRecord.
// Every create, rename, and drop funnels through it so the identity
// invariant (one live record per id) cannot be broken from outside.
package pagestore

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/model"
)

// DefaultHomeWiki is the wiki whose pages are keyed by bare title.
const DefaultHomeWiki = "enwiki"

// Store maps page identities to PageRecords. A single RWMutex serializes
// every mutation (event application, control operations, sweeps) so no two
// mutations interleave; readers always receive deep copies.
type Store struct {
	homeWiki string
	pages    map[string]*model.PageRecord
	logger   *zap.Logger
	mu       sync.RWMutex
}

// New creates an empty store. An empty homeWiki falls back to
// DefaultHomeWiki.
func New(homeWiki string, logger *zap.Logger) *Store {
	if homeWiki == "" {
		homeWiki = DefaultHomeWiki
	}
	return &Store{
		homeWiki: homeWiki,
		pages:    make(map[string]*model.PageRecord),
		logger:   logger,
	}
}

// PageID derives the stable identity for a title on a wiki. The home wiki
// maps to the bare title; every other wiki prefixes its token.
func (s *Store) PageID(title, wiki string) string {
	if wiki == s.homeWiki || wiki == "" {
		return title
	}
	return wiki + "/" + title
}

// displayWiki is the wiki token stored on the record; the home wiki is
// stored as the empty string, matching the bare-title identity.
func (s *Store) displayWiki(wiki string) string {
	if wiki == s.homeWiki {
		return ""
	}
	return wiki
}

// GetOrCreate returns a copy of the record for the identity, creating a
// zeroed record first if the identity is unknown.
func (s *Store) GetOrCreate(title, wiki string) *model.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(title, wiki).Clone()
}

// Get returns a copy of the record for the identity without creating one.
func (s *Store) Get(title, wiki string) (*model.PageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[s.PageID(title, wiki)]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Update applies fn to the record for the identity under the write lock,
// creating the record first if absent, and returns a copy of the record
// after the mutation. This is the only mutation path for content fields.
func (s *Store) Update(title, wiki string, fn func(p *model.PageRecord)) *model.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(title, wiki)
	fn(p)
	return p.Clone()
}

// Rename relocates the record from its old identity to the identity derived
// from newTitle. Counters, flags, and distribution carry over unchanged;
// only title and the updated timestamp move forward. Renaming an unknown
// identity creates an empty record at the new identity, matching lazy
// creation elsewhere.
func (s *Store) Rename(title, wiki, newTitle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldID := s.PageID(title, wiki)
	newID := s.PageID(newTitle, wiki)
	now := time.Now()

	p, ok := s.pages[oldID]
	if !ok {
		s.pages[newID] = model.NewPageRecord(newID, newTitle, s.displayWiki(wiki), now)
		return
	}

	delete(s.pages, oldID)
	p.ID = newID
	p.Title = newTitle
	p.Updated = now
	s.pages[newID] = p

	s.logger.Debug("Renamed page",
		zap.String("old_id", oldID),
		zap.String("new_id", newID))
}

// Drop removes the identity unconditionally. Absent identities are a no-op.
func (s *Store) Drop(title, wiki string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, s.PageID(title, wiki))
}

// MarkSafe sets the eviction-exemption flag on the given identity. Safe
// pages survive the speed and inactivity checks until the lifespan cap.
// Unknown identities are a no-op.
func (s *Store) MarkSafe(id string, unsafe bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pages[id]; ok {
		p.Safe = !unsafe
	}
}

// Protect marks the identity as protected if it exists.
func (s *Store) Protect(title, wiki string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pages[s.PageID(title, wiki)]; ok {
		p.IsProtected = true
	}
}

// ListAll returns a snapshot of every live record. Order is unspecified.
func (s *Store) ListAll() []*model.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.PageRecord, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p.Clone())
	}
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// Sweep runs fn over every live record under the write lock and removes the
// records fn votes to evict. Returns the live count before removal and the
// number removed.
func (s *Store) Sweep(fn func(id string, p *model.PageRecord) bool) (live, purged int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live = len(s.pages)
	for id, p := range s.pages {
		if fn(id, p) {
			delete(s.pages, id)
			purged++
		}
	}
	return live, purged
}

// Export returns a deep copy of the full page set for snapshotting.
func (s *Store) Export() map[string]*model.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.PageRecord, len(s.pages))
	for id, p := range s.pages {
		out[id] = p.Clone()
	}
	return out
}

// Replace swaps in a restored page set, discarding whatever was live.
func (s *Store) Replace(pages map[string]*model.PageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages = make(map[string]*model.PageRecord, len(pages))
	for id, p := range pages {
		s.pages[id] = p
	}
}

func (s *Store) getOrCreateLocked(title, wiki string) *model.PageRecord {
	id := s.PageID(title, wiki)
	p, ok := s.pages[id]
	if !ok {
		p = model.NewPageRecord(id, title, s.displayWiki(wiki), time.Now())
		s.pages[id] = p
	}
	return p
}
