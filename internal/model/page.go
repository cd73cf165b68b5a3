package model

import "time"

// PageRecord accumulates the recent edit activity of a single tracked page.
// All counters are monotonically non-decreasing while the record is live;
// BytesChanged is a signed running total and may go negative.
type PageRecord struct {
	ID    string
	Title string
	Wiki  string

	Edits     int
	Reverts   int
	AnonEdits int

	NotabilityFlags int
	VolatileFlags   int

	BytesChanged int64

	IsNew       bool
	IsProtected bool
	Safe        bool

	Contributors map[string]struct{}
	Anons        map[string]struct{}
	Distribution map[string]int

	Start   time.Time
	Updated time.Time
}

// NewPageRecord creates a zeroed record with Start = Updated = now.
func NewPageRecord(id, title, wiki string, now time.Time) *PageRecord {
	return &PageRecord{
		ID:           id,
		Title:        title,
		Wiki:         wiki,
		Contributors: make(map[string]struct{}),
		Anons:        make(map[string]struct{}),
		Distribution: make(map[string]int),
		Start:        now,
		Updated:      now,
	}
}

// Age returns how long the page has been in the collection, in minutes.
func (p *PageRecord) Age(now time.Time) float64 {
	return now.Sub(p.Start).Minutes()
}

// Recency returns the minutes elapsed since the last qualifying mutation.
func (p *PageRecord) Recency(now time.Time) float64 {
	return now.Sub(p.Updated).Minutes()
}

// EditVelocity returns the current edit speed in edits per minute. Pages
// younger than one minute, or with no qualifying edits, return the raw edit
// count so brand-new pages do not produce inflated rates.
func (p *PageRecord) EditVelocity(now time.Time, includeReverts, includeAnons bool) float64 {
	count := p.Edits
	if includeReverts {
		count += p.Reverts
	}
	if includeAnons {
		count += p.AnonEdits
	}
	age := p.Age(now)
	if age < 1 || count == 0 {
		return float64(count)
	}
	return float64(count) / age
}

// BiasScore measures how concentrated edit activity is on the single most
// prolific editor. Returns a value in [0,1]; pages with no qualifying edits
// (bot or revert-only activity) score 0.
func (p *PageRecord) BiasScore() float64 {
	if p.Edits == 0 {
		return 0
	}
	most := 0
	for _, n := range p.Distribution {
		if n > most {
			most = n
		}
	}
	return float64(most) / float64(p.Edits)
}

// Clone returns a deep copy of the record. Readers outside the store only
// ever see clones, so a sweep can never tear a record out from under them.
func (p *PageRecord) Clone() *PageRecord {
	c := *p
	c.Contributors = make(map[string]struct{}, len(p.Contributors))
	for u := range p.Contributors {
		c.Contributors[u] = struct{}{}
	}
	c.Anons = make(map[string]struct{}, len(p.Anons))
	for u := range p.Anons {
		c.Anons[u] = struct{}{}
	}
	c.Distribution = make(map[string]int, len(p.Distribution))
	for u, n := range p.Distribution {
		c.Distribution[u] = n
	}
	return &c
}
