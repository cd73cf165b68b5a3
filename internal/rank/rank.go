// Package rank orders collection snapshots for the reporting views.
package rank

import (
	"sort"
	"time"

	"github.com/wikipulse/wikipulse/internal/model"
)

// Criterion selects the metric a ranking sorts by.
type Criterion string

const (
	// ByEdits ranks by edit velocity ("most edited").
	ByEdits Criterion = "edits"
	// ByBytes ranks by absolute byte churn ("biggest movers").
	ByBytes Criterion = "bytes"
	// ByBias ranks by single-editor concentration ("most vibrant").
	ByBias Criterion = "bias"
)

// Valid reports whether c names a known criterion.
func (c Criterion) Valid() bool {
	switch c {
	case ByEdits, ByBytes, ByBias:
		return true
	}
	return false
}

// TopBy returns the n highest-ranked pages for the criterion. The input
// slice is not modified; ties keep their input order.
func TopBy(pages []*model.PageRecord, c Criterion, n int, now time.Time) []*model.PageRecord {
	ranked := make([]*model.PageRecord, len(pages))
	copy(ranked, pages)

	score := scoreFunc(c, now)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})

	if n < 0 || n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

func scoreFunc(c Criterion, now time.Time) func(*model.PageRecord) float64 {
	switch c {
	case ByBytes:
		return func(p *model.PageRecord) float64 {
			b := p.BytesChanged
			if b < 0 {
				b = -b
			}
			return float64(b)
		}
	case ByBias:
		return func(p *model.PageRecord) float64 { return p.BiasScore() }
	default:
		return func(p *model.PageRecord) float64 { return p.EditVelocity(now, false, false) }
	}
}
