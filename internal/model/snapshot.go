package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// pageSnapshot is the flattened wire shape of a PageRecord inside a
// collection snapshot blob. Sets are stored as sorted slices and timestamps
// in their RFC 3339 string form so blobs survive process restarts.
type pageSnapshot struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Wiki            string         `json:"wiki"`
	Edits           int            `json:"edits"`
	Reverts         int            `json:"reverts"`
	AnonEdits       int            `json:"anonEdits"`
	NotabilityFlags int            `json:"notabilityFlags"`
	VolatileFlags   int            `json:"volatileFlags"`
	BytesChanged    int64          `json:"bytesChanged"`
	IsNew           bool           `json:"isNew"`
	IsProtected     bool           `json:"isProtected"`
	Safe            bool           `json:"safe"`
	Contributors    []string       `json:"contributors"`
	Anons           []string       `json:"anons"`
	Distribution    map[string]int `json:"distribution"`
	Start           time.Time      `json:"start"`
	Updated         time.Time      `json:"updated"`
}

// EncodeSnapshot serializes a full page set into an opaque snapshot blob.
func EncodeSnapshot(pages map[string]*PageRecord) ([]byte, error) {
	out := make(map[string]pageSnapshot, len(pages))
	for id, p := range pages {
		out[id] = pageSnapshot{
			ID:              p.ID,
			Title:           p.Title,
			Wiki:            p.Wiki,
			Edits:           p.Edits,
			Reverts:         p.Reverts,
			AnonEdits:       p.AnonEdits,
			NotabilityFlags: p.NotabilityFlags,
			VolatileFlags:   p.VolatileFlags,
			BytesChanged:    p.BytesChanged,
			IsNew:           p.IsNew,
			IsProtected:     p.IsProtected,
			Safe:            p.Safe,
			Contributors:    sortedKeys(p.Contributors),
			Anons:           sortedKeys(p.Anons),
			Distribution:    p.Distribution,
			Start:           p.Start,
			Updated:         p.Updated,
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot reconstructs a page set from a snapshot blob.
func DecodeSnapshot(data []byte) (map[string]*PageRecord, error) {
	var raw map[string]pageSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	pages := make(map[string]*PageRecord, len(raw))
	for id, s := range raw {
		p := NewPageRecord(id, s.Title, s.Wiki, s.Start)
		p.Edits = s.Edits
		p.Reverts = s.Reverts
		p.AnonEdits = s.AnonEdits
		p.NotabilityFlags = s.NotabilityFlags
		p.VolatileFlags = s.VolatileFlags
		p.BytesChanged = s.BytesChanged
		p.IsNew = s.IsNew
		p.IsProtected = s.IsProtected
		p.Safe = s.Safe
		for _, u := range s.Contributors {
			p.Contributors[u] = struct{}{}
		}
		for _, u := range s.Anons {
			p.Anons[u] = struct{}{}
		}
		for u, n := range s.Distribution {
			p.Distribution[u] = n
		}
		p.Updated = s.Updated
		if p.Updated.Before(p.Start) {
			p.Updated = p.Start
		}
		pages[id] = p
	}
	return pages, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
