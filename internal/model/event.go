package model

import (
	"bytes"
	"encoding/json"
)

// Log actions carried by control events on the recent-changes stream.
const (
	LogActionMove    = "move"
	LogActionProtect = "protect"
	LogActionDelete  = "delete"
)

// TypeNew marks an edit event that created the page.
const TypeNew = "new"

// PageLength carries the content size before and after an edit.
type PageLength struct {
	Old int `json:"old"`
	New int `json:"new"`
}

// RecentChange is one event from the recent-changes stream: either a content
// edit or, when LogType is set, a structural (log) action such as a page
// move, protection, or deletion.
type RecentChange struct {
	Title      string     `json:"title"`
	Wiki       string     `json:"wiki"`
	ServerName string     `json:"server_name"`
	Namespace  int        `json:"namespace"`
	User       string     `json:"user"`
	Comment    string     `json:"comment"`
	Length     PageLength `json:"length"`
	Bot        bool       `json:"bot"`
	Type       string     `json:"type"`

	LogType          string    `json:"log_type"`
	LogAction        string    `json:"log_action"`
	LogParams        LogParams `json:"log_params"`
	LogActionComment string    `json:"log_action_comment"`
}

// LogParams carries the action-specific parameters of a log event. The
// upstream encodes it as an object for some actions and an array for others,
// so decoding is lenient: unrecognised shapes are kept raw and expose no
// target.
type LogParams struct {
	Target string

	raw json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *LogParams) UnmarshalJSON(data []byte) error {
	p.raw = append(json.RawMessage(nil), data...)
	var obj struct {
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		p.Target = obj.Target
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p LogParams) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	if p.Target == "" {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Target string `json:"target"`
	}{Target: p.Target})
}

// Empty reports whether the log event carried no length payload, in which
// case handlers fall back to the free-text log comment. The test is a length
// probe: arrays and strings are empty when they hold nothing, while objects
// never expose a length and count as empty unless they carry an explicit
// "length" member.
func (p LogParams) Empty() bool {
	trimmed := bytes.TrimSpace(p.raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}", `""`:
		return true
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return true
		}
		_, hasLength := obj["length"]
		return !hasLength
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return true
		}
		return len(arr) == 0
	}
	return false
}
