package validation

import (
	"unicode/utf8"

	"github.com/wikipulse/wikipulse/internal/errors"
	"github.com/wikipulse/wikipulse/internal/model"
)

const (
	// Size limits
	MaxTitleSize   = 1024
	MaxUserSize    = 256
	MaxCommentSize = 16 * 1024
)

// Validator normalizes and validates raw stream events at the ingest
// boundary, before classification. Events rejected here never touch
// collection state.
type Validator struct {
	maxTitleSize   int
	maxUserSize    int
	maxCommentSize int
}

// NewValidator creates a validator with default limits.
func NewValidator() *Validator {
	return &Validator{
		maxTitleSize:   MaxTitleSize,
		maxUserSize:    MaxUserSize,
		maxCommentSize: MaxCommentSize,
	}
}

// NewValidatorWithLimits creates a validator with custom limits.
func NewValidatorWithLimits(maxTitleSize, maxUserSize, maxCommentSize int) *Validator {
	return &Validator{
		maxTitleSize:   maxTitleSize,
		maxUserSize:    maxUserSize,
		maxCommentSize: maxCommentSize,
	}
}

// ValidateEvent checks a raw event and normalizes it in place: server_name
// fills in a missing wiki token, an over-long comment is truncated rather
// than rejected, and a missing comment stays the empty string.
func (v *Validator) ValidateEvent(ev *model.RecentChange) error {
	if ev == nil {
		return errors.New(errors.ErrCodeInvalidEvent, "event is nil")
	}

	if ev.Wiki == "" {
		ev.Wiki = ev.ServerName
	}
	if ev.Wiki == "" {
		return errors.New(errors.ErrCodeInvalidEvent, "event carries no wiki or server_name")
	}

	if ev.Title == "" {
		return errors.New(errors.ErrCodeInvalidEvent, "event carries no title")
	}
	if len(ev.Title) > v.maxTitleSize {
		return errors.New(errors.ErrCodeInvalidEvent, "title exceeds maximum size")
	}
	if len(ev.User) > v.maxUserSize {
		return errors.New(errors.ErrCodeInvalidEvent, "user exceeds maximum size")
	}
	if len(ev.Comment) > v.maxCommentSize {
		// Back off to a rune boundary so truncation never produces
		// invalid UTF-8.
		cut := v.maxCommentSize
		for cut > 0 && !utf8.RuneStart(ev.Comment[cut]) {
			cut--
		}
		ev.Comment = ev.Comment[:cut]
	}

	return nil
}
