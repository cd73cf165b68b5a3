package validation_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikipulse/wikipulse/internal/errors"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/validation"
)

func TestValidateEvent(t *testing.T) {
	v := validation.NewValidator()

	tests := []struct {
		name    string
		event   *model.RecentChange
		wantErr bool
	}{
		{
			name:  "valid edit",
			event: &model.RecentChange{Title: "Foo", Wiki: "enwiki", User: "Jon"},
		},
		{
			name:    "nil event",
			event:   nil,
			wantErr: true,
		},
		{
			name:    "no wiki or server name",
			event:   &model.RecentChange{Title: "Foo"},
			wantErr: true,
		},
		{
			name:    "no title",
			event:   &model.RecentChange{Wiki: "enwiki"},
			wantErr: true,
		},
		{
			name:    "oversize title",
			event:   &model.RecentChange{Title: strings.Repeat("x", validation.MaxTitleSize+1), Wiki: "enwiki"},
			wantErr: true,
		},
		{
			name:    "oversize user",
			event:   &model.RecentChange{Title: "Foo", Wiki: "enwiki", User: strings.Repeat("x", validation.MaxUserSize+1)},
			wantErr: true,
		},
		{
			name:  "empty comment is fine",
			event: &model.RecentChange{Title: "Foo", Wiki: "enwiki"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEvent(tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidEvent, errors.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEventFillsWikiFromServerName(t *testing.T) {
	v := validation.NewValidator()

	ev := &model.RecentChange{Title: "Foo", ServerName: "de.wikipedia.org"}
	require.NoError(t, v.ValidateEvent(ev))
	assert.Equal(t, "de.wikipedia.org", ev.Wiki)

	// An explicit wiki token wins over server_name.
	ev = &model.RecentChange{Title: "Foo", Wiki: "dewiki", ServerName: "de.wikipedia.org"}
	require.NoError(t, v.ValidateEvent(ev))
	assert.Equal(t, "dewiki", ev.Wiki)
}

func TestValidateEventTruncatesComment(t *testing.T) {
	v := validation.NewValidatorWithLimits(validation.MaxTitleSize, validation.MaxUserSize, 10)

	ev := &model.RecentChange{Title: "Foo", Wiki: "enwiki", Comment: "0123456789abcdef"}
	require.NoError(t, v.ValidateEvent(ev))
	assert.Equal(t, "0123456789", ev.Comment)
}

func TestValidateEventTruncatesOnRuneBoundary(t *testing.T) {
	v := validation.NewValidatorWithLimits(validation.MaxTitleSize, validation.MaxUserSize, 10)

	// The limit lands mid-rune: "é" occupies bytes 9 and 10.
	ev := &model.RecentChange{Title: "Foo", Wiki: "enwiki", Comment: "012345678éabc"}
	require.NoError(t, v.ValidateEvent(ev))
	assert.Equal(t, "012345678", ev.Comment)
	assert.True(t, utf8.ValidString(ev.Comment))
}
