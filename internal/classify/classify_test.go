package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wikipulse/wikipulse/internal/classify"
	"github.com/wikipulse/wikipulse/internal/model"
)

func TestIsAnonymousEditor(t *testing.T) {
	tests := []struct {
		name string
		user string
		want bool
	}{
		{"registered user", "Jon", false},
		{"registered with digits", "Jon1234", false},
		{"ipv4", "192.168.1.1", true},
		{"ipv4 public", "8.8.8.8", true},
		{"ipv6", "2001:0DB8:85A3:0000:0000:8A2E:0370:7334", true},
		{"empty", "", false},
		{"partial dots", "1.2.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.IsAnonymousEditor(tt.user))
		})
	}
}

func TestIsBotEdit(t *testing.T) {
	assert.True(t, classify.IsBotEdit(&model.RecentChange{User: "Jon", Bot: true}))
	assert.True(t, classify.IsBotEdit(&model.RecentChange{User: "ClueBot NG"}), "known unflagged bot")
	assert.False(t, classify.IsBotEdit(&model.RecentChange{User: "Jon"}))
}

func TestIsRevertEdit(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    bool
	}{
		{"undid", "Undid revision 12345 by Example", true},
		{"reverted", "Reverted edits by Example", true},
		{"tag prefix", "Tag: possible vandalism", true},
		{"wp shortcut", "per WP:BLP", true},
		{"uppercase", "REVERTING vandalism", true},
		{"plain edit", "added references", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.IsRevertEdit(tt.comment))
		})
	}
}

func TestIsFixupEdit(t *testing.T) {
	assert.True(t, classify.IsFixupEdit("Fixed error in template"))
	assert.True(t, classify.IsFixupEdit("fixed error"))
	assert.False(t, classify.IsFixupEdit("fixed a typo"))
	assert.False(t, classify.IsFixupEdit(""))
}

func TestScanCommentFlags(t *testing.T) {
	tests := []struct {
		name           string
		comment        string
		wantNotability bool
		wantVolatility bool
	}{
		{"current event", "Added {{Current event}} template", true, false},
		{"ongoing event", "marked as ongoing event", true, false},
		{"nominated for deletion", "Nominated page for deletion", false, true},
		{"speedy deletion", "tagged for speedy deletion", false, true},
		{"vandalism protection", "{{pp-vandalism}} added", false, true},
		{"both", "current event, proposing article for deletion", true, true},
		{"plain", "copyedit", false, false},
		{"empty", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classify.ScanCommentFlags(tt.comment)
			assert.Equal(t, tt.wantNotability, flags.Notability, "notability")
			assert.Equal(t, tt.wantVolatility, flags.Volatility, "volatility")
		})
	}
}
