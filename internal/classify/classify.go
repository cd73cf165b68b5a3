// Package classify labels raw recent-changes events: bot or human, revert or
// ordinary edit, anonymous or registered editor, and free-text comment
// signals. Everything here is pure and stateless; a missing comment behaves
// as the empty string.
package classify

import (
	"regexp"
	"strings"

	"github.com/wikipulse/wikipulse/internal/model"
)

// Comment markers that classify an edit as a revert or tag action.
var revertMarkers = []string{
	"tag:",
	"undid",
	"revert",
	"reverting",
	"wp:",
	"reverted",
}

// Bot accounts that edit without setting the bot flag.
var knownBots = map[string]struct{}{
	"ClueBot NG": {},
}

// Marker left by edits that only fix an earlier bad edit. Such edits are
// dropped before they reach aggregation.
const fixupMarker = "fixed error"

// Comment markers suggesting the page covers something newsworthy.
var notabilityMarkers = []string{
	"eventtag",
	"current event",
	"ongoing event",
	"→‎death",
}

// Comment markers suggesting the page is contested or under attack.
var volatilityMarkers = []string{
	"speedy deletion",
	"nominated for deletion",
	"nominated page for deletion",
	"restore afd template",
	"{{pp-vandalism",
	"proposing article for deletion",
}

// anonPattern matches IPv4 dotted quads and IPv6-like colon-separated
// hextets, the two username shapes used for unregistered editors.
var anonPattern = regexp.MustCompile(`[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+|[0-9A-Ea-e]+:[0-9A-Ea-e]+:[0-9A-Ea-e]+:[0-9A-Ea-e]+:[0-9A-Ea-e]+`)

// CommentFlags carries the content signals scanned out of an edit comment.
type CommentFlags struct {
	Notability bool
	Volatility bool
}

// IsAnonymousEditor reports whether the username is an IP-derived identity
// rather than a registered account name.
func IsAnonymousEditor(user string) bool {
	return anonPattern.MatchString(user)
}

// IsBotEdit reports whether the event was produced by a bot, either via the
// event's bot flag or the allow-list of known unflagged bot accounts.
func IsBotEdit(ev *model.RecentChange) bool {
	if ev.Bot {
		return true
	}
	_, known := knownBots[ev.User]
	return known
}

// IsRevertEdit reports whether the comment indicates the edit undoes or tags
// a prior edit.
func IsRevertEdit(comment string) bool {
	comment = strings.ToLower(comment)
	for _, marker := range revertMarkers {
		if strings.Contains(comment, marker) {
			return true
		}
	}
	return false
}

// IsFixupEdit reports whether the comment indicates the edit fixed a
// previous bad edit.
func IsFixupEdit(comment string) bool {
	return strings.Contains(strings.ToLower(comment), fixupMarker)
}

// ScanCommentFlags scans a free-text comment for notability and volatility
// signals. Multiple matching markers still raise each flag only once.
func ScanCommentFlags(comment string) CommentFlags {
	comment = strings.ToLower(comment)

	var flags CommentFlags
	for _, marker := range notabilityMarkers {
		if strings.Contains(comment, marker) {
			flags.Notability = true
			break
		}
	}
	for _, marker := range volatilityMarkers {
		if strings.Contains(comment, marker) {
			flags.Volatility = true
			break
		}
	}
	return flags
}
