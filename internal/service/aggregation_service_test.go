package service_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/service"
	"github.com/wikipulse/wikipulse/internal/storage/pagestore"
)

func newAggregation(t *testing.T, project string) (*service.AggregationService, *pagestore.Store) {
	t.Helper()

	store := pagestore.New("enwiki", zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())
	return service.NewAggregationService(store, project, m, zap.NewNop()), store
}

func makeEdit(title, comment, user string) *model.RecentChange {
	return &model.RecentChange{
		Title:     title,
		Wiki:      "enwiki",
		Namespace: 0,
		User:      user,
		Comment:   comment,
		Length:    model.PageLength{Old: 1, New: 2},
	}
}

func TestSingleEdit(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	pages := store.ListAll()
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, "Foo", p.Title)
	assert.Equal(t, 1, p.Edits)
	assert.Equal(t, int64(1), p.BytesChanged)
	assert.Contains(t, p.Contributors, "Jon")
	assert.Equal(t, 1, p.Distribution["Jon"])
	assert.Empty(t, p.Anons)
	assert.Zero(t, p.Reverts)
}

func TestVolatileComment(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "Nominated page for deletion", "Jon"))

	p, ok := store.Get("Foo", "enwiki")
	require.True(t, ok)
	assert.Equal(t, 1, p.VolatileFlags)
	assert.Zero(t, p.NotabilityFlags)
}

func TestNotableComment(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "added current event template", "Jon"))

	p, _ := store.Get("Foo", "enwiki")
	assert.Equal(t, 1, p.NotabilityFlags)
}

func TestBotEdit(t *testing.T) {
	svc, store := newAggregation(t, "*")

	ev := makeEdit("Foo", "yo", "Jon")
	ev.Bot = true
	svc.HandleEvent(ev)

	p, ok := store.Get("Foo", "enwiki")
	require.True(t, ok)
	assert.Zero(t, p.Edits)
	assert.Zero(t, p.BytesChanged)
	assert.Empty(t, p.Contributors)
	assert.Empty(t, p.Anons)
	assert.Empty(t, p.Distribution)
}

func TestBotEditStillRaisesCommentFlags(t *testing.T) {
	svc, store := newAggregation(t, "*")

	ev := makeEdit("Foo", "nominated for deletion", "SomeBot")
	ev.Bot = true
	svc.HandleEvent(ev)

	p, _ := store.Get("Foo", "enwiki")
	assert.Equal(t, 1, p.VolatileFlags)
	assert.Zero(t, p.Edits)
}

func TestRevertEdit(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "reverted", "Jon"))

	p, ok := store.Get("Foo", "enwiki")
	require.True(t, ok)
	assert.Equal(t, 1, p.Reverts)
	assert.Zero(t, p.Edits)
	assert.Empty(t, p.Contributors)
	assert.Empty(t, p.Distribution)
	assert.Equal(t, int64(1), p.BytesChanged, "reverts still move the byte total")
}

func TestBotRevertStillMovesBytes(t *testing.T) {
	svc, store := newAggregation(t, "*")

	ev := makeEdit("Foo", "Reverted edits by...", "Jon")
	ev.Bot = true
	ev.Length = model.PageLength{Old: 500, New: 200}
	svc.HandleEvent(ev)

	p, _ := store.Get("Foo", "enwiki")
	assert.Equal(t, 1, p.Reverts)
	assert.Equal(t, int64(-300), p.BytesChanged)
	assert.Zero(t, p.Edits)
}

func TestAnonymousEditor(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "10.0.0.1"))
	svc.HandleEvent(makeEdit("Foo", "more", "10.0.0.1"))

	p, _ := store.Get("Foo", "enwiki")
	assert.Equal(t, 2, p.Edits)
	assert.Equal(t, 2, p.AnonEdits)
	assert.Len(t, p.Anons, 1, "set semantics, no duplicate growth")
	assert.Empty(t, p.Contributors)
	assert.Equal(t, 2, p.Distribution["10.0.0.1"])
}

func TestDistributionSumsAcrossEditors(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "a", "Jon"))
	svc.HandleEvent(makeEdit("Foo", "b", "Jon"))
	svc.HandleEvent(makeEdit("Foo", "c", "Ann"))
	svc.HandleEvent(makeEdit("Foo", "d", "10.0.0.1"))

	p, _ := store.Get("Foo", "enwiki")
	assert.Equal(t, 4, p.Edits)

	sum := 0
	for _, n := range p.Distribution {
		sum += n
	}
	assert.Equal(t, 4, sum)
	assert.Equal(t, 2, p.Distribution["Jon"])
}

func TestNewPageFlagIsSticky(t *testing.T) {
	svc, store := newAggregation(t, "*")

	ev := makeEdit("Foo", "created", "Jon")
	ev.Type = "new"
	svc.HandleEvent(ev)
	svc.HandleEvent(makeEdit("Foo", "followup", "Jon"))

	p, _ := store.Get("Foo", "enwiki")
	assert.True(t, p.IsNew)
}

func TestNamespaceFilter(t *testing.T) {
	svc, store := newAggregation(t, "*")

	ev := makeEdit("Talk:Foo", "yo", "Jon")
	ev.Namespace = 1
	svc.HandleEvent(ev)

	assert.Zero(t, store.Len())
}

func TestFixupFilter(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "Fixed error in reference", "Jon"))

	assert.Zero(t, store.Len())
}

func TestProjectFilter(t *testing.T) {
	svc, store := newAggregation(t, "en.wikipedia.org")

	matching := makeEdit("Foo", "yo", "Jon")
	matching.ServerName = "en.wikipedia.org"
	svc.HandleEvent(matching)

	other := makeEdit("Bar", "yo", "Jon")
	other.ServerName = "de.wikipedia.org"
	other.Wiki = "dewiki"
	svc.HandleEvent(other)

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("Foo", "enwiki")
	assert.True(t, ok)
}

func TestProjectWildcardSuffix(t *testing.T) {
	svc, store := newAggregation(t, "*.wikipedia.org")

	ev := makeEdit("Foo", "yo", "Jon")
	ev.Wiki = "dewiki"
	ev.ServerName = "de.wikipedia.org"
	svc.HandleEvent(ev)

	assert.Equal(t, 1, store.Len())
}

func TestInvalidEventDropped(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(&model.RecentChange{Comment: "no title or wiki"})

	assert.Zero(t, store.Len())
}

func TestServerNameFillsInWiki(t *testing.T) {
	svc, store := newAggregation(t, "*")

	ev := &model.RecentChange{
		Title:      "Foo",
		ServerName: "de.wikipedia.org",
		Namespace:  0,
		User:       "Jon",
		Comment:    "yo",
		Length:     model.PageLength{Old: 0, New: 5},
	}
	svc.HandleEvent(ev)

	_, ok := store.Get("Foo", "de.wikipedia.org")
	assert.True(t, ok)
}

func TestMoveLogEvent(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	move := &model.RecentChange{
		Title:     "Foo",
		Wiki:      "enwiki",
		Namespace: 0,
		Comment:   "Because",
		LogType:   "log",
		LogAction: "move",
	}
	require.NoError(t, move.LogParams.UnmarshalJSON([]byte(`{"target":"FoO"}`)))
	svc.HandleEvent(move)

	assert.Equal(t, 1, store.Len(), "exactly one record remains")
	p, ok := store.Get("FoO", "enwiki")
	require.True(t, ok)
	assert.Equal(t, "FoO", p.ID)
	assert.Equal(t, 1, p.Edits, "state carried across the rename")
}

func TestProtectLogEvent(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	protect := &model.RecentChange{
		Title:     "Foo",
		Wiki:      "enwiki",
		Comment:   "vandalism",
		LogType:   "log",
		LogAction: "protect",
	}
	svc.HandleEvent(protect)

	p, _ := store.Get("Foo", "enwiki")
	assert.True(t, p.IsProtected)
}

func TestDeleteLogEventExtractsTitleFromComment(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	del := &model.RecentChange{
		Title:            "Foo",
		Wiki:             "enwiki",
		Comment:          "deleted",
		LogType:          "log",
		LogAction:        "delete",
		LogActionComment: `deleted page &quot;[[Foo]]&quot; for reasons`,
	}
	svc.HandleEvent(del)

	assert.Zero(t, store.Len())
}

func TestDeleteLogEventUnparseableCommentIgnored(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	del := &model.RecentChange{
		Title:            "Foo",
		Wiki:             "enwiki",
		Comment:          "deleted",
		LogType:          "log",
		LogAction:        "delete",
		LogActionComment: "no quoted title here",
	}
	svc.HandleEvent(del)

	assert.Equal(t, 1, store.Len(), "best-effort deletion never errors")
}

func TestDeleteLogEventObjectParamsStillDropsPage(t *testing.T) {
	svc, store := newAggregation(t, "*")

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	// Object-shaped parameters carry no length, so the delete still falls
	// back to title extraction from the comment.
	del := &model.RecentChange{
		Title:            "Foo",
		Wiki:             "enwiki",
		Comment:          "deleted",
		LogType:          "log",
		LogAction:        "delete",
		LogActionComment: `deleted page &quot;[[Foo]]&quot; spam`,
	}
	require.NoError(t, del.LogParams.UnmarshalJSON([]byte(`{"suppressredirect":""}`)))
	svc.HandleEvent(del)

	assert.Zero(t, store.Len())
}

func TestLogEventNeverReachesEditAggregation(t *testing.T) {
	svc, store := newAggregation(t, "*")

	move := &model.RecentChange{
		Title:     "Foo",
		Wiki:      "enwiki",
		User:      "Jon",
		Comment:   "moved",
		LogType:   "log",
		LogAction: "move",
		Length:    model.PageLength{Old: 0, New: 100},
	}
	require.NoError(t, move.LogParams.UnmarshalJSON([]byte(`{"target":"Bar"}`)))
	svc.HandleEvent(move)

	p, ok := store.Get("Bar", "enwiki")
	require.True(t, ok)
	assert.Zero(t, p.Edits)
	assert.Zero(t, p.BytesChanged)
}

func TestNotificationCarriesPostMutationRecord(t *testing.T) {
	svc, _ := newAggregation(t, "*")

	var got *model.PageRecord
	svc.SetNotifyFunc(func(p *model.PageRecord) { got = p })

	svc.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	require.NotNil(t, got)
	assert.Equal(t, 1, got.Edits)
	assert.Contains(t, got.Contributors, "Jon")
}
