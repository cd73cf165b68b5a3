package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/metrics"
	"github.com/wikipulse/wikipulse/internal/service"
	"github.com/wikipulse/wikipulse/internal/storage/snapshot"
)

func newCollection(t *testing.T, cfg *service.CollectionConfig, blobs *snapshot.Store) *service.CollectionService {
	t.Helper()

	return service.NewCollectionService(cfg, blobs, metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func TestCollectionLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	collection := newCollection(t, &service.CollectionConfig{Project: "*"}, nil)

	collection.Start(context.Background())
	collection.HandleEvent(makeEdit("Foo", "yo", "Jon"))
	assert.Equal(t, 1, collection.Len())
	collection.Stop()

	// The channel close on Stop lets subscribers drain and exit.
	_, open := <-collection.Subscribe()
	assert.True(t, open)
	_, open = <-collection.Subscribe()
	assert.False(t, open)
}

func TestEventAfterStopIsDroppedNotPanicked(t *testing.T) {
	collection := newCollection(t, &service.CollectionConfig{Project: "*"}, nil)

	collection.Start(context.Background())
	collection.Stop()

	// A misordered host may deliver a straggler after shutdown; it must
	// still aggregate without touching the closed channel.
	assert.NotPanics(t, func() {
		collection.HandleEvent(makeEdit("Foo", "yo", "Jon"))
	})
	assert.Equal(t, 1, collection.Len())
}

func TestCollectionDefaults(t *testing.T) {
	collection := newCollection(t, &service.CollectionConfig{}, nil)

	// The default project filter admits only the flagship wiki.
	ev := makeEdit("Foo", "yo", "Jon")
	ev.ServerName = "de.wikipedia.org"
	ev.Wiki = ""
	collection.HandleEvent(ev)
	assert.Zero(t, collection.Len())

	ev = makeEdit("Foo", "yo", "Jon")
	ev.ServerName = "en.wikipedia.org"
	collection.HandleEvent(ev)
	assert.Equal(t, 1, collection.Len())
}

func TestSubscribeDeliversPostMutationRecords(t *testing.T) {
	collection := newCollection(t, &service.CollectionConfig{Project: "*"}, nil)

	collection.HandleEvent(makeEdit("Foo", "yo", "Jon"))
	collection.HandleEvent(makeEdit("Foo", "yo", "Ann"))

	n := <-collection.Subscribe()
	assert.Equal(t, "Foo", n.Page.Title)
	assert.Equal(t, 1, n.Page.Edits)
	assert.Same(t, collection, n.Collection)

	n = <-collection.Subscribe()
	assert.Equal(t, 2, n.Page.Edits)
}

func TestFullNotifyBufferDropsInsteadOfBlocking(t *testing.T) {
	collection := newCollection(t, &service.CollectionConfig{Project: "*", NotifyBuffer: 1}, nil)

	// Nobody is draining; the second notification must not block ingest.
	done := make(chan struct{})
	go func() {
		collection.HandleEvent(makeEdit("Foo", "yo", "Jon"))
		collection.HandleEvent(makeEdit("Foo", "yo", "Ann"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ingest blocked on a full notification buffer")
	}
	assert.Equal(t, 2, collection.GetPage("Foo", "enwiki").Edits)
}

func TestCollectionAdminOperations(t *testing.T) {
	collection := newCollection(t, &service.CollectionConfig{Project: "*"}, nil)

	collection.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	collection.MarkSafe("Foo", false)
	assert.True(t, collection.GetPage("Foo", "enwiki").Safe)

	collection.Protect("Foo", "enwiki")
	assert.True(t, collection.GetPage("Foo", "enwiki").IsProtected)

	collection.Drop("Foo", "enwiki")
	assert.Zero(t, collection.Len())
}

func TestCollectionPersistsAndRestores(t *testing.T) {
	logger := zap.NewNop()
	blobs, err := snapshot.Open(t.TempDir()+"/snapshots.db", logger)
	require.NoError(t, err)
	defer blobs.Close()

	cfg := &service.CollectionConfig{
		Project:       "*",
		CollectionID:  "col1",
		SweepInterval: 10 * time.Millisecond,
	}

	first := newCollection(t, cfg, blobs)
	first.Start(context.Background())
	first.HandleEvent(makeEdit("Foo", "yo", "Jon"))

	assert.Eventually(t, func() bool {
		_, err := blobs.Get(context.Background(), "col1")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	first.Stop()

	second := newCollection(t, &service.CollectionConfig{
		Project:      "*",
		CollectionID: "col1",
	}, blobs)
	second.Start(context.Background())
	defer second.Stop()

	page := second.GetPage("Foo", "enwiki")
	assert.Equal(t, 1, page.Edits)
	assert.Contains(t, page.Contributors, "Jon")
}
