package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/feature/tracker"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	eventbus "github.com/jilio/ebu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePoller struct {
	servers  []tracker.ServerRecord
	journeys []tracker.JourneyRecord
	posts    []tracker.DispatchPostRecord
}

func (p *fakePoller) FetchServers(_ context.Context) ([]tracker.ServerRecord, error) {
	return p.servers, nil
}

func (p *fakePoller) FetchJourneys(_ context.Context) ([]tracker.JourneyRecord, error) {
	return p.journeys, nil
}

func (p *fakePoller) FetchDispatchPosts(_ context.Context) ([]tracker.DispatchPostRecord, error) {
	return p.posts, nil
}

// fakeStore records writes; save calls run concurrently inside the cycle's
// task scope, hence the mutex.
type fakeStore struct {
	mu sync.Mutex

	seedServers  []models.Server
	seedJourneys []models.Journey
	seedPosts    []models.DispatchPost

	saveServerErr error

	savedServers  []models.Server
	savedJourneys []models.Journey
	savedPosts    []models.DispatchPost
	deactivated   []string
}

func (s *fakeStore) ActiveServers(_ context.Context) ([]models.Server, error) {
	return s.seedServers, nil
}

func (s *fakeStore) ActiveJourneys(_ context.Context) ([]models.Journey, error) {
	return s.seedJourneys, nil
}

func (s *fakeStore) ActiveDispatchPosts(_ context.Context) ([]models.DispatchPost, error) {
	return s.seedPosts, nil
}

func (s *fakeStore) SaveServer(_ context.Context, m models.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveServerErr != nil {
		return s.saveServerErr
	}
	s.savedServers = append(s.savedServers, m)
	return nil
}

func (s *fakeStore) SaveJourney(_ context.Context, m models.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedJourneys = append(s.savedJourneys, m)
	return nil
}

func (s *fakeStore) SaveDispatchPost(_ context.Context, m models.DispatchPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedPosts = append(s.savedPosts, m)
	return nil
}

func (s *fakeStore) DeactivateServer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *fakeStore) DeactivateJourney(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *fakeStore) DeactivateDispatchPost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, id)
	return nil
}

// frameSink collects every published frame; the bus dispatches synchronously
// so no locking is needed once RunCycle returned.
type frameSink struct {
	servers  []frames.ServerFrame
	journeys []frames.JourneyFrame
	posts    []frames.DispatchPostFrame
}

func newFrameSink(t *testing.T, bus *eventbus.EventBus) *frameSink {
	t.Helper()
	sink := &frameSink{}
	require.NoError(t, eventbus.Subscribe(bus, func(f frames.ServerFrame) {
		sink.servers = append(sink.servers, f)
	}))
	require.NoError(t, eventbus.Subscribe(bus, func(f frames.JourneyFrame) {
		sink.journeys = append(sink.journeys, f)
	}))
	require.NoError(t, eventbus.Subscribe(bus, func(f frames.DispatchPostFrame) {
		sink.posts = append(sink.posts, f)
	}))
	return sink
}

func (s *frameSink) reset() {
	s.servers = nil
	s.journeys = nil
	s.posts = nil
}

func newCollector(poller *fakePoller, store *fakeStore) (*tracker.Collector, *eventbus.EventBus) {
	bus := eventbus.New()
	return tracker.NewCollector(poller, store, bus, zap.NewNop(), tracker.Config{MaxParallelSaves: 4}), bus
}

func serverRecord(foreignID string, online bool) tracker.ServerRecord {
	return tracker.ServerRecord{
		ForeignID: foreignID,
		Code:      "en1",
		Name:      "EN1",
		Region:    "Europe",
		Online:    online,
		UtcOffset: 1,
	}
}

func TestCollectorServerLifecycle(t *testing.T) {
	ctx := context.Background()
	poller := &fakePoller{servers: []tracker.ServerRecord{serverRecord("srv-1", true)}}
	store := &fakeStore{}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	// First observation publishes an identity-only add frame.
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	add := sink.servers[0]
	assert.Equal(t, frames.UpdateTypeAdd, add.Type)
	assert.NotEmpty(t, add.ServerID)
	assert.Nil(t, add.Online)
	require.Len(t, store.savedServers, 1)
	assert.True(t, store.savedServers[0].Active)

	// An unchanged snapshot publishes nothing.
	sink.reset()
	require.NoError(t, collector.RunCycle(ctx))
	assert.Empty(t, sink.servers)
	assert.Len(t, store.savedServers, 1)

	// A changed attribute publishes a diff-only update frame.
	sink.reset()
	poller.servers = []tracker.ServerRecord{serverRecord("srv-1", false)}
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	upd := sink.servers[0]
	assert.Equal(t, frames.UpdateTypeUpdate, upd.Type)
	assert.Equal(t, add.ServerID, upd.ServerID)
	require.NotNil(t, upd.Online)
	assert.False(t, *upd.Online)
	assert.Nil(t, upd.UtcOffset)
	assert.Nil(t, upd.SceneryID)

	// Disappearance publishes a remove frame and deactivates the row.
	sink.reset()
	poller.servers = nil
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	assert.Equal(t, frames.UpdateTypeRemove, sink.servers[0].Type)
	assert.Equal(t, []string{add.ServerID}, store.deactivated)

	// Still absent: the remove is not repeated.
	sink.reset()
	require.NoError(t, collector.RunCycle(ctx))
	assert.Empty(t, sink.servers)

	// Reappearance is announced as a fresh add for the same identity.
	sink.reset()
	poller.servers = []tracker.ServerRecord{serverRecord("srv-1", true)}
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	assert.Equal(t, frames.UpdateTypeAdd, sink.servers[0].Type)
	assert.Equal(t, add.ServerID, sink.servers[0].ServerID)
}

func TestCollectorJourneyLifecycle(t *testing.T) {
	ctx := context.Background()
	poller := &fakePoller{
		servers: []tracker.ServerRecord{serverRecord("srv-1", true)},
		journeys: []tracker.JourneyRecord{{
			RunID:           "run-1",
			ServerForeignID: "srv-1",
			TrainNumber:     "4128",
			Category:        "EIP",
		}},
	}
	store := &fakeStore{}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.journeys, 1)
	first := sink.journeys[0]
	assert.Equal(t, frames.UpdateTypeAdd, first.Type)
	require.Len(t, store.savedJourneys, 1)
	assert.NotNil(t, store.savedJourneys[0].FirstSeen)

	// Expiry removes the run.
	sink.reset()
	poller.journeys = nil
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.journeys, 1)
	assert.Equal(t, frames.UpdateTypeRemove, sink.journeys[0].Type)
	assert.Equal(t, first.JourneyID, sink.journeys[0].JourneyID)

	// A reappearing run becomes a brand new journey instance.
	sink.reset()
	poller.journeys = []tracker.JourneyRecord{{
		RunID:           "run-1",
		ServerForeignID: "srv-1",
		TrainNumber:     "4128",
		Category:        "EIP",
	}}
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.journeys, 1)
	assert.Equal(t, frames.UpdateTypeAdd, sink.journeys[0].Type)
	assert.NotEqual(t, first.JourneyID, sink.journeys[0].JourneyID)
}

func TestCollectorSkipsJourneyForUnknownServer(t *testing.T) {
	ctx := context.Background()
	poller := &fakePoller{
		journeys: []tracker.JourneyRecord{{
			RunID:           "run-1",
			ServerForeignID: "srv-unknown",
			TrainNumber:     "4128",
		}},
	}
	store := &fakeStore{}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	require.NoError(t, collector.RunCycle(ctx))
	assert.Empty(t, sink.journeys)
	assert.Empty(t, store.savedJourneys)
}

func TestCollectorFailedSaveSuppressesFrame(t *testing.T) {
	ctx := context.Background()
	poller := &fakePoller{servers: []tracker.ServerRecord{serverRecord("srv-1", true)}}
	store := &fakeStore{}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	serverID := sink.servers[0].ServerID

	// The save fails: no frame leaves the collector and the cycle errors.
	sink.reset()
	store.saveServerErr = errors.New("db down")
	poller.servers = []tracker.ServerRecord{serverRecord("srv-1", false)}
	err := collector.RunCycle(ctx)
	require.Error(t, err)
	assert.Empty(t, sink.servers)

	// After the store recovers, the lost change is re-detected and published.
	sink.reset()
	store.saveServerErr = nil
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	upd := sink.servers[0]
	assert.Equal(t, frames.UpdateTypeUpdate, upd.Type)
	assert.Equal(t, serverID, upd.ServerID)
	require.NotNil(t, upd.Online)
	assert.False(t, *upd.Online)
}

func TestCollectorSceneryChangeSurvivesFailedSave(t *testing.T) {
	ctx := context.Background()
	poller := &fakePoller{servers: []tracker.ServerRecord{serverRecord("srv-1", true)}}
	store := &fakeStore{}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	serverID := sink.servers[0].ServerID

	// The scenery appears while the store is down; the cycle aborts and
	// nothing is published.
	sink.reset()
	store.saveServerErr = errors.New("db down")
	scenery := "alpha"
	rec := serverRecord("srv-1", true)
	rec.SceneryID = &scenery
	poller.servers = []tracker.ServerRecord{rec}
	require.Error(t, collector.RunCycle(ctx))
	assert.Empty(t, sink.servers)

	// Recovery re-detects the pointer-typed change against the persisted
	// null and publishes it.
	sink.reset()
	store.saveServerErr = nil
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.servers, 1)
	upd := sink.servers[0]
	assert.Equal(t, frames.UpdateTypeUpdate, upd.Type)
	assert.Equal(t, serverID, upd.ServerID)
	require.NotNil(t, upd.SceneryID)
	assert.Equal(t, "alpha", *upd.SceneryID)
	require.Len(t, store.savedServers, 2)
	require.NotNil(t, store.savedServers[1].SceneryID)
	assert.Equal(t, "alpha", *store.savedServers[1].SceneryID)
}

func TestCollectorSeedSuppressesKnownEntities(t *testing.T) {
	ctx := context.Background()
	seeded := models.Server{
		ID:        "11111111-1111-1111-1111-111111111111",
		ForeignID: "srv-1",
		Code:      "en1",
		Name:      "EN1",
		Region:    "Europe",
		Online:    true,
		UtcOffset: 1,
		Active:    true,
	}
	poller := &fakePoller{servers: []tracker.ServerRecord{serverRecord("srv-1", true)}}
	store := &fakeStore{seedServers: []models.Server{seeded}}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	require.NoError(t, collector.Seed(ctx))
	require.NoError(t, collector.RunCycle(ctx))

	// The snapshot matches the persisted state: nothing to announce.
	assert.Empty(t, sink.servers)
	assert.Empty(t, store.savedServers)
}

func TestCollectorDispatchPostOccupation(t *testing.T) {
	ctx := context.Background()
	poller := &fakePoller{
		servers: []tracker.ServerRecord{serverRecord("srv-1", true)},
		posts: []tracker.DispatchPostRecord{{
			ForeignID:       "post-1",
			ServerForeignID: "srv-1",
			Name:            "Katowice Zawodzie",
		}},
	}
	store := &fakeStore{}
	collector, bus := newCollector(poller, store)
	sink := newFrameSink(t, bus)

	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.posts, 1)
	assert.Equal(t, frames.UpdateTypeAdd, sink.posts[0].Type)

	// A player taking the post yields a dispatchers-only update frame.
	sink.reset()
	poller.posts[0].Dispatchers = []string{"steam-1"}
	require.NoError(t, collector.RunCycle(ctx))
	require.Len(t, sink.posts, 1)
	upd := sink.posts[0]
	assert.Equal(t, frames.UpdateTypeUpdate, upd.Type)
	require.NotNil(t, upd.Dispatchers)
	assert.Equal(t, []string{"steam-1"}, *upd.Dispatchers)
}
