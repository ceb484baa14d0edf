package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/core/taskscope"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	"github.com/google/uuid"
	eventbus "github.com/jilio/ebu"
	"go.uber.org/zap"
)

// Collector runs the poll-persist-publish cycle against the upstream
// simulation backend.
type Collector struct {
	poller Poller
	store  Store
	bus    *eventbus.EventBus
	log    *zap.Logger
	limit  int
	now    func() time.Time

	// Tracked state, keyed by the upstream identifiers. Owned by the
	// single cycle goroutine; no locking.
	servers  map[string]*trackedServer
	journeys map[string]*trackedJourney
	posts    map[string]*trackedPost
}

// NewCollector creates a collector over the given collaborators.
func NewCollector(poller Poller, store Store, bus *eventbus.EventBus, log *zap.Logger, cfg Config) *Collector {
	limit := cfg.MaxParallelSaves
	if limit <= 0 {
		limit = 8
	}
	return &Collector{
		poller:   poller,
		store:    store,
		bus:      bus,
		log:      log,
		limit:    limit,
		now:      time.Now,
		servers:  make(map[string]*trackedServer),
		journeys: make(map[string]*trackedJourney),
		posts:    make(map[string]*trackedPost),
	}
}

// Seed loads the active entities from storage so a restart does not emit
// spurious add frames for entities that were already tracked.
func (c *Collector) Seed(ctx context.Context) error {
	servers, err := c.store.ActiveServers(ctx)
	if err != nil {
		return err
	}
	for _, m := range servers {
		c.servers[m.ForeignID] = newTrackedServer(m)
	}

	journeys, err := c.store.ActiveJourneys(ctx)
	if err != nil {
		return err
	}
	for _, m := range journeys {
		c.journeys[m.RunID] = newTrackedJourney(m)
	}

	posts, err := c.store.ActiveDispatchPosts(ctx)
	if err != nil {
		return err
	}
	for _, m := range posts {
		c.posts[m.ForeignID] = newTrackedPost(m)
	}

	c.log.Info("Seeded tracked state",
		zap.Int("servers", len(servers)),
		zap.Int("journeys", len(journeys)),
		zap.Int("dispatch_posts", len(posts)))
	return nil
}

// Run polls in a loop until the context is cancelled. Cycle failures are
// logged and the loop continues with the next tick.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.RunCycle(ctx); err != nil {
			c.log.Error("Poll cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pendingPublish couples a built frame to the persistence task that must
// commit before the frame may be published.
type pendingPublish struct {
	frame     frames.Frame
	task      *taskscope.Task
	onSuccess func()
	onFailure func()
}

// RunCycle executes one poll cycle: fetch the upstream snapshot, detect
// changes through the dirty field groups, persist changed entities inside a
// fail-shutdown scope, and publish a frame for every committed task.
func (c *Collector) RunCycle(ctx context.Context) error {
	serverRecs, err := c.poller.FetchServers(ctx)
	if err != nil {
		return fmt.Errorf("failed to poll servers: %w", err)
	}
	journeyRecs, err := c.poller.FetchJourneys(ctx)
	if err != nil {
		return fmt.Errorf("failed to poll journeys: %w", err)
	}
	postRecs, err := c.poller.FetchDispatchPosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to poll dispatch posts: %w", err)
	}

	scope := taskscope.New(ctx).SetLimit(c.limit)
	var pending []pendingPublish
	pending = append(pending, c.trackServers(scope, serverRecs)...)
	pending = append(pending, c.trackJourneys(scope, journeyRecs)...)
	pending = append(pending, c.trackPosts(scope, postRecs)...)

	cycleErr := scope.Join().FirstErr()

	published := 0
	for _, p := range pending {
		if err := p.task.Err(); err != nil {
			if p.onFailure != nil {
				p.onFailure()
			}
			continue
		}
		if p.onSuccess != nil {
			p.onSuccess()
		}
		c.publish(p.frame)
		published++
	}

	if cycleErr != nil {
		return fmt.Errorf("poll cycle aborted after first failure: %w", cycleErr)
	}
	if published > 0 {
		c.log.Debug("Poll cycle published frames", zap.Int("frames", published))
	}
	return nil
}

func (c *Collector) trackServers(scope *taskscope.Scope, recs []ServerRecord) []pendingPublish {
	var pending []pendingPublish
	seen := make(map[string]struct{}, len(recs))

	for _, rec := range recs {
		rec := rec
		seen[rec.ForeignID] = struct{}{}

		t, ok := c.servers[rec.ForeignID]
		if !ok {
			// First observation: full insert, identity-only add frame.
			m := models.Server{
				ID:        uuid.NewString(),
				ForeignID: rec.ForeignID,
				Code:      rec.Code,
				Name:      rec.Name,
				Region:    rec.Region,
				Online:    rec.Online,
				UtcOffset: rec.UtcOffset,
				SceneryID: rec.SceneryID,
				Active:    true,
			}
			t = newTrackedServer(m)
			c.servers[rec.ForeignID] = t
			pending = append(pending, pendingPublish{
				frame: frames.ServerFrame{Type: frames.UpdateTypeAdd, ServerID: m.ID},
				task: scope.Fork(func(ctx context.Context) error {
					return c.store.SaveServer(ctx, m)
				}),
				onFailure: func() { delete(c.servers, rec.ForeignID) },
			})
			continue
		}

		if !t.model.Active {
			// The server came back after vanishing from the listing.
			t.applyRecord(rec)
			t.drainDirty()
			next := t.candidate(rec)
			pending = append(pending, pendingPublish{
				frame: frames.ServerFrame{Type: frames.UpdateTypeAdd, ServerID: next.ID},
				task: scope.Fork(func(ctx context.Context) error {
					return c.store.SaveServer(ctx, next)
				}),
				onSuccess: func() { t.model = next },
				onFailure: func() { t.prime() },
			})
			continue
		}

		t.applyRecord(rec)
		if !t.group.ConsumeDirty() {
			// Nothing changed; suppress the no-op update entirely.
			continue
		}
		frame := t.buildUpdateFrame()
		next := t.candidate(rec)
		pending = append(pending, pendingPublish{
			frame: frame,
			task: scope.Fork(func(ctx context.Context) error {
				return c.store.SaveServer(ctx, next)
			}),
			onSuccess: func() { t.model = next },
			onFailure: func() { t.prime() },
		})
	}

	for foreignID, t := range c.servers {
		t := t
		if _, ok := seen[foreignID]; ok || !t.model.Active {
			continue
		}
		pending = append(pending, pendingPublish{
			frame: frames.ServerFrame{Type: frames.UpdateTypeRemove, ServerID: t.model.ID},
			task: scope.Fork(func(ctx context.Context) error {
				return c.store.DeactivateServer(ctx, t.model.ID)
			}),
			onSuccess: func() { t.model.Active = false },
		})
	}

	return pending
}

func (c *Collector) trackJourneys(scope *taskscope.Scope, recs []JourneyRecord) []pendingPublish {
	var pending []pendingPublish
	seen := make(map[string]struct{}, len(recs))

	for _, rec := range recs {
		rec := rec
		serverID, ok := c.serverIDByForeign(rec.ServerForeignID)
		if !ok {
			// The owning server has not been observed yet; pick the
			// journey up on a later cycle.
			c.log.Debug("Skipping journey for unknown server",
				zap.String("run_id", rec.RunID),
				zap.String("server", rec.ServerForeignID))
			continue
		}
		seen[rec.RunID] = struct{}{}

		t, ok := c.journeys[rec.RunID]
		if !ok {
			firstSeen := c.now().UTC()
			m := models.Journey{
				ID:          uuid.NewString(),
				RunID:       rec.RunID,
				ServerID:    serverID,
				TrainNumber: rec.TrainNumber,
				Category:    rec.Category,
				Cancelled:   rec.Cancelled,
				ContinuesAs: rec.ContinuesAs,
				FirstSeen:   &firstSeen,
				Active:      true,
			}
			t = newTrackedJourney(m)
			c.journeys[rec.RunID] = t
			pending = append(pending, pendingPublish{
				frame: frames.JourneyFrame{Type: frames.UpdateTypeAdd, JourneyID: m.ID, ServerID: serverID},
				task: scope.Fork(func(ctx context.Context) error {
					return c.store.SaveJourney(ctx, m)
				}),
				onFailure: func() { delete(c.journeys, rec.RunID) },
			})
			continue
		}

		t.applyRecord(rec)
		if !t.group.ConsumeDirty() {
			continue
		}
		frame := t.buildUpdateFrame()
		next := t.candidate(rec)
		pending = append(pending, pendingPublish{
			frame: frame,
			task: scope.Fork(func(ctx context.Context) error {
				return c.store.SaveJourney(ctx, next)
			}),
			onSuccess: func() { t.model = next },
			onFailure: func() { t.prime() },
		})
	}

	for runID, t := range c.journeys {
		runID, t := runID, t
		if _, ok := seen[runID]; ok {
			continue
		}
		lastSeen := c.now().UTC()
		pending = append(pending, pendingPublish{
			frame: frames.JourneyFrame{Type: frames.UpdateTypeRemove, JourneyID: t.model.ID, ServerID: t.model.ServerID},
			task: scope.Fork(func(ctx context.Context) error {
				return c.store.DeactivateJourney(ctx, t.model.ID, lastSeen)
			}),
			// An expired run never comes back as the same journey.
			onSuccess: func() { delete(c.journeys, runID) },
		})
	}

	return pending
}

func (c *Collector) trackPosts(scope *taskscope.Scope, recs []DispatchPostRecord) []pendingPublish {
	var pending []pendingPublish
	seen := make(map[string]struct{}, len(recs))

	for _, rec := range recs {
		rec := rec
		serverID, ok := c.serverIDByForeign(rec.ServerForeignID)
		if !ok {
			c.log.Debug("Skipping dispatch post for unknown server",
				zap.String("post", rec.ForeignID),
				zap.String("server", rec.ServerForeignID))
			continue
		}
		seen[rec.ForeignID] = struct{}{}

		t, ok := c.posts[rec.ForeignID]
		if !ok {
			m := models.DispatchPost{
				ID:          uuid.NewString(),
				ForeignID:   rec.ForeignID,
				ServerID:    serverID,
				Name:        rec.Name,
				Latitude:    rec.Latitude,
				Longitude:   rec.Longitude,
				Difficulty:  rec.Difficulty,
				Dispatchers: rec.Dispatchers,
				Active:      true,
			}
			t = newTrackedPost(m)
			c.posts[rec.ForeignID] = t
			pending = append(pending, pendingPublish{
				frame: frames.DispatchPostFrame{Type: frames.UpdateTypeAdd, PostID: m.ID, ServerID: serverID},
				task: scope.Fork(func(ctx context.Context) error {
					return c.store.SaveDispatchPost(ctx, m)
				}),
				onFailure: func() { delete(c.posts, rec.ForeignID) },
			})
			continue
		}

		if !t.model.Active {
			t.applyRecord(rec)
			t.drainDirty()
			next := t.candidate(rec)
			pending = append(pending, pendingPublish{
				frame: frames.DispatchPostFrame{Type: frames.UpdateTypeAdd, PostID: next.ID, ServerID: next.ServerID},
				task: scope.Fork(func(ctx context.Context) error {
					return c.store.SaveDispatchPost(ctx, next)
				}),
				onSuccess: func() { t.model = next },
				onFailure: func() { t.prime() },
			})
			continue
		}

		t.applyRecord(rec)
		if !t.group.ConsumeDirty() {
			continue
		}
		frame := t.buildUpdateFrame()
		next := t.candidate(rec)
		pending = append(pending, pendingPublish{
			frame: frame,
			task: scope.Fork(func(ctx context.Context) error {
				return c.store.SaveDispatchPost(ctx, next)
			}),
			onSuccess: func() { t.model = next },
			onFailure: func() { t.prime() },
		})
	}

	for foreignID, t := range c.posts {
		t := t
		if _, ok := seen[foreignID]; ok || !t.model.Active {
			continue
		}
		pending = append(pending, pendingPublish{
			frame: frames.DispatchPostFrame{Type: frames.UpdateTypeRemove, PostID: t.model.ID, ServerID: t.model.ServerID},
			task: scope.Fork(func(ctx context.Context) error {
				return c.store.DeactivateDispatchPost(ctx, t.model.ID)
			}),
			onSuccess: func() { t.model.Active = false },
		})
	}

	return pending
}

func (c *Collector) serverIDByForeign(foreignID string) (string, bool) {
	t, ok := c.servers[foreignID]
	if !ok || !t.model.Active {
		return "", false
	}
	return t.model.ID, true
}

func (c *Collector) publish(f frames.Frame) {
	if f.FrameType() == frames.UpdateTypeUpdate && !f.Changed() {
		// The dirty group never hands over an empty diff; an empty update
		// reaching this point is a tracking bug.
		c.log.Warn("Suppressing empty update frame",
			zap.String("kind", string(f.FrameKind())),
			zap.String("entity", f.EntityID()))
		return
	}
	switch v := f.(type) {
	case frames.ServerFrame:
		eventbus.Publish(c.bus, v)
	case frames.JourneyFrame:
		eventbus.Publish(c.bus, v)
	case frames.DispatchPostFrame:
		eventbus.Publish(c.bus, v)
	default:
		c.log.Warn("Dropping frame of unknown type", zap.String("kind", string(f.FrameKind())))
	}
}
