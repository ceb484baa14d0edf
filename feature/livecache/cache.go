package livecache

import (
	"context"
	"sync"

	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is the read-only storage collaborator of the cache.
type Store interface {
	ActiveServerViews(ctx context.Context) ([]models.ServerView, error)
	ActiveJourneyViews(ctx context.Context) ([]models.JourneyView, error)
	ActiveDispatchPostViews(ctx context.Context) ([]models.DispatchPostView, error)

	ServerViewByID(ctx context.Context, id string) (*models.ServerView, error)
	JourneyViewByID(ctx context.Context, id string) (*models.JourneyView, error)
	DispatchPostViewByID(ctx context.Context, id string) (*models.DispatchPostView, error)
}

// Event is delivered to listeners after a frame has been applied. Snapshot
// is the post-apply view (nil for removes and dropped frames).
type Event struct {
	Frame    frames.Frame
	Snapshot any
	// Applied is false when the frame was dropped as a benign race.
	Applied bool
}

// Listener receives applied-frame events in application order.
type Listener func(ev Event)

// ResyncListener is notified after a full resync completed successfully.
type ResyncListener func(ctx context.Context)

// Cache is the consumer-side materialized snapshot of all tracked entities.
type Cache struct {
	store Store
	log   *zap.Logger

	mu       sync.RWMutex
	servers  map[string]models.ServerView
	journeys map[string]models.JourneyView
	posts    map[string]models.DispatchPostView

	sf              singleflight.Group
	listeners       []Listener
	resyncListeners []ResyncListener
}

// New creates an empty cache over the storage collaborator.
func New(store Store, log *zap.Logger) *Cache {
	return &Cache{
		store:    store,
		log:      log,
		servers:  make(map[string]models.ServerView),
		journeys: make(map[string]models.JourneyView),
		posts:    make(map[string]models.DispatchPostView),
	}
}

// AddListener registers a listener for applied frames. Not safe to call
// concurrently with frame application; wire listeners during startup.
func (c *Cache) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// AddResyncListener registers a listener for completed resyncs.
func (c *Cache) AddResyncListener(l ResyncListener) {
	c.resyncListeners = append(c.resyncListeners, l)
}

// Seed bulk-loads the authoritative current state of every collection.
func (c *Cache) Seed(ctx context.Context) error {
	servers, journeys, posts, err := c.fetchAll(ctx)
	if err != nil {
		return err
	}
	c.replace(servers, journeys, posts)
	c.log.Info("Snapshot cache seeded",
		zap.Int("servers", len(servers)),
		zap.Int("journeys", len(journeys)),
		zap.Int("dispatch_posts", len(posts)))
	return nil
}

// Apply folds one frame into the cache and notifies the listeners.
func (c *Cache) Apply(ctx context.Context, f frames.Frame) {
	var (
		snapshot any
		applied  bool
	)
	switch frame := f.(type) {
	case frames.ServerFrame:
		snapshot, applied = c.applyServer(ctx, frame)
	case frames.JourneyFrame:
		snapshot, applied = c.applyJourney(ctx, frame)
	case frames.DispatchPostFrame:
		snapshot, applied = c.applyPost(ctx, frame)
	default:
		c.log.Warn("Ignoring frame of unknown kind", zap.String("kind", string(f.FrameKind())))
		return
	}

	ev := Event{Frame: f, Snapshot: snapshot, Applied: applied}
	for _, l := range c.listeners {
		l(ev)
	}
}

func (c *Cache) applyServer(ctx context.Context, f frames.ServerFrame) (any, bool) {
	switch f.Type {
	case frames.UpdateTypeAdd:
		c.mu.RLock()
		_, exists := c.servers[f.ServerID]
		c.mu.RUnlock()
		if exists {
			// Duplicate add under at-least-once delivery.
			c.mu.RLock()
			v := c.servers[f.ServerID].Clone()
			c.mu.RUnlock()
			return v, true
		}
		view, err := c.store.ServerViewByID(ctx, f.ServerID)
		if err != nil || view == nil {
			c.logFetchMiss("server", f.ServerID, err)
			return nil, false
		}
		c.mu.Lock()
		c.servers[f.ServerID] = *view
		c.mu.Unlock()
		return view.Clone(), true

	case frames.UpdateTypeUpdate:
		c.mu.Lock()
		v, ok := c.servers[f.ServerID]
		if ok {
			v.Apply(f)
			c.servers[f.ServerID] = v
			clone := v.Clone()
			c.mu.Unlock()
			return clone, true
		}
		c.mu.Unlock()
		// Fetch-on-miss, once; a miss after the fetch is a benign race
		// with a concurrent removal.
		view, err := c.store.ServerViewByID(ctx, f.ServerID)
		if err != nil || view == nil {
			c.logFetchMiss("server", f.ServerID, err)
			return nil, false
		}
		view.Apply(f)
		c.mu.Lock()
		c.servers[f.ServerID] = *view
		c.mu.Unlock()
		return view.Clone(), true

	case frames.UpdateTypeRemove:
		c.mu.Lock()
		delete(c.servers, f.ServerID)
		c.mu.Unlock()
		return nil, true
	}
	return nil, false
}

func (c *Cache) applyJourney(ctx context.Context, f frames.JourneyFrame) (any, bool) {
	switch f.Type {
	case frames.UpdateTypeAdd:
		c.mu.RLock()
		existing, exists := c.journeys[f.JourneyID]
		c.mu.RUnlock()
		if exists {
			return existing.Clone(), true
		}
		view, err := c.store.JourneyViewByID(ctx, f.JourneyID)
		if err != nil || view == nil {
			c.logFetchMiss("journey", f.JourneyID, err)
			return nil, false
		}
		c.mu.Lock()
		c.journeys[f.JourneyID] = *view
		c.mu.Unlock()
		return view.Clone(), true

	case frames.UpdateTypeUpdate:
		c.mu.Lock()
		v, ok := c.journeys[f.JourneyID]
		if ok {
			v.Apply(f)
			c.journeys[f.JourneyID] = v
			clone := v.Clone()
			c.mu.Unlock()
			return clone, true
		}
		c.mu.Unlock()
		view, err := c.store.JourneyViewByID(ctx, f.JourneyID)
		if err != nil || view == nil {
			c.logFetchMiss("journey", f.JourneyID, err)
			return nil, false
		}
		view.Apply(f)
		c.mu.Lock()
		c.journeys[f.JourneyID] = *view
		c.mu.Unlock()
		return view.Clone(), true

	case frames.UpdateTypeRemove:
		c.mu.Lock()
		delete(c.journeys, f.JourneyID)
		c.mu.Unlock()
		return nil, true
	}
	return nil, false
}

func (c *Cache) applyPost(ctx context.Context, f frames.DispatchPostFrame) (any, bool) {
	switch f.Type {
	case frames.UpdateTypeAdd:
		c.mu.RLock()
		existing, exists := c.posts[f.PostID]
		c.mu.RUnlock()
		if exists {
			return existing.Clone(), true
		}
		view, err := c.store.DispatchPostViewByID(ctx, f.PostID)
		if err != nil || view == nil {
			c.logFetchMiss("dispatch post", f.PostID, err)
			return nil, false
		}
		c.mu.Lock()
		c.posts[f.PostID] = *view
		c.mu.Unlock()
		return view.Clone(), true

	case frames.UpdateTypeUpdate:
		c.mu.Lock()
		v, ok := c.posts[f.PostID]
		if ok {
			v.Apply(f)
			c.posts[f.PostID] = v
			clone := v.Clone()
			c.mu.Unlock()
			return clone, true
		}
		c.mu.Unlock()
		view, err := c.store.DispatchPostViewByID(ctx, f.PostID)
		if err != nil || view == nil {
			c.logFetchMiss("dispatch post", f.PostID, err)
			return nil, false
		}
		view.Apply(f)
		c.mu.Lock()
		c.posts[f.PostID] = *view
		c.mu.Unlock()
		return view.Clone(), true

	case frames.UpdateTypeRemove:
		c.mu.Lock()
		delete(c.posts, f.PostID)
		c.mu.Unlock()
		return nil, true
	}
	return nil, false
}

// TriggerResync schedules a full discard-and-rebuild of the cache. It
// returns immediately; overlapping triggers collapse into the refresh
// already in flight.
func (c *Cache) TriggerResync(ctx context.Context) {
	go func() {
		_, err, _ := c.sf.Do("resync", func() (any, error) {
			servers, journeys, posts, err := c.fetchAll(ctx)
			if err != nil {
				return nil, err
			}
			c.replace(servers, journeys, posts)
			c.log.Info("Snapshot cache resynced",
				zap.Int("servers", len(servers)),
				zap.Int("journeys", len(journeys)),
				zap.Int("dispatch_posts", len(posts)))
			for _, l := range c.resyncListeners {
				l(ctx)
			}
			return nil, nil
		})
		// Singleflight already collapses concurrent triggers into one
		// refresh, so a failure is reported even when the result was shared.
		if err != nil {
			c.log.Error("Cache resync failed", zap.Error(err))
		}
	}()
}

func (c *Cache) fetchAll(ctx context.Context) ([]models.ServerView, []models.JourneyView, []models.DispatchPostView, error) {
	servers, err := c.store.ActiveServerViews(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	journeys, err := c.store.ActiveJourneyViews(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	posts, err := c.store.ActiveDispatchPostViews(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return servers, journeys, posts, nil
}

// replace swaps in freshly fetched collections wholesale.
func (c *Cache) replace(servers []models.ServerView, journeys []models.JourneyView, posts []models.DispatchPostView) {
	newServers := make(map[string]models.ServerView, len(servers))
	for _, v := range servers {
		newServers[v.ID] = v
	}
	newJourneys := make(map[string]models.JourneyView, len(journeys))
	for _, v := range journeys {
		newJourneys[v.ID] = v
	}
	newPosts := make(map[string]models.DispatchPostView, len(posts))
	for _, v := range posts {
		newPosts[v.ID] = v
	}

	c.mu.Lock()
	c.servers = newServers
	c.journeys = newJourneys
	c.posts = newPosts
	c.mu.Unlock()
}

func (c *Cache) logFetchMiss(kind, id string, err error) {
	if err != nil {
		c.log.Warn("Dropping frame, entity fetch failed",
			zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return
	}
	// Entity deleted concurrently; the frame is stale and safe to drop.
	c.log.Debug("Dropping frame for vanished entity",
		zap.String("kind", kind), zap.String("id", id))
}

// Server returns a copy of one cached server view.
func (c *Cache) Server(id string) (models.ServerView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.servers[id]
	if !ok {
		return models.ServerView{}, false
	}
	return v.Clone(), true
}

// Journey returns a copy of one cached journey view.
func (c *Cache) Journey(id string) (models.JourneyView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.journeys[id]
	if !ok {
		return models.JourneyView{}, false
	}
	return v.Clone(), true
}

// DispatchPost returns a copy of one cached dispatch post view.
func (c *Cache) DispatchPost(id string) (models.DispatchPostView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.posts[id]
	if !ok {
		return models.DispatchPostView{}, false
	}
	return v.Clone(), true
}

// Servers returns a copy of all cached server views.
func (c *Cache) Servers() []models.ServerView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ServerView, 0, len(c.servers))
	for _, v := range c.servers {
		out = append(out, v.Clone())
	}
	return out
}

// Journeys returns a copy of the cached journey views, optionally filtered
// by server.
func (c *Cache) Journeys(serverID string) []models.JourneyView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.JourneyView, 0, len(c.journeys))
	for _, v := range c.journeys {
		if serverID != "" && v.ServerID != serverID {
			continue
		}
		out = append(out, v.Clone())
	}
	return out
}

// DispatchPosts returns a copy of the cached dispatch post views, optionally
// filtered by server.
func (c *Cache) DispatchPosts(serverID string) []models.DispatchPostView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.DispatchPostView, 0, len(c.posts))
	for _, v := range c.posts {
		if serverID != "" && v.ServerID != serverID {
			continue
		}
		out = append(out, v.Clone())
	}
	return out
}

// Sizes reports the cached entity counts per kind.
func (c *Cache) Sizes() map[frames.Kind]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[frames.Kind]int{
		frames.KindServers:       len(c.servers),
		frames.KindJourneys:      len(c.journeys),
		frames.KindDispatchPosts: len(c.posts),
	}
}
