package tracker

import (
	"github.com/simrailtools/backend-sub003/core/dirty"
	"github.com/simrailtools/backend-sub003/core/frames"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"
)

// trackedServer holds the field group backing one server's mutable
// attributes plus the last successfully persisted model.
type trackedServer struct {
	model models.Server

	group     *dirty.Group
	online    *dirty.Field[bool]
	utcOffset *dirty.Field[int]
	scenery   *dirty.Field[string]
}

func newTrackedServer(m models.Server) *trackedServer {
	t := &trackedServer{model: m, group: dirty.NewGroup()}
	t.online = dirty.NewField[bool](t.group)
	t.utcOffset = dirty.NewField[int](t.group)
	t.scenery = dirty.NewNullableField[string](t.group)
	t.prime()
	return t
}

// prime re-syncs the fields to the persisted model and swallows the
// resulting dirty flags. Used at construction and after a failed save so the
// next cycle re-detects the lost change. The nullable scenery field restores
// a persisted null exactly; a plain field would keep the unsaved value.
func (t *trackedServer) prime() {
	t.online.Set(t.model.Online)
	t.utcOffset.Set(t.model.UtcOffset)
	t.scenery.Update(t.model.SceneryID)
	t.online.ConsumeDirty()
	t.utcOffset.ConsumeDirty()
	t.scenery.ConsumeDirty()
	t.group.ConsumeDirty()
}

// drainDirty swallows pending dirty flags without building a frame. Used on
// reactivation, where the add frame already implies a full consumer fetch.
func (t *trackedServer) drainDirty() {
	t.online.ConsumeDirty()
	t.utcOffset.ConsumeDirty()
	t.scenery.ConsumeDirty()
	t.group.ConsumeDirty()
}

func (t *trackedServer) applyRecord(rec ServerRecord) {
	t.online.Set(rec.Online)
	t.utcOffset.Set(rec.UtcOffset)
	// A nil upstream scenery means "no change", never "cleared".
	if rec.SceneryID != nil {
		t.scenery.Set(*rec.SceneryID)
	}
}

// buildUpdateFrame consumes the per-field dirty flags into a minimal frame.
func (t *trackedServer) buildUpdateFrame() frames.ServerFrame {
	f := frames.ServerFrame{Type: frames.UpdateTypeUpdate, ServerID: t.model.ID}
	if t.online.ConsumeDirty() {
		f.Online = t.online.Ptr()
	}
	if t.utcOffset.ConsumeDirty() {
		f.UtcOffset = t.utcOffset.Ptr()
	}
	if t.scenery.ConsumeDirty() {
		f.SceneryID = t.scenery.Ptr()
	}
	return f
}

// candidate assembles the model that a successful save will make current.
func (t *trackedServer) candidate(rec ServerRecord) models.Server {
	next := t.model
	next.Code = rec.Code
	next.Name = rec.Name
	next.Region = rec.Region
	next.Online, _ = t.online.Value()
	next.UtcOffset, _ = t.utcOffset.Value()
	next.SceneryID = t.scenery.Ptr()
	next.Active = true
	return next
}

// trackedJourney mirrors trackedServer for journeys.
type trackedJourney struct {
	model models.Journey

	group       *dirty.Group
	cancelled   *dirty.Field[bool]
	continuesAs *dirty.Field[string]
}

func newTrackedJourney(m models.Journey) *trackedJourney {
	t := &trackedJourney{model: m, group: dirty.NewGroup()}
	t.cancelled = dirty.NewField[bool](t.group)
	t.continuesAs = dirty.NewNullableField[string](t.group)
	t.prime()
	return t
}

func (t *trackedJourney) prime() {
	t.cancelled.Set(t.model.Cancelled)
	t.continuesAs.Update(t.model.ContinuesAs)
	t.cancelled.ConsumeDirty()
	t.continuesAs.ConsumeDirty()
	t.group.ConsumeDirty()
}

func (t *trackedJourney) applyRecord(rec JourneyRecord) {
	t.cancelled.Set(rec.Cancelled)
	// Same nil-means-no-change policy as the server scenery.
	if rec.ContinuesAs != nil {
		t.continuesAs.Set(*rec.ContinuesAs)
	}
}

func (t *trackedJourney) buildUpdateFrame() frames.JourneyFrame {
	f := frames.JourneyFrame{
		Type:      frames.UpdateTypeUpdate,
		JourneyID: t.model.ID,
		ServerID:  t.model.ServerID,
	}
	if t.cancelled.ConsumeDirty() {
		f.Cancelled = t.cancelled.Ptr()
	}
	if t.continuesAs.ConsumeDirty() {
		f.ContinuesAs = t.continuesAs.Ptr()
	}
	return f
}

func (t *trackedJourney) candidate(rec JourneyRecord) models.Journey {
	next := t.model
	next.TrainNumber = rec.TrainNumber
	next.Category = rec.Category
	next.Cancelled, _ = t.cancelled.Value()
	next.ContinuesAs = t.continuesAs.Ptr()
	next.Active = true
	return next
}

// trackedPost mirrors trackedServer for dispatch posts.
type trackedPost struct {
	model models.DispatchPost

	group       *dirty.Group
	dispatchers *dirty.SliceField[string]
}

func newTrackedPost(m models.DispatchPost) *trackedPost {
	t := &trackedPost{model: m, group: dirty.NewGroup()}
	t.dispatchers = dirty.NewSliceField[string](t.group)
	t.prime()
	return t
}

func (t *trackedPost) prime() {
	t.dispatchers.Update(t.model.Dispatchers)
	t.dispatchers.ConsumeDirty()
	t.group.ConsumeDirty()
}

func (t *trackedPost) drainDirty() {
	t.dispatchers.ConsumeDirty()
	t.group.ConsumeDirty()
}

func (t *trackedPost) applyRecord(rec DispatchPostRecord) {
	t.dispatchers.Update(rec.Dispatchers)
}

func (t *trackedPost) buildUpdateFrame() frames.DispatchPostFrame {
	f := frames.DispatchPostFrame{
		Type:     frames.UpdateTypeUpdate,
		PostID:   t.model.ID,
		ServerID: t.model.ServerID,
	}
	if t.dispatchers.ConsumeDirty() {
		v := t.dispatchers.Value()
		if v == nil {
			v = []string{}
		}
		f.Dispatchers = &v
	}
	return f
}

func (t *trackedPost) candidate(rec DispatchPostRecord) models.DispatchPost {
	next := t.model
	next.Name = rec.Name
	next.Latitude = rec.Latitude
	next.Longitude = rec.Longitude
	next.Difficulty = rec.Difficulty
	next.Dispatchers = t.dispatchers.Value()
	next.Active = true
	return next
}
