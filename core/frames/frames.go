package frames

import "time"

// UpdateType discriminates what a frame means for the targeted entity.
type UpdateType string

const (
	// UpdateTypeAdd announces an entity observed for the first time.
	UpdateTypeAdd UpdateType = "add"
	// UpdateTypeUpdate carries the changed attributes of a known entity.
	UpdateTypeUpdate UpdateType = "update"
	// UpdateTypeRemove announces that an entity expired or was deleted.
	UpdateTypeRemove UpdateType = "remove"
)

// Kind identifies the tracked entity category a frame belongs to.
type Kind string

const (
	// KindServers covers simulation server instances.
	KindServers Kind = "servers"
	// KindJourneys covers train journeys.
	KindJourneys Kind = "journeys"
	// KindDispatchPosts covers dispatch posts.
	KindDispatchPosts Kind = "dispatch_posts"
)

// Kinds lists every streamed entity kind.
func Kinds() []Kind {
	return []Kind{KindServers, KindJourneys, KindDispatchPosts}
}

// Frame is the common surface of the per-kind delta events.
type Frame interface {
	// FrameKind returns the entity kind the frame targets.
	FrameKind() Kind
	// FrameType returns the update type.
	FrameType() UpdateType
	// EntityID returns the internal id of the targeted entity.
	EntityID() string
	// ScopeServerID returns the id of the simulation server the entity
	// belongs to. Per-client fan-out matches registrations against this
	// composite key component.
	ScopeServerID() string
	// Changed reports whether the frame carries at least one attribute
	// delta. Identity-only add and remove frames report false.
	Changed() bool
}

// ServerFrame is the delta event for a simulation server.
type ServerFrame struct {
	Type     UpdateType `json:"type"`
	ServerID string     `json:"server_id"`

	Online    *bool   `json:"online,omitempty"`
	UtcOffset *int    `json:"utc_offset,omitempty"`
	SceneryID *string `json:"scenery_id,omitempty"`
}

func (f ServerFrame) FrameKind() Kind       { return KindServers }
func (f ServerFrame) FrameType() UpdateType { return f.Type }
func (f ServerFrame) EntityID() string      { return f.ServerID }
func (f ServerFrame) ScopeServerID() string { return f.ServerID }

// Changed reports whether the frame carries at least one attribute.
func (f ServerFrame) Changed() bool {
	return f.Online != nil || f.UtcOffset != nil || f.SceneryID != nil
}

// JourneyFrame is the delta event for a train journey.
type JourneyFrame struct {
	Type      UpdateType `json:"type"`
	JourneyID string     `json:"journey_id"`
	ServerID  string     `json:"server_id"`

	Cancelled   *bool      `json:"cancelled,omitempty"`
	FirstSeen   *time.Time `json:"first_seen,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	ContinuesAs *string    `json:"continues_as,omitempty"`
}

func (f JourneyFrame) FrameKind() Kind       { return KindJourneys }
func (f JourneyFrame) FrameType() UpdateType { return f.Type }
func (f JourneyFrame) EntityID() string      { return f.JourneyID }
func (f JourneyFrame) ScopeServerID() string { return f.ServerID }

// Changed reports whether the frame carries at least one attribute.
func (f JourneyFrame) Changed() bool {
	return f.Cancelled != nil || f.FirstSeen != nil || f.LastSeen != nil || f.ContinuesAs != nil
}

// DispatchPostFrame is the delta event for a dispatch post.
type DispatchPostFrame struct {
	Type     UpdateType `json:"type"`
	PostID   string     `json:"post_id"`
	ServerID string     `json:"server_id"`

	// Dispatchers is the full occupancy list; a nil pointer means the
	// occupancy did not change, an empty list means the post is vacant.
	Dispatchers *[]string `json:"dispatchers,omitempty"`
}

func (f DispatchPostFrame) FrameKind() Kind       { return KindDispatchPosts }
func (f DispatchPostFrame) FrameType() UpdateType { return f.Type }
func (f DispatchPostFrame) EntityID() string      { return f.PostID }
func (f DispatchPostFrame) ScopeServerID() string { return f.ServerID }

// Changed reports whether the frame carries at least one attribute.
func (f DispatchPostFrame) Changed() bool {
	return f.Dispatchers != nil
}
