package models

import (
	"slices"
	"time"

	"github.com/simrailtools/backend-sub003/core/frames"
)

// ServerView is the display-ready projection of a Server.
type ServerView struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Region    string    `json:"region"`
	Online    bool      `json:"online"`
	UtcOffset int       `json:"utc_offset"`
	SceneryID *string   `json:"scenery_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewServerView projects a persisted server into its view.
func NewServerView(m Server) ServerView {
	return ServerView{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Region:    m.Region,
		Online:    m.Online,
		UtcOffset: m.UtcOffset,
		SceneryID: clonePtr(m.SceneryID),
		UpdatedAt: m.UpdatedAt,
	}
}

// Apply mutates only the attributes present in the frame.
func (v *ServerView) Apply(f frames.ServerFrame) {
	if f.Online != nil {
		v.Online = *f.Online
	}
	if f.UtcOffset != nil {
		v.UtcOffset = *f.UtcOffset
	}
	if f.SceneryID != nil {
		v.SceneryID = clonePtr(f.SceneryID)
	}
}

// Clone returns a deep copy safe to hand out of the cache.
func (v ServerView) Clone() ServerView {
	c := v
	c.SceneryID = clonePtr(v.SceneryID)
	return c
}

// JourneyView is the display-ready projection of a Journey.
type JourneyView struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"server_id"`
	TrainNumber string     `json:"train_number"`
	Category    string     `json:"category"`
	Cancelled   bool       `json:"cancelled"`
	FirstSeen   *time.Time `json:"first_seen,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	ContinuesAs *string    `json:"continues_as,omitempty"`
}

// NewJourneyView projects a persisted journey into its view.
func NewJourneyView(m Journey) JourneyView {
	return JourneyView{
		ID:          m.ID,
		ServerID:    m.ServerID,
		TrainNumber: m.TrainNumber,
		Category:    m.Category,
		Cancelled:   m.Cancelled,
		FirstSeen:   clonePtr(m.FirstSeen),
		LastSeen:    clonePtr(m.LastSeen),
		ContinuesAs: clonePtr(m.ContinuesAs),
	}
}

// Apply mutates only the attributes present in the frame.
func (v *JourneyView) Apply(f frames.JourneyFrame) {
	if f.Cancelled != nil {
		v.Cancelled = *f.Cancelled
	}
	if f.FirstSeen != nil {
		v.FirstSeen = clonePtr(f.FirstSeen)
	}
	if f.LastSeen != nil {
		v.LastSeen = clonePtr(f.LastSeen)
	}
	if f.ContinuesAs != nil {
		v.ContinuesAs = clonePtr(f.ContinuesAs)
	}
}

// Clone returns a deep copy safe to hand out of the cache.
func (v JourneyView) Clone() JourneyView {
	c := v
	c.FirstSeen = clonePtr(v.FirstSeen)
	c.LastSeen = clonePtr(v.LastSeen)
	c.ContinuesAs = clonePtr(v.ContinuesAs)
	return c
}

// DispatchPostView is the display-ready projection of a DispatchPost.
type DispatchPostView struct {
	ID          string   `json:"id"`
	ServerID    string   `json:"server_id"`
	Name        string   `json:"name"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Difficulty  int      `json:"difficulty"`
	Dispatchers []string `json:"dispatchers"`
}

// NewDispatchPostView projects a persisted dispatch post into its view.
func NewDispatchPostView(m DispatchPost) DispatchPostView {
	return DispatchPostView{
		ID:          m.ID,
		ServerID:    m.ServerID,
		Name:        m.Name,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		Difficulty:  m.Difficulty,
		Dispatchers: slices.Clone(m.Dispatchers),
	}
}

// Apply mutates only the attributes present in the frame.
func (v *DispatchPostView) Apply(f frames.DispatchPostFrame) {
	if f.Dispatchers != nil {
		v.Dispatchers = slices.Clone(*f.Dispatchers)
	}
}

// Clone returns a deep copy safe to hand out of the cache.
func (v DispatchPostView) Clone() DispatchPostView {
	c := v
	c.Dispatchers = slices.Clone(v.Dispatchers)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
