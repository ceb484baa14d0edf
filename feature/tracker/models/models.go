package models

import "time"

// Server is a simulation server instance.
type Server struct {
	// ID is the stable internal identifier (uuid).
	ID string `gorm:"primaryKey;size:36"`
	// ForeignID is the identifier assigned by the upstream system. Not
	// unique: a server that vanishes and later reappears after a collector
	// restart is tracked as a fresh instance.
	ForeignID string `gorm:"index;size:64"`
	// Code is the short server code, e.g. "en1".
	Code string `gorm:"size:16"`
	// Name is the display name.
	Name string `gorm:"size:128"`
	// Region is the hosting region, e.g. "Europe".
	Region string `gorm:"size:64"`
	// Online is the last observed availability state.
	Online bool
	// UtcOffset is the server clock offset from UTC in hours.
	UtcOffset int
	// SceneryID identifies the scenery the server runs, when published.
	SceneryID *string `gorm:"size:64"`
	// Active is false once the server disappeared from upstream listings.
	Active bool `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Journey is one tracked train run on a server.
type Journey struct {
	ID string `gorm:"primaryKey;size:36"`
	// RunID is the upstream run identifier. A run that reappears after
	// expiry becomes a new journey instance.
	RunID string `gorm:"index;size:64"`
	// ServerID references the owning Server.
	ServerID string `gorm:"index;size:36"`
	// TrainNumber is the operational train number, e.g. "4128".
	TrainNumber string `gorm:"size:32"`
	// Category is the train category, e.g. "EIP".
	Category string `gorm:"size:16"`
	// Cancelled marks a run withdrawn by the timetable.
	Cancelled bool
	// FirstSeen is when the run first appeared in live data.
	FirstSeen *time.Time
	// LastSeen is when the run was last observed before expiring.
	LastSeen *time.Time
	// ContinuesAs holds the follow-up train number when the run rolls over.
	ContinuesAs *string `gorm:"size:32"`
	Active      bool    `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DispatchPost is a dispatch post on a server.
type DispatchPost struct {
	ID string `gorm:"primaryKey;size:36"`
	// ForeignID is the upstream post identifier.
	ForeignID string `gorm:"index;size:64"`
	// ServerID references the owning Server.
	ServerID string `gorm:"index;size:36"`
	// Name is the post name, e.g. "Katowice Zawodzie".
	Name string `gorm:"size:128"`
	// Latitude and Longitude locate the post; static upstream data.
	Latitude  float64
	Longitude float64
	// Difficulty is the upstream difficulty rating.
	Difficulty int
	// Dispatchers lists the Steam ids of players currently occupying the
	// post; empty means the post is bot-controlled.
	Dispatchers []string `gorm:"serializer:json"`
	Active      bool     `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
