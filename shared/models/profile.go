package models

import (
	"time"
)

// Visualizer is a cosmetic audio-reactive animation style. The set is closed:
// every profile owns Bars, the rest are unlocked through duffles.
type Visualizer string

const (
	VisualizerBars Visualizer = "Bars"
	VisualizerWave Visualizer = "Wave"
	VisualizerOrb  Visualizer = "Orb"
)

// ValidVisualizer reports whether v is a member of the closed visualizer set.
func ValidVisualizer(v Visualizer) bool {
	switch v {
	case VisualizerBars, VisualizerWave, VisualizerOrb:
		return true
	}
	return false
}

// Role distinguishes what kind of account a profile is.
type Role string

const (
	RoleArtist   Role = "Artist"
	RoleProducer Role = "Producer"
)

// DuffleStatus is the lifecycle state of a reward container.
type DuffleStatus string

const (
	DuffleLocked DuffleStatus = "locked"
	DuffleReady  DuffleStatus = "ready"
	DuffleOpened DuffleStatus = "opened"
)

// DuffleType is the flavor of a duffle. The payout range is currently the
// same for all three, the type is informational.
type DuffleType string

const (
	DuffleStandard DuffleType = "Standard"
	DuffleGold     DuffleType = "Gold"
	DuffleDiamond  DuffleType = "Diamond"
)

// Duffle is a timed reward container owned by a single profile. It stays
// locked until UnlocksAt elapses, becomes ready, and is removed from the
// profile's list when opened. Opening is always an explicit action.
type Duffle struct {
	ID         string       `bson:"id" json:"id"`
	Type       DuffleType   `bson:"type" json:"type"`
	Status     DuffleStatus `bson:"status" json:"status"`
	AcquiredAt int64        `bson:"acquired_at" json:"acquiredAt"` // epoch millis
	UnlocksAt  int64        `bson:"unlocks_at" json:"unlocksAt"`   // epoch millis
}

// Matured reports whether the duffle's unlock timer has elapsed at now.
// A locked duffle whose timer elapsed is eligible for the locked -> ready
// transition; an opened duffle never matures again.
func (d Duffle) Matured(now time.Time) bool {
	return d.Status == DuffleLocked && now.UnixMilli() >= d.UnlocksAt
}

// Profile is a user's account data stored persistently in MongoDB.
// Rank is derived from Reputation and recomputed on read, never trusted
// from storage.
type Profile struct {
	ID                  string       `bson:"_id" json:"id"`
	Username            string       `bson:"username" json:"username"`
	AvatarURL           string       `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Bio                 string       `bson:"bio,omitempty" json:"bio,omitempty"`
	Role                Role         `bson:"role" json:"role"`
	Crew                string       `bson:"crew,omitempty" json:"crew,omitempty"`
	Coins               int64        `bson:"coins" json:"coins"`
	Reputation          int64        `bson:"reputation" json:"reputation"`
	Rank                string       `bson:"rank" json:"rank"`
	Wins                int64        `bson:"wins" json:"wins"`
	Losses              int64        `bson:"losses" json:"losses"`
	Duffles             []Duffle     `bson:"duffles" json:"duffles"`
	UnlockedVisualizers []Visualizer `bson:"unlocked_visualizers" json:"unlockedVisualizers"`
	ActiveVisualizer    Visualizer   `bson:"active_visualizer" json:"activeVisualizer"`
	CreatedAt           *time.Time   `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	LastSeenAt          *time.Time   `bson:"last_seen_at,omitempty" json:"lastSeenAt,omitempty"`
}

// HasVisualizer reports whether v is in the profile's unlocked set.
func (p *Profile) HasVisualizer(v Visualizer) bool {
	for _, u := range p.UnlockedVisualizers {
		if u == v {
			return true
		}
	}
	return false
}

// DuffleByID returns the duffle with the given id, or nil if the profile
// does not hold it.
func (p *Profile) DuffleByID(id string) *Duffle {
	for i := range p.Duffles {
		if p.Duffles[i].ID == id {
			return &p.Duffles[i]
		}
	}
	return nil
}
