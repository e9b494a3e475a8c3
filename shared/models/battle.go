package models

import (
	"time"
)

// BattleStatus is the lifecycle state of a battle. "hot" is a promotional
// reclassification of "active" and behaves identically for voting.
type BattleStatus string

const (
	BattleOpen   BattleStatus = "open"   // defender slot empty
	BattleActive BattleStatus = "active" // both slots filled, accepting votes
	BattleHot    BattleStatus = "hot"    // active + featured
	BattleEnded  BattleStatus = "ended"  // terminal, votes rejected
)

// BattleSide identifies one of the two participant slots.
type BattleSide string

const (
	SideChallenger BattleSide = "challenger"
	SideDefender   BattleSide = "defender"
)

// ValidSide reports whether s names an actual participant slot.
func ValidSide(s BattleSide) bool {
	return s == SideChallenger || s == SideDefender
}

// BattleKind is what is being battled over.
type BattleKind string

const (
	KindBeat BattleKind = "BEAT"
	KindSong BattleKind = "SONG"
)

// Participant is the denormalized slice of a profile embedded in a battle
// document, enough to render a battle card without a second lookup.
type Participant struct {
	ProfileID string `bson:"profile_id" json:"profileId"`
	Username  string `bson:"username" json:"username"`
	AvatarURL string `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
}

// Battle is a head-to-head contest stored persistently in MongoDB. Tallies
// are authoritative in the Redis vote ledger while the battle is live and
// synced back into this document periodically and at settlement.
type Battle struct {
	ID              string       `bson:"_id" json:"id"`
	Title           string       `bson:"title" json:"title"`
	Genre           string       `bson:"genre" json:"genre"`
	Kind            BattleKind   `bson:"kind" json:"kind"`
	Challenger      Participant  `bson:"challenger" json:"challenger"`
	Defender        *Participant `bson:"defender,omitempty" json:"defender,omitempty"`
	Status          BattleStatus `bson:"status" json:"status"`
	VotesChallenger int64        `bson:"votes_challenger" json:"votesChallenger"`
	VotesDefender   int64        `bson:"votes_defender" json:"votesDefender"`
	EntryFee        int64        `bson:"entry_fee" json:"entryFee"`
	BPM             int          `bson:"bpm,omitempty" json:"bpm,omitempty"`
	CoverImageURL   string       `bson:"cover_image_url,omitempty" json:"coverImage,omitempty"`
	AudioPreviewURL string       `bson:"audio_preview_url,omitempty" json:"audioPreviewUrl,omitempty"`
	EndsAt          int64        `bson:"ends_at" json:"endsAt"` // epoch millis
	CreatedAt       *time.Time   `bson:"created_at,omitempty" json:"createdAt,omitempty"`
}

// AcceptsVotes reports whether the battle's lifecycle state still admits
// votes. Only "ended" rejects them; "hot" and "active" are equivalent here.
func (b *Battle) AcceptsVotes() bool {
	return b.Status != BattleEnded
}

// Expired reports whether the battle's end timestamp has elapsed at now.
func (b *Battle) Expired(now time.Time) bool {
	return now.UnixMilli() >= b.EndsAt
}

// Leader returns the side strictly ahead on votes, or nil when the tallies
// are equal. Equal tallies favor neither side.
func (b *Battle) Leader() *BattleSide {
	switch {
	case b.VotesChallenger > b.VotesDefender:
		s := SideChallenger
		return &s
	case b.VotesDefender > b.VotesChallenger:
		s := SideDefender
		return &s
	}
	return nil
}

// Territory is a city district controlled by a user or crew, rendered on
// the city map.
type Territory struct {
	ID          string `bson:"_id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Genre       string `bson:"genre" json:"genre"`
	Control     string `bson:"control" json:"control"` // controlling user/crew name
	Color       string `bson:"color" json:"color"`
	BattleCount int64  `bson:"battle_count" json:"battleCount"`
}
