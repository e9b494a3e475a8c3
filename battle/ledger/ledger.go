// battle/ledger/ledger.go
package ledger

import (
	"fmt"
	"sync"

	"github.com/songversus/city-arena/shared/models"
)

// Vote admission failures. The service layer maps these onto HTTP codes.
var (
	ErrAlreadyVoted  = fmt.Errorf("viewer already voted in this battle")
	ErrBattleClosed  = fmt.Errorf("battle no longer accepts votes")
	ErrInvalidSide   = fmt.Errorf("invalid battle side")
	ErrUnknownBattle = fmt.Errorf("battle not known to ledger")
)

// Admit checks whether a vote for the given side is admissible against the
// battle's current state. Pure; duplicate detection happens at the storage
// layer where it can be atomic.
func Admit(b *models.Battle, side models.BattleSide) error {
	if !models.ValidSide(side) {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if !b.AcceptsVotes() {
		return fmt.Errorf("%w: battle %s is %s", ErrBattleClosed, b.ID, b.Status)
	}
	return nil
}

// Tally is a point-in-time snapshot of a battle's vote counts.
type Tally struct {
	Challenger int64 `json:"challenger"`
	Defender   int64 `json:"defender"`
}

// Leader returns the side strictly ahead, or nil when the counts are equal.
func (t Tally) Leader() *models.BattleSide {
	switch {
	case t.Challenger > t.Defender:
		s := models.SideChallenger
		return &s
	case t.Defender > t.Challenger:
		s := models.SideDefender
		return &s
	}
	return nil
}

// Total returns the combined vote count.
func (t Tally) Total() int64 {
	return t.Challenger + t.Defender
}

// MemoryLedger enforces at-most-once voting per (viewer, battle) entirely in
// process memory. It mirrors the semantics of the Redis-backed vote store
// and backs the concurrency tests; production instances share votes through
// Redis instead.
type MemoryLedger struct {
	mu      sync.Mutex
	voters  map[string]map[string]models.BattleSide // battleID -> viewerID -> side
	tallies map[string]*Tally
	closed  map[string]bool
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		voters:  make(map[string]map[string]models.BattleSide),
		tallies: make(map[string]*Tally),
		closed:  make(map[string]bool),
	}
}

// Open registers a battle so it can accept votes.
func (ml *MemoryLedger) Open(battleID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if _, ok := ml.voters[battleID]; !ok {
		ml.voters[battleID] = make(map[string]models.BattleSide)
		ml.tallies[battleID] = &Tally{}
	}
}

// Close marks a battle as no longer accepting votes. The recorded tally
// survives closing.
func (ml *MemoryLedger) Close(battleID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.closed[battleID] = true
}

// CastVote records a vote exactly once per (viewer, battle). A second vote
// from the same viewer fails with ErrAlreadyVoted regardless of side, and a
// closed battle fails with ErrBattleClosed; in both cases the tally is
// untouched.
func (ml *MemoryLedger) CastVote(battleID, viewerID string, side models.BattleSide) error {
	if !models.ValidSide(side) {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	voters, ok := ml.voters[battleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBattle, battleID)
	}
	if ml.closed[battleID] {
		return fmt.Errorf("%w: %s", ErrBattleClosed, battleID)
	}
	if _, voted := voters[viewerID]; voted {
		return fmt.Errorf("%w: viewer %s in battle %s", ErrAlreadyVoted, viewerID, battleID)
	}

	voters[viewerID] = side
	if side == models.SideChallenger {
		ml.tallies[battleID].Challenger++
	} else {
		ml.tallies[battleID].Defender++
	}
	return nil
}

// Tally returns the current tally for a battle.
func (ml *MemoryLedger) Tally(battleID string) (Tally, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	t, ok := ml.tallies[battleID]
	if !ok {
		return Tally{}, fmt.Errorf("%w: %s", ErrUnknownBattle, battleID)
	}
	return *t, nil
}
