// shared/progression/reward.go
package progression

import (
	"fmt"

	"github.com/songversus/city-arena/shared/models"
)

// Payout and unlock constants. These are product-tuned values, do not
// re-derive them.
const (
	RewardCashMin = 100 // inclusive
	RewardCashMax = 599 // inclusive

	// A single uniform roll in [0,1) decides the cosmetic unlock: strictly
	// above OrbThreshold unlocks Orb, otherwise strictly above WaveThreshold
	// unlocks Wave. At most one item unlocks per resolution, and a roll that
	// lands on an already-unlocked item unlocks nothing.
	OrbThreshold  = 0.9
	WaveThreshold = 0.7
)

// Resolution failures. Callers map these onto their own error taxonomy.
var (
	ErrDuffleNotFound = fmt.Errorf("duffle not found on profile")
	ErrDuffleNotReady = fmt.Errorf("duffle is not ready to open")
)

// Rand is the slice of math/rand the resolver needs. *rand.Rand satisfies
// it; tests substitute a fixed source to pin outcomes.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// RewardOutcome describes the effects of opening a duffle. The resolver
// never applies them: the caller merges them into the persisted profile in
// a single atomic update (duffle removed, coins credited, visualizer
// appended) so a crash can't split the reward.
type RewardOutcome struct {
	DuffleID   string             `json:"duffleId"`
	CashAmount int64              `json:"cashAmount"`
	Unlocked   *models.Visualizer `json:"unlockedItem,omitempty"`
}

// RewardResolver resolves duffle openings against an injected random
// source.
type RewardResolver struct {
	rng Rand
}

// NewRewardResolver builds a resolver around the given random source.
func NewRewardResolver(rng Rand) *RewardResolver {
	return &RewardResolver{rng: rng}
}

// Resolve computes the outcome of opening the duffle with the given id on
// the profile. The profile is read, never mutated. A duffle that is locked
// or already opened fails with ErrDuffleNotReady; an id the profile does
// not hold fails with ErrDuffleNotFound.
func (rr *RewardResolver) Resolve(profile *models.Profile, duffleID string) (RewardOutcome, error) {
	duffle := profile.DuffleByID(duffleID)
	if duffle == nil {
		return RewardOutcome{}, fmt.Errorf("%w: %s", ErrDuffleNotFound, duffleID)
	}
	if duffle.Status != models.DuffleReady {
		return RewardOutcome{}, fmt.Errorf("%w: %s is %s", ErrDuffleNotReady, duffleID, duffle.Status)
	}

	outcome := RewardOutcome{
		DuffleID:   duffleID,
		CashAmount: int64(rr.rng.Intn(RewardCashMax-RewardCashMin+1) + RewardCashMin),
	}

	roll := rr.rng.Float64()
	switch {
	case roll > OrbThreshold && !profile.HasVisualizer(models.VisualizerOrb):
		orb := models.VisualizerOrb
		outcome.Unlocked = &orb
	case roll > WaveThreshold && !profile.HasVisualizer(models.VisualizerWave):
		wave := models.VisualizerWave
		outcome.Unlocked = &wave
	}

	return outcome, nil
}
