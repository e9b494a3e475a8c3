package progression

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songversus/city-arena/shared/models"
)

// fixedRand pins both draws so unlock outcomes can be asserted exactly.
type fixedRand struct {
	n int
	f float64
}

func (r fixedRand) Intn(int) int     { return r.n }
func (r fixedRand) Float64() float64 { return r.f }

func readyProfile(unlocked ...models.Visualizer) *models.Profile {
	return &models.Profile{
		ID:                  "u1",
		UnlockedVisualizers: append([]models.Visualizer{models.VisualizerBars}, unlocked...),
		Duffles: []models.Duffle{
			{ID: "d1", Type: models.DuffleGold, Status: models.DuffleReady},
			{ID: "d2", Type: models.DuffleStandard, Status: models.DuffleLocked},
		},
	}
}

func TestResolveUnlockPolicy(t *testing.T) {
	tests := []struct {
		name     string
		roll     float64
		unlocked []models.Visualizer
		want     *models.Visualizer
	}{
		{name: "high roll unlocks Orb", roll: 0.95, want: visPtr(models.VisualizerOrb)},
		{name: "mid roll unlocks Wave", roll: 0.75, want: visPtr(models.VisualizerWave)},
		{name: "low roll unlocks nothing", roll: 0.5, want: nil},
		{name: "threshold is exclusive for Wave", roll: 0.7, want: nil},
		{name: "Orb roll falls through to Wave when Orb owned", roll: 0.95, unlocked: []models.Visualizer{models.VisualizerOrb}, want: visPtr(models.VisualizerWave)},
		{name: "Wave roll suppressed when Wave owned", roll: 0.75, unlocked: []models.Visualizer{models.VisualizerWave}, want: nil},
		{name: "everything owned never unlocks", roll: 0.99, unlocked: []models.Visualizer{models.VisualizerWave, models.VisualizerOrb}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := NewRewardResolver(fixedRand{n: 0, f: tt.roll})
			profile := readyProfile(tt.unlocked...)

			outcome, err := rr.Resolve(profile, "d1")
			require.NoError(t, err)
			assert.Equal(t, "d1", outcome.DuffleID)
			assert.Equal(t, int64(RewardCashMin), outcome.CashAmount)
			if tt.want == nil {
				assert.Nil(t, outcome.Unlocked)
			} else {
				require.NotNil(t, outcome.Unlocked)
				assert.Equal(t, *tt.want, *outcome.Unlocked)
			}
		})
	}
}

func TestResolveRejectsWrongState(t *testing.T) {
	rr := NewRewardResolver(fixedRand{})
	profile := readyProfile()

	_, err := rr.Resolve(profile, "d2") // still locked
	assert.True(t, errors.Is(err, ErrDuffleNotReady))

	_, err = rr.Resolve(profile, "nope")
	assert.True(t, errors.Is(err, ErrDuffleNotFound))

	// The profile itself is untouched either way.
	assert.Len(t, profile.Duffles, 2)
	assert.Equal(t, models.DuffleLocked, profile.DuffleByID("d2").Status)
}

func TestResolveDistribution(t *testing.T) {
	const draws = 10000
	rr := NewRewardResolver(rand.New(rand.NewSource(1)))

	var orb, wave int
	cashSeen := map[int64]bool{}
	for i := 0; i < draws; i++ {
		profile := readyProfile()
		outcome, err := rr.Resolve(profile, "d1")
		require.NoError(t, err)

		require.GreaterOrEqual(t, outcome.CashAmount, int64(RewardCashMin))
		require.LessOrEqual(t, outcome.CashAmount, int64(RewardCashMax))
		cashSeen[outcome.CashAmount] = true

		if outcome.Unlocked != nil {
			switch *outcome.Unlocked {
			case models.VisualizerOrb:
				orb++
			case models.VisualizerWave:
				wave++
			default:
				t.Fatalf("unexpected unlock %s", *outcome.Unlocked)
			}
		}
	}

	// One roll per resolution: ~10% Orb, ~20% Wave, never both.
	assert.InDelta(t, 0.10, float64(orb)/draws, 0.02)
	assert.InDelta(t, 0.20, float64(wave)/draws, 0.02)

	// Uniform cash over a 500-wide range should hit most values in 10k draws.
	assert.Greater(t, len(cashSeen), 450)
}

func visPtr(v models.Visualizer) *models.Visualizer { return &v }
