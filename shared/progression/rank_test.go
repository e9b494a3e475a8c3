package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankTierSelection(t *testing.T) {
	tests := []struct {
		name       string
		reputation int64
		wantTier   string
		wantMax    bool
	}{
		{name: "zero reputation lands on first tier", reputation: 0, wantTier: "Rookie"},
		{name: "below second threshold", reputation: 99, wantTier: "Rookie"},
		{name: "threshold is inclusive", reputation: 100, wantTier: "Apprentice"},
		{name: "mid ladder", reputation: 450, wantTier: "Pro"},
		{name: "last threshold exactly", reputation: 1000, wantTier: "Titan", wantMax: true},
		{name: "far past the top", reputation: 1 << 40, wantTier: "Titan", wantMax: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Rank(tt.reputation, DefaultTiers)
			assert.Equal(t, tt.wantTier, s.Tier.Name)
			assert.Equal(t, tt.wantMax, s.MaxRank)
			assert.GreaterOrEqual(t, s.Progress, 0.0)
			assert.LessOrEqual(t, s.Progress, 1.0)
			assert.LessOrEqual(t, s.Tier.MinReputation, tt.reputation)
			if s.Next != nil {
				assert.Less(t, tt.reputation, s.Next.MinReputation)
			}
		})
	}
}

func TestRankProgressFraction(t *testing.T) {
	tiers := []Tier{
		{Level: 1, Name: "Rookie", MinReputation: 0},
		{Level: 2, Name: "Apprentice", MinReputation: 100},
		{Level: 3, Name: "Pro", MinReputation: 300},
	}

	s := Rank(250, tiers)
	require.Equal(t, "Apprentice", s.Tier.Name)
	require.NotNil(t, s.Next)
	assert.Equal(t, "Pro", s.Next.Name)
	assert.InDelta(t, 0.75, s.Progress, 1e-9)
	assert.Equal(t, int64(50), s.RepToNext)
	assert.False(t, s.MaxRank)
}

func TestRankAtMax(t *testing.T) {
	s := Rank(5000, DefaultTiers)
	assert.True(t, s.MaxRank)
	assert.Nil(t, s.Next)
	assert.Equal(t, 1.0, s.Progress)
}

func TestCanCreateCrew(t *testing.T) {
	assert.False(t, CanCreateCrew(0))
	assert.False(t, CanCreateCrew(299))
	assert.True(t, CanCreateCrew(300))
	assert.True(t, CanCreateCrew(10000))
}
