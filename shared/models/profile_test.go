package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidVisualizer(t *testing.T) {
	assert.True(t, ValidVisualizer(VisualizerBars))
	assert.True(t, ValidVisualizer(VisualizerWave))
	assert.True(t, ValidVisualizer(VisualizerOrb))
	assert.False(t, ValidVisualizer(Visualizer("Spiral")))
	assert.False(t, ValidVisualizer(Visualizer("")))
}

func TestDuffleMatured(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		duffle Duffle
		want   bool
	}{
		{
			name:   "locked and timer elapsed",
			duffle: Duffle{Status: DuffleLocked, UnlocksAt: now.Add(-time.Minute).UnixMilli()},
			want:   true,
		},
		{
			name:   "locked and timer exactly now",
			duffle: Duffle{Status: DuffleLocked, UnlocksAt: now.UnixMilli()},
			want:   true,
		},
		{
			name:   "locked but still counting down",
			duffle: Duffle{Status: DuffleLocked, UnlocksAt: now.Add(time.Hour).UnixMilli()},
			want:   false,
		},
		{
			name:   "ready duffles do not mature again",
			duffle: Duffle{Status: DuffleReady, UnlocksAt: now.Add(-time.Hour).UnixMilli()},
			want:   false,
		},
		{
			name:   "opened duffles never mature",
			duffle: Duffle{Status: DuffleOpened, UnlocksAt: now.Add(-time.Hour).UnixMilli()},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.duffle.Matured(now))
		})
	}
}

func TestProfileHasVisualizer(t *testing.T) {
	p := &Profile{UnlockedVisualizers: []Visualizer{VisualizerBars, VisualizerWave}}

	assert.True(t, p.HasVisualizer(VisualizerBars))
	assert.True(t, p.HasVisualizer(VisualizerWave))
	assert.False(t, p.HasVisualizer(VisualizerOrb))

	empty := &Profile{}
	assert.False(t, empty.HasVisualizer(VisualizerBars))
}

func TestProfileDuffleByID(t *testing.T) {
	p := &Profile{
		Duffles: []Duffle{
			{ID: "d1", Type: DuffleStandard, Status: DuffleLocked},
			{ID: "d2", Type: DuffleGold, Status: DuffleReady},
		},
	}

	d := p.DuffleByID("d2")
	require.NotNil(t, d)
	assert.Equal(t, DuffleGold, d.Type)

	// Returned pointer aliases the slice element, so callers can mutate in place.
	d.Status = DuffleOpened
	assert.Equal(t, DuffleOpened, p.Duffles[1].Status)

	assert.Nil(t, p.DuffleByID("missing"))
}
