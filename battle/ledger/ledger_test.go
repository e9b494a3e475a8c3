package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songversus/city-arena/shared/models"
)

func TestAdmit(t *testing.T) {
	live := &models.Battle{ID: "b1", Status: models.BattleActive}
	hot := &models.Battle{ID: "b2", Status: models.BattleHot}
	open := &models.Battle{ID: "b3", Status: models.BattleOpen}
	ended := &models.Battle{ID: "b4", Status: models.BattleEnded}

	assert.NoError(t, Admit(live, models.SideChallenger))
	assert.NoError(t, Admit(live, models.SideDefender))
	assert.NoError(t, Admit(hot, models.SideDefender))
	assert.NoError(t, Admit(open, models.SideChallenger))

	err := Admit(ended, models.SideChallenger)
	assert.ErrorIs(t, err, ErrBattleClosed)

	err = Admit(live, models.BattleSide("audience"))
	assert.ErrorIs(t, err, ErrInvalidSide)

	// Side validation happens before the lifecycle check.
	err = Admit(ended, models.BattleSide(""))
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestTallyLeader(t *testing.T) {
	challenger := models.SideChallenger
	defender := models.SideDefender

	tests := []struct {
		name  string
		tally Tally
		want  *models.BattleSide
	}{
		{name: "challenger ahead", tally: Tally{Challenger: 3, Defender: 1}, want: &challenger},
		{name: "defender ahead", tally: Tally{Challenger: 2, Defender: 7}, want: &defender},
		{name: "tie favors neither", tally: Tally{Challenger: 5, Defender: 5}, want: nil},
		{name: "zero votes", tally: Tally{}, want: nil},
		{name: "single vote decides", tally: Tally{Defender: 1}, want: &defender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tally.Leader()
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestTallyTotal(t *testing.T) {
	assert.Equal(t, int64(0), Tally{}.Total())
	assert.Equal(t, int64(12), Tally{Challenger: 8, Defender: 4}.Total())
}

func TestMemoryLedgerDeduplicatesVotes(t *testing.T) {
	ml := NewMemoryLedger()
	ml.Open("battle-1")

	require.NoError(t, ml.CastVote("battle-1", "viewer-a", models.SideChallenger))

	// Same viewer again, same side and the other side, both rejected.
	err := ml.CastVote("battle-1", "viewer-a", models.SideChallenger)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	err = ml.CastVote("battle-1", "viewer-a", models.SideDefender)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	tally, err := ml.Tally("battle-1")
	require.NoError(t, err)
	assert.Equal(t, Tally{Challenger: 1, Defender: 0}, tally)
}

func TestMemoryLedgerClosedBattle(t *testing.T) {
	ml := NewMemoryLedger()
	ml.Open("battle-1")
	require.NoError(t, ml.CastVote("battle-1", "viewer-a", models.SideDefender))

	ml.Close("battle-1")

	err := ml.CastVote("battle-1", "viewer-b", models.SideChallenger)
	assert.ErrorIs(t, err, ErrBattleClosed)

	// The tally recorded before close survives.
	tally, err := ml.Tally("battle-1")
	require.NoError(t, err)
	assert.Equal(t, Tally{Defender: 1}, tally)
}

func TestMemoryLedgerUnknownBattle(t *testing.T) {
	ml := NewMemoryLedger()

	err := ml.CastVote("nope", "viewer-a", models.SideChallenger)
	assert.ErrorIs(t, err, ErrUnknownBattle)

	_, err = ml.Tally("nope")
	assert.ErrorIs(t, err, ErrUnknownBattle)
}

func TestMemoryLedgerInvalidSide(t *testing.T) {
	ml := NewMemoryLedger()
	ml.Open("battle-1")

	err := ml.CastVote("battle-1", "viewer-a", models.BattleSide("both"))
	assert.ErrorIs(t, err, ErrInvalidSide)

	tally, err := ml.Tally("battle-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), tally.Total())
}

func TestMemoryLedgerConcurrentVoting(t *testing.T) {
	const (
		viewers  = 200
		attempts = 5 // each viewer hammers the ledger with duplicate attempts
	)

	ml := NewMemoryLedger()
	ml.Open("battle-1")

	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		side := models.SideChallenger
		if i%2 == 1 {
			side = models.SideDefender
		}
		viewerID := fmt.Sprintf("viewer-%d", i)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < attempts; j++ {
				err := ml.CastVote("battle-1", viewerID, side)
				if j > 0 {
					assert.ErrorIs(t, err, ErrAlreadyVoted)
				}
			}
		}()
	}
	wg.Wait()

	tally, err := ml.Tally("battle-1")
	require.NoError(t, err)
	assert.Equal(t, int64(viewers), tally.Total())
	assert.Equal(t, int64(viewers/2), tally.Challenger)
	assert.Equal(t, int64(viewers/2), tally.Defender)
	assert.Nil(t, tally.Leader())
}
