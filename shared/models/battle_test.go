package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSide(t *testing.T) {
	assert.True(t, ValidSide(SideChallenger))
	assert.True(t, ValidSide(SideDefender))
	assert.False(t, ValidSide(BattleSide("referee")))
	assert.False(t, ValidSide(BattleSide("")))
}

func TestBattleAcceptsVotes(t *testing.T) {
	for _, status := range []BattleStatus{BattleOpen, BattleActive, BattleHot} {
		b := &Battle{Status: status}
		assert.True(t, b.AcceptsVotes(), "status %s should accept votes", status)
	}

	ended := &Battle{Status: BattleEnded}
	assert.False(t, ended.AcceptsVotes())
}

func TestBattleExpired(t *testing.T) {
	now := time.Now()

	past := &Battle{EndsAt: now.Add(-time.Second).UnixMilli()}
	assert.True(t, past.Expired(now))

	exact := &Battle{EndsAt: now.UnixMilli()}
	assert.True(t, exact.Expired(now))

	future := &Battle{EndsAt: now.Add(time.Minute).UnixMilli()}
	assert.False(t, future.Expired(now))
}

func TestBattleLeader(t *testing.T) {
	b := &Battle{VotesChallenger: 10, VotesDefender: 3}
	leader := b.Leader()
	require.NotNil(t, leader)
	assert.Equal(t, SideChallenger, *leader)

	b = &Battle{VotesChallenger: 2, VotesDefender: 9}
	leader = b.Leader()
	require.NotNil(t, leader)
	assert.Equal(t, SideDefender, *leader)

	// A tie has no leader, including the zero-vote case.
	assert.Nil(t, (&Battle{VotesChallenger: 4, VotesDefender: 4}).Leader())
	assert.Nil(t, (&Battle{}).Leader())
}
