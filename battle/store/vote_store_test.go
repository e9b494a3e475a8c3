package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songversus/city-arena/shared/models"
)

func TestVoteKeysShareHashTag(t *testing.T) {
	// Cluster mode requires every key the vote script touches to hash to
	// the same slot, which the shared {battleID} tag guarantees.
	assert.Equal(t, "vote:{b-42}:viewer-7", markerKey("b-42", "viewer-7"))
	assert.Equal(t, "votes:{b-42}:challenger", tallyKey("b-42", models.SideChallenger))
	assert.Equal(t, "votes:{b-42}:defender", tallyKey("b-42", models.SideDefender))
	assert.Equal(t, "battle_status:{b-42}:", statusKey("b-42"))
}

func TestBattleIDFromTallyKey(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{key: "votes:{b-42}:challenger", wantID: "b-42", wantOK: true},
		{key: "votes:{550e8400-e29b-41d4-a716-446655440000}:defender", wantID: "550e8400-e29b-41d4-a716-446655440000", wantOK: true},
		{key: "votes:plain:challenger", wantOK: false},
		{key: "votes:{}:challenger", wantOK: false},
		{key: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, ok := battleIDFromTallyKey(tt.key)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseTallyValue(t *testing.T) {
	n, err := parseTallyValue(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = parseTallyValue("173")
	require.NoError(t, err)
	assert.Equal(t, int64(173), n)

	_, err = parseTallyValue("not-a-number")
	assert.Error(t, err)

	_, err = parseTallyValue(42)
	assert.Error(t, err)
}
