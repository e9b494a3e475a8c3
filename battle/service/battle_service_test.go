package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songversus/city-arena/battle/ledger"
	"github.com/songversus/city-arena/battle/store"
	"github.com/songversus/city-arena/shared/models"
)

// fakeVoteLedger models the live Redis ledger: GetTally returns the
// pre-close snapshot until the battle status is cached as ended, then the
// final one. The gap between the two snapshots stands in for a vote
// admitted while settlement is in flight.
type fakeVoteLedger struct {
	closed      bool
	tallyOpen   ledger.Tally
	tallyClosed ledger.Tally
	calls       []string
}

func (f *fakeVoteLedger) SetBattleStatus(ctx context.Context, battleID string, status models.BattleStatus) error {
	f.calls = append(f.calls, "status:"+string(status))
	if status == models.BattleEnded {
		f.closed = true
	}
	return nil
}

func (f *fakeVoteLedger) CastVote(ctx context.Context, battleID, viewerID string, side models.BattleSide) (int64, error) {
	if f.closed {
		return 0, fmt.Errorf("%w: %s", ledger.ErrBattleClosed, battleID)
	}
	return 1, nil
}

func (f *fakeVoteLedger) GetTally(ctx context.Context, battleID string) (ledger.Tally, error) {
	f.calls = append(f.calls, "tally")
	if f.closed {
		return f.tallyClosed, nil
	}
	return f.tallyOpen, nil
}

type fakeBattleStore struct {
	markEndedErr     error
	markedChallenger int64
	markedDefender   int64
	markEndedCalled  bool
}

func (f *fakeBattleStore) CreateBattle(ctx context.Context, battle *models.Battle) error { return nil }
func (f *fakeBattleStore) GetBattleByID(ctx context.Context, id string) (*models.Battle, error) {
	return nil, store.ErrBattleNotFound
}
func (f *fakeBattleStore) ListBattles(ctx context.Context, status models.BattleStatus, limit int64) ([]models.Battle, error) {
	return nil, nil
}
func (f *fakeBattleStore) ListTrending(ctx context.Context, limit int64) ([]models.Battle, error) {
	return nil, nil
}
func (f *fakeBattleStore) FillDefender(ctx context.Context, id string, defender models.Participant) error {
	return nil
}
func (f *fakeBattleStore) TransitionStatus(ctx context.Context, id string, from, to models.BattleStatus) error {
	return nil
}
func (f *fakeBattleStore) MarkEnded(ctx context.Context, id string, votesChallenger, votesDefender int64) error {
	f.markEndedCalled = true
	f.markedChallenger = votesChallenger
	f.markedDefender = votesDefender
	return f.markEndedErr
}

type fakeTerritoryStore struct {
	territories []models.Territory
	controlBy   map[string]string
}

func (f *fakeTerritoryStore) ListTerritories(ctx context.Context) ([]models.Territory, error) {
	return f.territories, nil
}
func (f *fakeTerritoryStore) IncrementBattleCount(ctx context.Context, id string) error { return nil }
func (f *fakeTerritoryStore) SetControl(ctx context.Context, id, control string) error {
	if f.controlBy == nil {
		f.controlBy = make(map[string]string)
	}
	f.controlBy[id] = control
	return nil
}

type fakeProfileGateway struct {
	credits    map[string]int64
	reputation map[string]int64
	duffles    map[string]models.DuffleType
	results    map[string]bool
}

func newFakeProfileGateway() *fakeProfileGateway {
	return &fakeProfileGateway{
		credits:    make(map[string]int64),
		reputation: make(map[string]int64),
		duffles:    make(map[string]models.DuffleType),
		results:    make(map[string]bool),
	}
}

func (f *fakeProfileGateway) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	return &models.Profile{ID: profileID, Username: "user-" + profileID}, nil
}
func (f *fakeProfileGateway) CreditCoins(ctx context.Context, profileID string, amount int64, reason string) error {
	f.credits[profileID] += amount
	return nil
}
func (f *fakeProfileGateway) DebitCoins(ctx context.Context, profileID string, amount int64, reason string) error {
	return nil
}
func (f *fakeProfileGateway) CreditReputation(ctx context.Context, profileID string, amount int64, reason string) error {
	f.reputation[profileID] += amount
	return nil
}
func (f *fakeProfileGateway) GrantDuffle(ctx context.Context, profileID string, duffleType models.DuffleType, unlockDelayMs int64) error {
	f.duffles[profileID] = duffleType
	return nil
}
func (f *fakeProfileGateway) RecordBattleResult(ctx context.Context, profileID string, won bool) error {
	f.results[profileID] = won
	return nil
}

type fakeHype struct{}

func (fakeHype) GenerateHype(ctx context.Context, battle *models.Battle) string { return "hype" }

func settlementBattle() *models.Battle {
	return &models.Battle{
		ID:         "battle-1",
		Title:      "Midnight Showdown",
		Genre:      "Drill",
		Kind:       models.KindBeat,
		Challenger: models.Participant{ProfileID: "p1", Username: "mc_flow"},
		Defender:   &models.Participant{ProfileID: "p2", Username: "beat_king"},
		Status:     models.BattleActive,
		EntryFee:   100,
	}
}

func newSettlementService(bs *fakeBattleStore, ts *fakeTerritoryStore, vl *fakeVoteLedger, pg *fakeProfileGateway) *BattleService {
	return NewBattleService(bs, ts, vl, pg, fakeHype{}, 10, 500)
}

func TestSettleClosesLedgerBeforeFinalTally(t *testing.T) {
	// A vote lands just before the ledger closes: the open snapshot is a
	// 3-3 tie, the post-close one is 4-3. Settlement must stamp and pay
	// out the post-close tally, not the stale tie.
	voteLedger := &fakeVoteLedger{
		tallyOpen:   ledger.Tally{Challenger: 3, Defender: 3},
		tallyClosed: ledger.Tally{Challenger: 4, Defender: 3},
	}
	battleStore := &fakeBattleStore{}
	territoryStore := &fakeTerritoryStore{
		territories: []models.Territory{{ID: "industrial", Genre: "Drill", Control: "beat_king"}},
	}
	gateway := newFakeProfileGateway()

	bsvc := newSettlementService(battleStore, territoryStore, voteLedger, gateway)
	require.NoError(t, bsvc.Settle(context.Background(), settlementBattle()))

	require.Equal(t, []string{"status:ended", "tally"}, voteLedger.calls)
	assert.Equal(t, int64(4), battleStore.markedChallenger)
	assert.Equal(t, int64(3), battleStore.markedDefender)

	// The challenger wins on the final tally: pot, reputation, duffle,
	// result records, territory control.
	assert.Equal(t, int64(200), gateway.credits["p1"])
	assert.Equal(t, int64(WinnerReputation), gateway.reputation["p1"])
	assert.Equal(t, models.DuffleGold, gateway.duffles["p1"])
	assert.True(t, gateway.results["p1"])
	assert.False(t, gateway.results["p2"])
	assert.Equal(t, int64(0), gateway.credits["p2"])
	assert.Equal(t, "mc_flow", territoryStore.controlBy["industrial"])
}

func TestSettleDrawRefundsStakes(t *testing.T) {
	voteLedger := &fakeVoteLedger{
		tallyOpen:   ledger.Tally{Challenger: 2, Defender: 2},
		tallyClosed: ledger.Tally{Challenger: 2, Defender: 2},
	}
	battleStore := &fakeBattleStore{}
	gateway := newFakeProfileGateway()

	bsvc := newSettlementService(battleStore, &fakeTerritoryStore{}, voteLedger, gateway)
	require.NoError(t, bsvc.Settle(context.Background(), settlementBattle()))

	assert.Equal(t, int64(100), gateway.credits["p1"])
	assert.Equal(t, int64(100), gateway.credits["p2"])
	assert.Empty(t, gateway.reputation)
	assert.Empty(t, gateway.duffles)
	assert.Empty(t, gateway.results)
}

func TestSettleAlreadySettledIsNoOp(t *testing.T) {
	voteLedger := &fakeVoteLedger{
		tallyClosed: ledger.Tally{Challenger: 5, Defender: 1},
	}
	battleStore := &fakeBattleStore{
		markEndedErr: fmt.Errorf("%w: battle battle-1 already ended", store.ErrWrongBattleStatus),
	}
	gateway := newFakeProfileGateway()

	bsvc := newSettlementService(battleStore, &fakeTerritoryStore{}, voteLedger, gateway)
	require.NoError(t, bsvc.Settle(context.Background(), settlementBattle()))

	// Another instance won the MarkEnded race; nothing is paid twice.
	assert.True(t, battleStore.markEndedCalled)
	assert.Empty(t, gateway.credits)
	assert.Empty(t, gateway.reputation)
	assert.Empty(t, gateway.duffles)
	assert.Empty(t, gateway.results)
}
