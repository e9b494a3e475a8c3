// battle/service/battle_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/songversus/city-arena/battle/ledger"
	"github.com/songversus/city-arena/battle/store"
	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/models"
)

// Custom Errors for clear communication to the API layer.
var (
	ErrBattleNotFound    = fmt.Errorf("battle not found")
	ErrBattleNotOpen     = fmt.Errorf("battle is not open for joining")
	ErrBattleNotActive   = fmt.Errorf("battle is not active")
	ErrSelfJoin          = fmt.Errorf("challenger cannot join their own battle")
	ErrProfileNotFound   = fmt.Errorf("profile not found")
	ErrInsufficientFunds = fmt.Errorf("insufficient coins")
	ErrValidation        = fmt.Errorf("invalid request")
)

// Settlement constants.
const (
	WinnerReputation        = 50
	WinnerDuffleUnlockDelay = time.Hour
	MaxBattleDuration       = 7 * 24 * time.Hour
	DefaultListLimit        = 50
)

// BattleStorage is the slice of the battle store the service needs.
// *store.BattleStore satisfies it.
type BattleStorage interface {
	CreateBattle(ctx context.Context, battle *models.Battle) error
	GetBattleByID(ctx context.Context, id string) (*models.Battle, error)
	ListBattles(ctx context.Context, status models.BattleStatus, limit int64) ([]models.Battle, error)
	ListTrending(ctx context.Context, limit int64) ([]models.Battle, error)
	FillDefender(ctx context.Context, id string, defender models.Participant) error
	TransitionStatus(ctx context.Context, id string, from, to models.BattleStatus) error
	MarkEnded(ctx context.Context, id string, votesChallenger, votesDefender int64) error
}

// TerritoryStorage is the slice of the territory store the service needs.
// *store.TerritoryStore satisfies it.
type TerritoryStorage interface {
	ListTerritories(ctx context.Context) ([]models.Territory, error)
	IncrementBattleCount(ctx context.Context, id string) error
	SetControl(ctx context.Context, id, control string) error
}

// VoteLedger is the Redis-backed vote ledger surface. *store.VoteStore
// satisfies it.
type VoteLedger interface {
	SetBattleStatus(ctx context.Context, battleID string, status models.BattleStatus) error
	CastVote(ctx context.Context, battleID, viewerID string, side models.BattleSide) (int64, error)
	GetTally(ctx context.Context, battleID string) (ledger.Tally, error)
}

// ProfileGateway is the profile-service surface the battle service calls.
// *profileclient.ProfileServiceClient satisfies it.
type ProfileGateway interface {
	GetProfile(ctx context.Context, profileID string) (*models.Profile, error)
	CreditCoins(ctx context.Context, profileID string, amount int64, reason string) error
	DebitCoins(ctx context.Context, profileID string, amount int64, reason string) error
	CreditReputation(ctx context.Context, profileID string, amount int64, reason string) error
	GrantDuffle(ctx context.Context, profileID string, duffleType models.DuffleType, unlockDelayMs int64) error
	RecordBattleResult(ctx context.Context, profileID string, won bool) error
}

// HypeGenerator produces flavor commentary. *hype.HypeService satisfies it.
type HypeGenerator interface {
	GenerateHype(ctx context.Context, battle *models.Battle) string
}

// BattleService encapsulates the business logic for battles, voting, and
// settlement.
type BattleService struct {
	battleStore    BattleStorage
	territoryStore TerritoryStorage
	voteStore      VoteLedger
	profileClient  ProfileGateway
	hypeService    HypeGenerator
	voteReward     int64
	publishCost    int64
}

// NewBattleService creates a new BattleService instance.
func NewBattleService(
	bs BattleStorage,
	ts TerritoryStorage,
	vs VoteLedger,
	pc ProfileGateway,
	hs HypeGenerator,
	voteReward, publishCost int64,
) *BattleService {
	return &BattleService{
		battleStore:    bs,
		territoryStore: ts,
		voteStore:      vs,
		profileClient:  pc,
		hypeService:    hs,
		voteReward:     voteReward,
		publishCost:    publishCost,
	}
}

// CreateBattleParams carries the challenger's publish request.
type CreateBattleParams struct {
	ChallengerID string
	Title        string
	Genre        string
	Kind         models.BattleKind
	BPM          int
	EntryFee     int64
	Duration     time.Duration
	CoverImage   string
	AudioPreview string
}

// CreateBattle publishes a new open battle. The challenger is charged the
// flat publish cost plus their entry fee stake up front; both go into the
// pot/platform before the battle becomes visible.
func (bsvc *BattleService) CreateBattle(ctx context.Context, params CreateBattleParams) (*models.Battle, error) {
	if params.ChallengerID == "" || params.Title == "" || params.Genre == "" {
		return nil, fmt.Errorf("%w: challengerId, title and genre are required", ErrValidation)
	}
	if params.Kind != models.KindBeat && params.Kind != models.KindSong {
		return nil, fmt.Errorf("%w: unknown battle kind %q", ErrValidation, params.Kind)
	}
	if params.EntryFee < 0 {
		return nil, fmt.Errorf("%w: entry fee cannot be negative", ErrValidation)
	}
	if params.Duration <= 0 || params.Duration > MaxBattleDuration {
		return nil, fmt.Errorf("%w: duration must be positive and at most %v", ErrValidation, MaxBattleDuration)
	}

	challenger, err := bsvc.profileClient.GetProfile(ctx, params.ChallengerID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: challenger %s", ErrProfileNotFound, params.ChallengerID)
		}
		return nil, fmt.Errorf("failed to fetch challenger profile: %w", err)
	}

	stake := bsvc.publishCost + params.EntryFee
	if err := bsvc.profileClient.DebitCoins(ctx, params.ChallengerID, stake, "battle publish"); err != nil {
		if errors.Is(err, api.ErrConflict) {
			return nil, fmt.Errorf("%w: publish requires %d coins", ErrInsufficientFunds, stake)
		}
		return nil, fmt.Errorf("failed to charge publish stake: %w", err)
	}

	now := time.Now()
	battle := &models.Battle{
		ID:    uuid.New().String(),
		Title: params.Title,
		Genre: params.Genre,
		Kind:  params.Kind,
		Challenger: models.Participant{
			ProfileID: challenger.ID,
			Username:  challenger.Username,
			AvatarURL: challenger.AvatarURL,
		},
		Status:          models.BattleOpen,
		EntryFee:        params.EntryFee,
		BPM:             params.BPM,
		CoverImageURL:   params.CoverImage,
		AudioPreviewURL: params.AudioPreview,
		EndsAt:          now.Add(params.Duration).UnixMilli(),
		CreatedAt:       &now,
	}

	if err := bsvc.battleStore.CreateBattle(ctx, battle); err != nil {
		// Best-effort refund; a duplicate UUID collision is near-impossible
		// but the stake must not vanish on a store failure.
		if refundErr := bsvc.profileClient.CreditCoins(ctx, params.ChallengerID, stake, "battle publish refund"); refundErr != nil {
			log.Printf("ERROR: Failed to refund publish stake %d to %s after store failure: %v", stake, params.ChallengerID, refundErr)
		}
		return nil, fmt.Errorf("failed to persist battle: %w", err)
	}

	if err := bsvc.voteStore.SetBattleStatus(ctx, battle.ID, battle.Status); err != nil {
		log.Printf("WARN: Failed to cache status for new battle %s: %v", battle.ID, err)
	}

	bsvc.bumpTerritoryForGenre(battle.Genre)

	log.Printf("INFO: Battle %s (%s %s) published by %s, entry fee %d.", battle.ID, battle.Genre, battle.Kind, challenger.Username, battle.EntryFee)
	return battle, nil
}

// GetBattle retrieves a battle. Live battles get their tallies overlaid
// from the Redis ledger, best effort.
func (bsvc *BattleService) GetBattle(ctx context.Context, id string) (*models.Battle, error) {
	battle, err := bsvc.battleStore.GetBattleByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrBattleNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("service failed to get battle: %w", err)
	}

	if battle.AcceptsVotes() {
		if tally, tallyErr := bsvc.voteStore.GetTally(ctx, id); tallyErr == nil {
			battle.VotesChallenger = tally.Challenger
			battle.VotesDefender = tally.Defender
		} else {
			log.Printf("WARN: Failed to overlay live tallies for battle %s: %v", id, tallyErr)
		}
	}
	return battle, nil
}

// ListBattles returns battles filtered by status.
func (bsvc *BattleService) ListBattles(ctx context.Context, status models.BattleStatus, limit int64) ([]models.Battle, error) {
	if status != "" {
		switch status {
		case models.BattleOpen, models.BattleActive, models.BattleHot, models.BattleEnded:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	battles, err := bsvc.battleStore.ListBattles(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("service failed to list battles: %w", err)
	}
	return battles, nil
}

// Trending returns live featured battles, hot before active.
func (bsvc *BattleService) Trending(ctx context.Context, limit int64) ([]models.Battle, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	battles, err := bsvc.battleStore.ListTrending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service failed to list trending battles: %w", err)
	}
	return battles, nil
}

// JoinBattle fills the defender slot of an open battle and moves it to
// active. The defender is charged the entry fee stake before the slot is
// taken; a lost join race refunds it.
func (bsvc *BattleService) JoinBattle(ctx context.Context, battleID, defenderID string) (*models.Battle, error) {
	if defenderID == "" {
		return nil, fmt.Errorf("%w: defenderId is required", ErrValidation)
	}

	battle, err := bsvc.battleStore.GetBattleByID(ctx, battleID)
	if err != nil {
		if errors.Is(err, store.ErrBattleNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("service failed to load battle for join: %w", err)
	}
	if battle.Status != models.BattleOpen {
		return nil, fmt.Errorf("%w: battle %s is %s", ErrBattleNotOpen, battleID, battle.Status)
	}
	if battle.Challenger.ProfileID == defenderID {
		return nil, ErrSelfJoin
	}

	defender, err := bsvc.profileClient.GetProfile(ctx, defenderID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, fmt.Errorf("%w: defender %s", ErrProfileNotFound, defenderID)
		}
		return nil, fmt.Errorf("failed to fetch defender profile: %w", err)
	}

	if battle.EntryFee > 0 {
		if err := bsvc.profileClient.DebitCoins(ctx, defenderID, battle.EntryFee, "battle entry fee"); err != nil {
			if errors.Is(err, api.ErrConflict) {
				return nil, fmt.Errorf("%w: joining requires %d coins", ErrInsufficientFunds, battle.EntryFee)
			}
			return nil, fmt.Errorf("failed to charge entry fee: %w", err)
		}
	}

	participant := models.Participant{
		ProfileID: defender.ID,
		Username:  defender.Username,
		AvatarURL: defender.AvatarURL,
	}
	if err := bsvc.battleStore.FillDefender(ctx, battleID, participant); err != nil {
		if battle.EntryFee > 0 {
			if refundErr := bsvc.profileClient.CreditCoins(ctx, defenderID, battle.EntryFee, "battle entry refund"); refundErr != nil {
				log.Printf("ERROR: Failed to refund entry fee %d to %s after join failure: %v", battle.EntryFee, defenderID, refundErr)
			}
		}
		if errors.Is(err, store.ErrWrongBattleStatus) {
			return nil, fmt.Errorf("%w: battle %s", ErrBattleNotOpen, battleID)
		}
		if errors.Is(err, store.ErrBattleNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("service failed to fill defender: %w", err)
	}

	if err := bsvc.voteStore.SetBattleStatus(ctx, battleID, models.BattleActive); err != nil {
		log.Printf("WARN: Failed to cache active status for battle %s: %v", battleID, err)
	}

	battle.Defender = &participant
	battle.Status = models.BattleActive
	log.Printf("INFO: Battle %s joined by %s, now active.", battleID, defender.Username)
	return battle, nil
}

// CastVote records a viewer's vote. Dedup and the tally increment happen
// atomically in the Redis ledger; the coin reward for voting is credited
// asynchronously and its failure never revokes the vote.
func (bsvc *BattleService) CastVote(ctx context.Context, battleID, viewerID string, side models.BattleSide) (ledger.Tally, error) {
	if viewerID == "" {
		return ledger.Tally{}, fmt.Errorf("%w: viewerId is required", ErrValidation)
	}

	battle, err := bsvc.battleStore.GetBattleByID(ctx, battleID)
	if err != nil {
		if errors.Is(err, store.ErrBattleNotFound) {
			return ledger.Tally{}, ErrBattleNotFound
		}
		return ledger.Tally{}, fmt.Errorf("service failed to load battle for vote: %w", err)
	}
	if err := ledger.Admit(battle, side); err != nil {
		return ledger.Tally{}, err
	}

	if _, err := bsvc.voteStore.CastVote(ctx, battleID, viewerID, side); err != nil {
		return ledger.Tally{}, err
	}

	go func(viewer string) {
		rewardCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bsvc.profileClient.CreditCoins(rewardCtx, viewer, bsvc.voteReward, "vote reward"); err != nil {
			log.Printf("WARN: Failed to credit vote reward to %s for battle %s: %v", viewer, battleID, err)
		}
	}(viewerID)

	tally, err := bsvc.voteStore.GetTally(ctx, battleID)
	if err != nil {
		log.Printf("WARN: Vote recorded but tally read failed for battle %s: %v", battleID, err)
		return ledger.Tally{}, nil
	}
	return tally, nil
}

// GetVotes returns the battle's tallies and the strict-majority leader.
// Ended battles read from the settled MongoDB document, live ones from the
// Redis ledger.
func (bsvc *BattleService) GetVotes(ctx context.Context, battleID string) (ledger.Tally, *models.BattleSide, error) {
	battle, err := bsvc.battleStore.GetBattleByID(ctx, battleID)
	if err != nil {
		if errors.Is(err, store.ErrBattleNotFound) {
			return ledger.Tally{}, nil, ErrBattleNotFound
		}
		return ledger.Tally{}, nil, fmt.Errorf("service failed to load battle for votes: %w", err)
	}

	if !battle.AcceptsVotes() {
		tally := ledger.Tally{Challenger: battle.VotesChallenger, Defender: battle.VotesDefender}
		return tally, tally.Leader(), nil
	}

	tally, err := bsvc.voteStore.GetTally(ctx, battleID)
	if err != nil {
		return ledger.Tally{}, nil, fmt.Errorf("service failed to read tally: %w", err)
	}
	return tally, tally.Leader(), nil
}

// Promote reclassifies an active battle as hot. Voting behavior is
// unchanged.
func (bsvc *BattleService) Promote(ctx context.Context, battleID string) error {
	err := bsvc.battleStore.TransitionStatus(ctx, battleID, models.BattleActive, models.BattleHot)
	if err != nil {
		if errors.Is(err, store.ErrBattleNotFound) {
			return ErrBattleNotFound
		}
		if errors.Is(err, store.ErrWrongBattleStatus) {
			return fmt.Errorf("%w: only active battles can be promoted", ErrBattleNotActive)
		}
		return fmt.Errorf("service failed to promote battle: %w", err)
	}

	if err := bsvc.voteStore.SetBattleStatus(ctx, battleID, models.BattleHot); err != nil {
		log.Printf("WARN: Failed to cache hot status for battle %s: %v", battleID, err)
	}
	return nil
}

// Hype returns a line of commentary for the battle. Never fails: the hype
// service degrades to canned lines internally.
func (bsvc *BattleService) Hype(ctx context.Context, battleID string) (string, error) {
	battle, err := bsvc.battleStore.GetBattleByID(ctx, battleID)
	if err != nil {
		if errors.Is(err, store.ErrBattleNotFound) {
			return "", ErrBattleNotFound
		}
		return "", fmt.Errorf("service failed to load battle for hype: %w", err)
	}
	return bsvc.hypeService.GenerateHype(ctx, battle), nil
}

// Territories returns the city map.
func (bsvc *BattleService) Territories(ctx context.Context) ([]models.Territory, error) {
	territories, err := bsvc.territoryStore.ListTerritories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service failed to list territories: %w", err)
	}
	return territories, nil
}

// Settle finalizes an expired battle: final tallies move from Redis to the
// battle document, the winner collects the pot plus reputation and a Gold
// duffle, and a decisive win hands the genre's territory to the winner.
// Equal tallies are a draw; both stakes are refunded.
func (bsvc *BattleService) Settle(ctx context.Context, battle *models.Battle) error {
	// Close the ledger before reading the final tally. A vote admitted after
	// the read would be counted in Redis but missing from the stamped result.
	if err := bsvc.voteStore.SetBattleStatus(ctx, battle.ID, models.BattleEnded); err != nil {
		return fmt.Errorf("failed to close vote ledger for battle %s: %w", battle.ID, err)
	}

	tally, err := bsvc.voteStore.GetTally(ctx, battle.ID)
	if err != nil {
		return fmt.Errorf("failed to read final tally for battle %s: %w", battle.ID, err)
	}

	if err := bsvc.battleStore.MarkEnded(ctx, battle.ID, tally.Challenger, tally.Defender); err != nil {
		if errors.Is(err, store.ErrWrongBattleStatus) {
			// Another instance settled it first.
			return nil
		}
		return fmt.Errorf("failed to mark battle %s ended: %w", battle.ID, err)
	}

	leader := tally.Leader()
	if leader == nil {
		bsvc.refundStakes(ctx, battle)
		log.Printf("INFO: Battle %s settled as a draw (%d-%d), stakes refunded.", battle.ID, tally.Challenger, tally.Defender)
		return nil
	}

	winner, loser := battle.Challenger, battle.Defender
	if *leader == models.SideDefender {
		if battle.Defender == nil {
			// Open battle expired without a defender; nothing to pay out.
			bsvc.refundStakes(ctx, battle)
			return nil
		}
		winner, loser = *battle.Defender, &battle.Challenger
	}

	pot := battle.EntryFee * 2
	if battle.Defender == nil {
		pot = battle.EntryFee
	}
	if pot > 0 {
		if err := bsvc.profileClient.CreditCoins(ctx, winner.ProfileID, pot, "battle pot"); err != nil {
			log.Printf("ERROR: Failed to pay pot %d to %s for battle %s: %v", pot, winner.ProfileID, battle.ID, err)
		}
	}
	if err := bsvc.profileClient.CreditReputation(ctx, winner.ProfileID, WinnerReputation, "battle win"); err != nil {
		log.Printf("ERROR: Failed to credit reputation to %s for battle %s: %v", winner.ProfileID, battle.ID, err)
	}
	if err := bsvc.profileClient.GrantDuffle(ctx, winner.ProfileID, models.DuffleGold, WinnerDuffleUnlockDelay.Milliseconds()); err != nil {
		log.Printf("ERROR: Failed to grant winner duffle to %s for battle %s: %v", winner.ProfileID, battle.ID, err)
	}
	if err := bsvc.profileClient.RecordBattleResult(ctx, winner.ProfileID, true); err != nil {
		log.Printf("WARN: Failed to record win for %s: %v", winner.ProfileID, err)
	}
	if loser != nil {
		if err := bsvc.profileClient.RecordBattleResult(ctx, loser.ProfileID, false); err != nil {
			log.Printf("WARN: Failed to record loss for %s: %v", loser.ProfileID, err)
		}
	}

	bsvc.handTerritoryForGenre(ctx, battle.Genre, winner.Username)

	log.Printf("INFO: Battle %s settled, %s wins %d-%d, pot %d.", battle.ID, winner.Username, tally.Challenger, tally.Defender, pot)
	return nil
}

func (bsvc *BattleService) refundStakes(ctx context.Context, battle *models.Battle) {
	if battle.EntryFee <= 0 {
		return
	}
	if err := bsvc.profileClient.CreditCoins(ctx, battle.Challenger.ProfileID, battle.EntryFee, "battle draw refund"); err != nil {
		log.Printf("ERROR: Failed to refund challenger stake for battle %s: %v", battle.ID, err)
	}
	if battle.Defender != nil {
		if err := bsvc.profileClient.CreditCoins(ctx, battle.Defender.ProfileID, battle.EntryFee, "battle draw refund"); err != nil {
			log.Printf("ERROR: Failed to refund defender stake for battle %s: %v", battle.ID, err)
		}
	}
}

// bumpTerritoryForGenre increments the battle counter of the territory
// whose genre matches, asynchronously; the map is decorative and must not
// slow down publishing.
func (bsvc *BattleService) bumpTerritoryForGenre(genre string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		territories, err := bsvc.territoryStore.ListTerritories(ctx)
		if err != nil {
			log.Printf("WARN: Failed to list territories for battle count bump: %v", err)
			return
		}
		for _, t := range territories {
			if strings.EqualFold(t.Genre, genre) {
				if err := bsvc.territoryStore.IncrementBattleCount(ctx, t.ID); err != nil {
					log.Printf("WARN: Failed to bump battle count for territory %s: %v", t.ID, err)
				}
				return
			}
		}
	}()
}

func (bsvc *BattleService) handTerritoryForGenre(ctx context.Context, genre, winnerName string) {
	territories, err := bsvc.territoryStore.ListTerritories(ctx)
	if err != nil {
		log.Printf("WARN: Failed to list territories for control handover: %v", err)
		return
	}
	for _, t := range territories {
		if strings.EqualFold(t.Genre, genre) {
			if err := bsvc.territoryStore.SetControl(ctx, t.ID, winnerName); err != nil {
				log.Printf("WARN: Failed to hand territory %s to %s: %v", t.ID, winnerName, err)
			}
			return
		}
	}
}
