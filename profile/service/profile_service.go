// profile/service/profile_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/songversus/city-arena/profile/store"
	"github.com/songversus/city-arena/shared/models"
	"github.com/songversus/city-arena/shared/progression"
)

// Custom Errors for clear communication to the API layer.
var (
	ErrProfileAlreadyExists = fmt.Errorf("profile already exists")
	ErrProfileNotFound      = fmt.Errorf("profile not found")
	ErrDuffleNotFound       = fmt.Errorf("duffle not found")
	ErrDuffleNotReady       = fmt.Errorf("duffle is not ready to open")
	ErrVisualizerLocked     = fmt.Errorf("visualizer is not unlocked")
	ErrInsufficientCoins    = fmt.Errorf("insufficient coins")
	ErrAlreadyInCrew        = fmt.Errorf("profile already belongs to a crew")
	ErrCrewRankTooLow       = fmt.Errorf("rank too low to establish a crew")
	ErrValidation           = fmt.Errorf("invalid request")
)

// StarterDuffleUnlockDelay is how long the duffle granted at signup stays
// locked.
const StarterDuffleUnlockDelay = 24 * time.Hour

// lockedRand makes a *rand.Rand safe for concurrent handlers.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (lr *lockedRand) Intn(n int) int {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.rng.Intn(n)
}

func (lr *lockedRand) Float64() float64 {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.rng.Float64()
}

// ProfileService encapsulates the business logic for profiles.
type ProfileService struct {
	profileStore *store.ProfileStore
	resolver     *progression.RewardResolver
}

// NewProfileService creates a new ProfileService instance with a
// time-seeded reward resolver.
func NewProfileService(ps *store.ProfileStore) *ProfileService {
	rng := &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	return &ProfileService{
		profileStore: ps,
		resolver:     progression.NewRewardResolver(rng),
	}
}

// NewProfileServiceWithRand creates a ProfileService with an injected random
// source. Used by tests to pin reward outcomes.
func NewProfileServiceWithRand(ps *store.ProfileStore, rng progression.Rand) *ProfileService {
	return &ProfileService{
		profileStore: ps,
		resolver:     progression.NewRewardResolver(rng),
	}
}

// CreateProfile creates a new profile with the signup defaults: the Bars
// visualizer unlocked and active, zero coins and reputation, and a locked
// starter duffle.
func (ps *ProfileService) CreateProfile(ctx context.Context, id, username string, role models.Role) (*models.Profile, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if id == "" {
		id = uuid.New().String()
	}
	if role == "" {
		role = models.RoleArtist
	}

	now := time.Now()
	starter := models.Duffle{
		ID:         uuid.New().String(),
		Type:       models.DuffleStandard,
		Status:     models.DuffleLocked,
		AcquiredAt: now.UnixMilli(),
		UnlocksAt:  now.Add(StarterDuffleUnlockDelay).UnixMilli(),
	}

	newProfile := &models.Profile{
		ID:                  id,
		Username:            username,
		Role:                role,
		Coins:               0,
		Reputation:          0,
		Rank:                progression.RankName(0),
		Duffles:             []models.Duffle{starter},
		UnlockedVisualizers: []models.Visualizer{models.VisualizerBars},
		ActiveVisualizer:    models.VisualizerBars,
		CreatedAt:           &now,
		LastSeenAt:          &now,
	}

	if err := ps.profileStore.CreateProfile(ctx, newProfile); err != nil {
		if errors.Is(err, store.ErrProfileExists) {
			return nil, ErrProfileAlreadyExists
		}
		return nil, fmt.Errorf("service failed to create profile: %w", err)
	}

	log.Printf("INFO: Profile %s (%s) created with starter duffle %s.", id, username, starter.ID)
	return newProfile, nil
}

// GetProfile retrieves a profile. The rank field is recomputed from
// reputation on every read; the stored value is never trusted.
func (ps *ProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := ps.profileStore.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("service failed to get profile: %w", err)
	}
	profile.Rank = progression.RankName(profile.Reputation)

	go func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ps.profileStore.UpdateLastSeen(updateCtx, id); err != nil {
			log.Printf("WARN: Failed to update last seen for profile %s: %v", id, err)
		}
	}()
	return profile, nil
}

// GetStanding computes the profile's full rank standing: tier, progress
// toward the next tier, and the max-rank indicator.
func (ps *ProfileService) GetStanding(ctx context.Context, id string) (*progression.Standing, error) {
	profile, err := ps.profileStore.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("service failed to get profile for standing: %w", err)
	}
	standing := progression.Rank(profile.Reputation, progression.DefaultTiers)
	return &standing, nil
}

// GrantDuffle grants a duffle of the given type that unlocks after
// unlockDelayMs. A non-positive delay makes the duffle ready immediately.
func (ps *ProfileService) GrantDuffle(ctx context.Context, id string, duffleType models.DuffleType, unlockDelayMs int64) (*models.Duffle, error) {
	switch duffleType {
	case models.DuffleStandard, models.DuffleGold, models.DuffleDiamond:
	default:
		return nil, fmt.Errorf("%w: unknown duffle type %q", ErrValidation, duffleType)
	}

	now := time.Now()
	duffle := models.Duffle{
		ID:         uuid.New().String(),
		Type:       duffleType,
		Status:     models.DuffleLocked,
		AcquiredAt: now.UnixMilli(),
		UnlocksAt:  now.UnixMilli() + unlockDelayMs,
	}
	if unlockDelayMs <= 0 {
		duffle.Status = models.DuffleReady
		duffle.UnlocksAt = now.UnixMilli()
	}

	if err := ps.profileStore.GrantDuffle(ctx, id, duffle); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("service failed to grant duffle: %w", err)
	}
	return &duffle, nil
}

// OpenDuffle resolves the reward for a ready duffle and applies it to the
// profile in a single atomic update.
func (ps *ProfileService) OpenDuffle(ctx context.Context, id, duffleID string) (*progression.RewardOutcome, error) {
	profile, err := ps.profileStore.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("service failed to load profile for duffle open: %w", err)
	}

	outcome, err := ps.resolver.Resolve(profile, duffleID)
	if err != nil {
		switch {
		case errors.Is(err, progression.ErrDuffleNotFound):
			return nil, ErrDuffleNotFound
		case errors.Is(err, progression.ErrDuffleNotReady):
			return nil, ErrDuffleNotReady
		}
		return nil, fmt.Errorf("service failed to resolve duffle reward: %w", err)
	}

	if err := ps.profileStore.ApplyRewardOutcome(ctx, id, duffleID, outcome.CashAmount, outcome.Unlocked); err != nil {
		if errors.Is(err, store.ErrDuffleNotOpenable) {
			// Lost a race with a concurrent open of the same duffle.
			return nil, ErrDuffleNotReady
		}
		return nil, fmt.Errorf("service failed to apply duffle reward: %w", err)
	}

	if outcome.Unlocked != nil {
		log.Printf("INFO: Profile %s opened duffle %s: %d coins, unlocked %s.", id, duffleID, outcome.CashAmount, *outcome.Unlocked)
	} else {
		log.Printf("INFO: Profile %s opened duffle %s: %d coins.", id, duffleID, outcome.CashAmount)
	}
	return &outcome, nil
}

// SetActiveVisualizer switches the profile's active visualizer. The
// visualizer must be in the unlocked set.
func (ps *ProfileService) SetActiveVisualizer(ctx context.Context, id string, v models.Visualizer) error {
	if !models.ValidVisualizer(v) {
		return fmt.Errorf("%w: unknown visualizer %q", ErrValidation, v)
	}
	if err := ps.profileStore.SetActiveVisualizer(ctx, id, v); err != nil {
		switch {
		case errors.Is(err, store.ErrProfileNotFound):
			return ErrProfileNotFound
		case errors.Is(err, store.ErrVisualizerLocked):
			return ErrVisualizerLocked
		}
		return fmt.Errorf("service failed to set active visualizer: %w", err)
	}
	return nil
}

// CreditCoins adds a positive amount of coins to the profile.
func (ps *ProfileService) CreditCoins(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	if err := ps.profileStore.CreditCoins(ctx, id, amount); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("service failed to credit coins: %w", err)
	}
	return nil
}

// DebitCoins removes a positive amount of coins from the profile. The
// balance can never go negative.
func (ps *ProfileService) DebitCoins(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	if err := ps.profileStore.DebitCoins(ctx, id, amount); err != nil {
		switch {
		case errors.Is(err, store.ErrProfileNotFound):
			return ErrProfileNotFound
		case errors.Is(err, store.ErrInsufficientCoins):
			return ErrInsufficientCoins
		}
		return fmt.Errorf("service failed to debit coins: %w", err)
	}
	return nil
}

// CreditReputation awards a positive amount of reputation. Reputation only
// ever goes up; there is no debit counterpart.
func (ps *ProfileService) CreditReputation(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reputation amount must be positive", ErrValidation)
	}
	if err := ps.profileStore.CreditReputation(ctx, id, amount); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("service failed to credit reputation: %w", err)
	}
	return nil
}

// CreateCrew establishes a crew for the profile. Requires the Pro tier and
// no existing crew membership.
func (ps *ProfileService) CreateCrew(ctx context.Context, id, crewName string) error {
	if crewName == "" {
		return fmt.Errorf("%w: crew name is required", ErrValidation)
	}

	profile, err := ps.profileStore.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("service failed to load profile for crew creation: %w", err)
	}
	if !progression.CanCreateCrew(profile.Reputation) {
		return ErrCrewRankTooLow
	}

	if err := ps.profileStore.SetCrew(ctx, id, crewName); err != nil {
		switch {
		case errors.Is(err, store.ErrProfileNotFound):
			return ErrProfileNotFound
		case errors.Is(err, store.ErrAlreadyInCrew):
			return ErrAlreadyInCrew
		}
		return fmt.Errorf("service failed to set crew: %w", err)
	}

	log.Printf("INFO: Profile %s established crew %q.", id, crewName)
	return nil
}

// RecordResult increments the profile's win or loss counter.
func (ps *ProfileService) RecordResult(ctx context.Context, id string, won bool) error {
	if err := ps.profileStore.RecordResult(ctx, id, won); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("service failed to record result: %w", err)
	}
	return nil
}

// Leaderboard returns the top profiles by reputation, rank recomputed for
// each entry.
func (ps *ProfileService) Leaderboard(ctx context.Context, limit int64) ([]models.Profile, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	profiles, err := ps.profileStore.TopByReputation(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service failed to query leaderboard: %w", err)
	}
	for i := range profiles {
		profiles[i].Rank = progression.RankName(profiles[i].Reputation)
	}
	return profiles, nil
}
