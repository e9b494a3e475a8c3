// shared/service/profileclient.go
package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/models"
)

// ProfileServiceClient is a client for the Profile Service.
// It uses an internal apiClient to make HTTP requests to the Profile Service.
type ProfileServiceClient struct {
	apiClient *api.Client
}

// NewProfileClient creates a new Profile Service client.
// It takes the base URL of the Profile Service as an argument.
func NewProfileClient(baseURL string) *ProfileServiceClient {
	return &ProfileServiceClient{
		apiClient: api.NewClient(baseURL, api.NewDefaultHTTPClient()),
	}
}

// --- Request/Response DTOs for Profile Service Communication ---
// These mirror the DTOs defined in profile/api/handlers.go for consistency.

// CreateProfileRequest is the structure for creating a new profile.
type CreateProfileRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// CoinAdjustmentRequest is the structure for crediting or debiting coins.
type CoinAdjustmentRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// ReputationCreditRequest is the structure for awarding reputation.
type ReputationCreditRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// GrantDuffleRequest is the structure for granting a duffle to a profile.
type GrantDuffleRequest struct {
	Type          models.DuffleType `json:"type"`
	UnlockDelayMs int64             `json:"unlockDelayMs"`
}

// RecordResultRequest is the structure for recording a battle result on a profile.
type RecordResultRequest struct {
	Won bool `json:"won"`
}

// --- Client Methods for Profile Service API Endpoints ---

// GetProfile fetches a profile by ID. Profile IDs are opaque strings, not
// necessarily UUIDs; the profile service owns the format.
// Returns api.ErrNotFound (wrapped) if the profile does not exist.
func (c *ProfileServiceClient) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	profile := &models.Profile{}
	err := c.apiClient.Get(ctx, fmt.Sprintf("/profiles/%s", profileID), profile)
	if err != nil {
		if api.IsHTTPError(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: profile %s", api.ErrNotFound, profileID)
		}
		return nil, fmt.Errorf("failed to get profile %s from Profile Service: %w", profileID, err)
	}
	return profile, nil
}

// CreateProfile sends a POST request to create a new profile.
func (c *ProfileServiceClient) CreateProfile(ctx context.Context, profileID, username string) (*models.Profile, error) {
	reqData := CreateProfileRequest{ID: profileID, Username: username}
	createdProfile := &models.Profile{}
	err := c.apiClient.Post(ctx, "/profiles", reqData, createdProfile)
	if err != nil {
		if api.IsHTTPError(err, http.StatusConflict) {
			return nil, fmt.Errorf("%w: profile %s already exists", api.ErrConflict, profileID)
		}
		return nil, fmt.Errorf("failed to create profile %s in Profile Service: %w", profileID, err)
	}
	return createdProfile, nil
}

// CreditCoins adds coins to a profile's balance.
func (c *ProfileServiceClient) CreditCoins(ctx context.Context, profileID string, amount int64, reason string) error {
	reqData := CoinAdjustmentRequest{Amount: amount, Reason: reason}
	err := c.apiClient.Post(ctx, fmt.Sprintf("/profiles/%s/coins/credit", profileID), reqData, nil)
	if err != nil {
		if api.IsHTTPError(err, http.StatusNotFound) {
			return fmt.Errorf("%w: profile %s", api.ErrNotFound, profileID)
		}
		return fmt.Errorf("failed to credit %d coins to profile %s: %w", amount, profileID, err)
	}
	return nil
}

// DebitCoins removes coins from a profile's balance. The debit is rejected
// with api.ErrConflict when the balance would go negative.
func (c *ProfileServiceClient) DebitCoins(ctx context.Context, profileID string, amount int64, reason string) error {
	reqData := CoinAdjustmentRequest{Amount: amount, Reason: reason}
	err := c.apiClient.Post(ctx, fmt.Sprintf("/profiles/%s/coins/debit", profileID), reqData, nil)
	if err != nil {
		if api.IsHTTPError(err, http.StatusNotFound) {
			return fmt.Errorf("%w: profile %s", api.ErrNotFound, profileID)
		}
		if api.IsHTTPError(err, http.StatusConflict) {
			return fmt.Errorf("%w: profile %s has insufficient coins for debit of %d", api.ErrConflict, profileID, amount)
		}
		return fmt.Errorf("failed to debit %d coins from profile %s: %w", amount, profileID, err)
	}
	return nil
}

// CreditReputation awards reputation to a profile. Reputation only ever goes up.
func (c *ProfileServiceClient) CreditReputation(ctx context.Context, profileID string, amount int64, reason string) error {
	reqData := ReputationCreditRequest{Amount: amount, Reason: reason}
	err := c.apiClient.Post(ctx, fmt.Sprintf("/profiles/%s/reputation/credit", profileID), reqData, nil)
	if err != nil {
		if api.IsHTTPError(err, http.StatusNotFound) {
			return fmt.Errorf("%w: profile %s", api.ErrNotFound, profileID)
		}
		return fmt.Errorf("failed to credit %d reputation to profile %s: %w", amount, profileID, err)
	}
	return nil
}

// GrantDuffle grants a duffle of the given type to a profile. The duffle
// starts locked and becomes ready after unlockDelayMs.
func (c *ProfileServiceClient) GrantDuffle(ctx context.Context, profileID string, duffleType models.DuffleType, unlockDelayMs int64) error {
	reqData := GrantDuffleRequest{Type: duffleType, UnlockDelayMs: unlockDelayMs}
	err := c.apiClient.Post(ctx, fmt.Sprintf("/profiles/%s/duffles", profileID), reqData, nil)
	if err != nil {
		if api.IsHTTPError(err, http.StatusNotFound) {
			return fmt.Errorf("%w: profile %s", api.ErrNotFound, profileID)
		}
		return fmt.Errorf("failed to grant %s duffle to profile %s: %w", duffleType, profileID, err)
	}
	return nil
}

// RecordBattleResult increments a profile's win or loss counter.
func (c *ProfileServiceClient) RecordBattleResult(ctx context.Context, profileID string, won bool) error {
	reqData := RecordResultRequest{Won: won}
	err := c.apiClient.Post(ctx, fmt.Sprintf("/profiles/%s/record", profileID), reqData, nil)
	if err != nil {
		if api.IsHTTPError(err, http.StatusNotFound) {
			return fmt.Errorf("%w: profile %s", api.ErrNotFound, profileID)
		}
		return fmt.Errorf("failed to record battle result for profile %s: %w", profileID, err)
	}
	return nil
}
