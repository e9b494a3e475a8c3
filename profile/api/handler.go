// profile/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/songversus/city-arena/profile/service"
	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/models"
)

// ProfileAPIHandlers holds references to the services that handle business logic.
type ProfileAPIHandlers struct {
	ProfileService   *service.ProfileService
	LeaderboardLimit int64
}

// NewProfileAPIHandlers is the constructor for the profile API handlers.
func NewProfileAPIHandlers(ps *service.ProfileService, leaderboardLimit int64) *ProfileAPIHandlers {
	return &ProfileAPIHandlers{
		ProfileService:   ps,
		LeaderboardLimit: leaderboardLimit,
	}
}

// --- Request/Response DTOs ---

type CreateProfileRequest struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

type GrantDuffleRequest struct {
	Type          models.DuffleType `json:"type"`
	UnlockDelayMs int64             `json:"unlockDelayMs"`
}

type SetVisualizerRequest struct {
	Visualizer models.Visualizer `json:"visualizer"`
}

type CoinAdjustmentRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type ReputationCreditRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type CreateCrewRequest struct {
	Name string `json:"name"`
}

type RecordResultRequest struct {
	Won bool `json:"won"`
}

// --- Handler Methods ---

// CreateProfileHandler handles requests to create a new profile.
// POST /profiles
func (pah *ProfileAPIHandlers) CreateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	createdProfile, err := pah.ProfileService.CreateProfile(ctx, req.ID, req.Username, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileAlreadyExists):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Profile %s already exists", req.ID))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Creating profile %s: %v", req.ID, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to create profile")
		}
		return
	}

	api.WriteJSON(w, http.StatusCreated, createdProfile)
}

// GetProfileHandler handles requests to retrieve a profile by ID.
// GET /profiles/{id}
func (pah *ProfileAPIHandlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	profile, err := pah.ProfileService.GetProfile(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		default:
			log.Printf("ERROR: Getting profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to retrieve profile")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, profile)
}

// GetStandingHandler returns the profile's rank standing.
// GET /profiles/{id}/rank
func (pah *ProfileAPIHandlers) GetStandingHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	standing, err := pah.ProfileService.GetStanding(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		default:
			log.Printf("ERROR: Getting standing for profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to compute rank")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, standing)
}

// GrantDuffleHandler grants a duffle to a profile.
// POST /profiles/{id}/duffles
func (pah *ProfileAPIHandlers) GrantDuffleHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req GrantDuffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	duffle, err := pah.ProfileService.GrantDuffle(ctx, id, req.Type, req.UnlockDelayMs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Granting duffle to profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to grant duffle")
		}
		return
	}

	api.WriteJSON(w, http.StatusCreated, duffle)
}

// OpenDuffleHandler opens a ready duffle and returns the reward outcome.
// POST /profiles/{id}/duffles/{duffleId}/open
func (pah *ProfileAPIHandlers) OpenDuffleHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	duffleID := vars["duffleId"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	outcome, err := pah.ProfileService.OpenDuffle(ctx, id, duffleID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrDuffleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Duffle %s not found on profile %s", duffleID, id))
		case errors.Is(err, service.ErrDuffleNotReady):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Duffle %s is not ready to open", duffleID))
		default:
			log.Printf("ERROR: Opening duffle %s on profile %s: %v", duffleID, id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to open duffle")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, outcome)
}

// SetVisualizerHandler sets the profile's active visualizer.
// PUT /profiles/{id}/visualizer
func (pah *ProfileAPIHandlers) SetVisualizerHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SetVisualizerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := pah.ProfileService.SetActiveVisualizer(ctx, id, req.Visualizer)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrVisualizerLocked):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Visualizer %s is not unlocked", req.Visualizer))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Setting visualizer for profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to set visualizer")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Active visualizer set to %s", req.Visualizer)})
}

// CreditCoinsHandler adds coins to a profile.
// POST /profiles/{id}/coins/credit
func (pah *ProfileAPIHandlers) CreditCoinsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CoinAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := pah.ProfileService.CreditCoins(ctx, id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Crediting coins to profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to credit coins")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Credited %d coins to profile %s", req.Amount, id)})
}

// DebitCoinsHandler removes coins from a profile.
// POST /profiles/{id}/coins/debit
func (pah *ProfileAPIHandlers) DebitCoinsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CoinAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := pah.ProfileService.DebitCoins(ctx, id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrInsufficientCoins):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Profile %s has insufficient coins", id))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Debiting coins from profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to debit coins")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Debited %d coins from profile %s", req.Amount, id)})
}

// CreditReputationHandler awards reputation to a profile.
// POST /profiles/{id}/reputation/credit
func (pah *ProfileAPIHandlers) CreditReputationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ReputationCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := pah.ProfileService.CreditReputation(ctx, id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Crediting reputation to profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to credit reputation")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Credited %d reputation to profile %s", req.Amount, id)})
}

// CreateCrewHandler establishes a crew for a profile.
// POST /profiles/{id}/crew
func (pah *ProfileAPIHandlers) CreateCrewHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CreateCrewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := pah.ProfileService.CreateCrew(ctx, id, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		case errors.Is(err, service.ErrCrewRankTooLow):
			api.WriteError(w, http.StatusConflict, "Pro rank is required to establish a crew")
		case errors.Is(err, service.ErrAlreadyInCrew):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Profile %s already belongs to a crew", id))
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Creating crew for profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to create crew")
		}
		return
	}

	api.WriteJSON(w, http.StatusCreated, map[string]string{"message": fmt.Sprintf("Crew %q established", req.Name)})
}

// RecordResultHandler increments a profile's win or loss counter.
// POST /profiles/{id}/record
func (pah *ProfileAPIHandlers) RecordResultHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RecordResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := pah.ProfileService.RecordResult(ctx, id, req.Won)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Profile %s not found", id))
		default:
			log.Printf("ERROR: Recording result for profile %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to record result")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Result recorded for profile %s", id)})
}

// LeaderboardHandler returns the top profiles by reputation.
// GET /leaderboard?limit=N
func (pah *ProfileAPIHandlers) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := pah.LeaderboardLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || parsed <= 0 {
			api.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	profiles, err := pah.ProfileService.Leaderboard(ctx, limit)
	if err != nil {
		log.Printf("ERROR: Querying leaderboard: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "Failed to query leaderboard")
		return
	}

	api.WriteJSON(w, http.StatusOK, profiles)
}

// RegisterRoutes registers all API endpoints for the Profile Service.
func (pah *ProfileAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/profiles", pah.CreateProfileHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}", pah.GetProfileHandler).Methods("GET")
	router.HandleFunc("/profiles/{id}/rank", pah.GetStandingHandler).Methods("GET")
	router.HandleFunc("/profiles/{id}/duffles", pah.GrantDuffleHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}/duffles/{duffleId}/open", pah.OpenDuffleHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}/visualizer", pah.SetVisualizerHandler).Methods("PUT")
	router.HandleFunc("/profiles/{id}/coins/credit", pah.CreditCoinsHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}/coins/debit", pah.DebitCoinsHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}/reputation/credit", pah.CreditReputationHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}/crew", pah.CreateCrewHandler).Methods("POST")
	router.HandleFunc("/profiles/{id}/record", pah.RecordResultHandler).Methods("POST")

	router.HandleFunc("/leaderboard", pah.LeaderboardHandler).Methods("GET")
}
