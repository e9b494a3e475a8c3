// battle/api/handlers.go
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
	"github.com/songversus/city-arena/battle/ledger"
	"github.com/songversus/city-arena/battle/service"
	"github.com/songversus/city-arena/shared/api"
	"github.com/songversus/city-arena/shared/models"
)

// BattleAPIHandlers holds references to the services that handle business logic.
type BattleAPIHandlers struct {
	BattleService *service.BattleService
}

// NewBattleAPIHandlers is the constructor for the battle API handlers.
func NewBattleAPIHandlers(bs *service.BattleService) *BattleAPIHandlers {
	return &BattleAPIHandlers{
		BattleService: bs,
	}
}

// --- Request/Response DTOs ---

type CreateBattleRequest struct {
	ChallengerID string            `json:"challengerId"`
	Title        string            `json:"title"`
	Genre        string            `json:"genre"`
	Kind         models.BattleKind `json:"kind"`
	BPM          int               `json:"bpm"`
	EntryFee     int64             `json:"entryFee"`
	DurationMs   int64             `json:"durationMs"`
	CoverImage   string            `json:"coverImage,omitempty"`
	AudioPreview string            `json:"audioPreviewUrl,omitempty"`
}

type JoinBattleRequest struct {
	DefenderID string `json:"defenderId"`
}

type CastVoteRequest struct {
	ViewerID string            `json:"viewerId"`
	Side     models.BattleSide `json:"side"`
}

type VotesResponse struct {
	Tally  ledger.Tally       `json:"tally"`
	Leader *models.BattleSide `json:"leader,omitempty"`
}

type HypeResponse struct {
	Line string `json:"line"`
}

// --- Handler Methods ---

// CreateBattleHandler publishes a new battle.
// POST /battles
func (bah *BattleAPIHandlers) CreateBattleHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	battle, err := bah.BattleService.CreateBattle(ctx, service.CreateBattleParams{
		ChallengerID: req.ChallengerID,
		Title:        req.Title,
		Genre:        req.Genre,
		Kind:         req.Kind,
		BPM:          req.BPM,
		EntryFee:     req.EntryFee,
		Duration:     time.Duration(req.DurationMs) * time.Millisecond,
		CoverImage:   req.CoverImage,
		AudioPreview: req.AudioPreview,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Challenger %s not found", req.ChallengerID))
		case errors.Is(err, service.ErrInsufficientFunds):
			api.WriteError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Creating battle for challenger %s: %v", req.ChallengerID, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to create battle")
		}
		return
	}

	api.WriteJSON(w, http.StatusCreated, battle)
}

// GetBattleHandler retrieves a battle by ID.
// GET /battles/{id}
func (bah *BattleAPIHandlers) GetBattleHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	battle, err := bah.BattleService.GetBattle(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Battle %s not found", id))
		default:
			log.Printf("ERROR: Getting battle %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to retrieve battle")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, battle)
}

// ListBattlesHandler lists battles, optionally filtered by status.
// GET /battles?status=...&limit=N
func (bah *BattleAPIHandlers) ListBattlesHandler(w http.ResponseWriter, r *http.Request) {
	status := models.BattleStatus(r.URL.Query().Get("status"))
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	battles, err := bah.BattleService.ListBattles(ctx, status, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Listing battles: %v", err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to list battles")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, battles)
}

// TrendingHandler lists live featured battles.
// GET /battles/trending
func (bah *BattleAPIHandlers) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	battles, err := bah.BattleService.Trending(ctx, limit)
	if err != nil {
		log.Printf("ERROR: Listing trending battles: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "Failed to list trending battles")
		return
	}

	api.WriteJSON(w, http.StatusOK, battles)
}

// JoinBattleHandler fills the defender slot of an open battle.
// POST /battles/{id}/join
func (bah *BattleAPIHandlers) JoinBattleHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req JoinBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	battle, err := bah.BattleService.JoinBattle(ctx, id, req.DefenderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Battle %s not found", id))
		case errors.Is(err, service.ErrProfileNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Defender %s not found", req.DefenderID))
		case errors.Is(err, service.ErrBattleNotOpen), errors.Is(err, service.ErrSelfJoin), errors.Is(err, service.ErrInsufficientFunds):
			api.WriteError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Joining battle %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to join battle")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, battle)
}

// CastVoteHandler records a viewer's vote.
// POST /battles/{id}/votes
func (bah *BattleAPIHandlers) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tally, err := bah.BattleService.CastVote(ctx, id, req.ViewerID, req.Side)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Battle %s not found", id))
		case errors.Is(err, ledger.ErrAlreadyVoted):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Viewer %s already voted in battle %s", req.ViewerID, id))
		case errors.Is(err, ledger.ErrBattleClosed):
			api.WriteError(w, http.StatusConflict, fmt.Sprintf("Battle %s no longer accepts votes", id))
		case errors.Is(err, ledger.ErrInvalidSide), errors.Is(err, service.ErrValidation):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: Casting vote in battle %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to cast vote")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, VotesResponse{Tally: tally, Leader: tally.Leader()})
}

// GetVotesHandler returns current tallies and the strict-majority leader.
// GET /battles/{id}/votes
func (bah *BattleAPIHandlers) GetVotesHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tally, leader, err := bah.BattleService.GetVotes(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Battle %s not found", id))
		default:
			log.Printf("ERROR: Getting votes for battle %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to get votes")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, VotesResponse{Tally: tally, Leader: leader})
}

// PromoteHandler reclassifies an active battle as hot.
// POST /battles/{id}/promote
func (bah *BattleAPIHandlers) PromoteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := bah.BattleService.Promote(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Battle %s not found", id))
		case errors.Is(err, service.ErrBattleNotActive):
			api.WriteError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: Promoting battle %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to promote battle")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Battle %s is now hot", id)})
}

// HypeHandler returns a line of flavor commentary for the battle.
// POST /battles/{id}/hype
func (bah *BattleAPIHandlers) HypeHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	line, err := bah.BattleService.Hype(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBattleNotFound):
			api.WriteError(w, http.StatusNotFound, fmt.Sprintf("Battle %s not found", id))
		default:
			log.Printf("ERROR: Generating hype for battle %s: %v", id, err)
			api.WriteError(w, http.StatusInternalServerError, "Failed to generate hype")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, HypeResponse{Line: line})
}

// ListTerritoriesHandler returns the city map.
// GET /territories
func (bah *BattleAPIHandlers) ListTerritoriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	territories, err := bah.BattleService.Territories(ctx)
	if err != nil {
		log.Printf("ERROR: Listing territories: %v", err)
		api.WriteError(w, http.StatusInternalServerError, "Failed to list territories")
		return
	}

	api.WriteJSON(w, http.StatusOK, territories)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int64, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, true
	}
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		api.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

// RegisterRoutes registers all API endpoints for the Battle Service.
func (bah *BattleAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/battles", bah.CreateBattleHandler).Methods("POST")
	router.HandleFunc("/battles/trending", bah.TrendingHandler).Methods("GET")
	router.HandleFunc("/battles", bah.ListBattlesHandler).Methods("GET")
	router.HandleFunc("/battles/{id}", bah.GetBattleHandler).Methods("GET")
	router.HandleFunc("/battles/{id}/join", bah.JoinBattleHandler).Methods("POST")
	router.HandleFunc("/battles/{id}/votes", bah.CastVoteHandler).Methods("POST")
	router.HandleFunc("/battles/{id}/votes", bah.GetVotesHandler).Methods("GET")
	router.HandleFunc("/battles/{id}/promote", bah.PromoteHandler).Methods("POST")
	router.HandleFunc("/battles/{id}/hype", bah.HypeHandler).Methods("POST")

	router.HandleFunc("/territories", bah.ListTerritoriesHandler).Methods("GET")
}
