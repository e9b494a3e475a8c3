package hype

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/songversus/city-arena/shared/models"
)

// Canned lines used whenever the text-generation service is unavailable or
// misbehaves. Hype must never fail a request.
var fallbackLines = []string{
	"This battle is absolutely legendary!",
	"A %s %s battle for the ages.",
}

// generateRequest is the payload sent to the external text-generation service.
type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens"`
}

// generateResponse is the expected reply shape.
type generateResponse struct {
	Text string `json:"text"`
}

// HypeService produces flavor commentary for battles via an external
// text-generation service, degrading to canned lines on any failure.
type HypeService struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHypeService creates a new HypeService. An empty baseURL disables the
// external call entirely; every request then gets a canned line.
func NewHypeService(baseURL, apiKey string) *HypeService {
	return &HypeService{
		httpClient: &http.Client{Timeout: 5 * time.Second}, // Short timeout for external API
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// GenerateHype returns a line of commentary for the battle. Any failure of
// the external service degrades to a canned line, never an error.
func (hs *HypeService) GenerateHype(ctx context.Context, battle *models.Battle) string {
	if hs.baseURL == "" {
		return hs.fallback(battle)
	}

	text, err := hs.generate(ctx, battle)
	if err != nil {
		log.Printf("WARN: Hype generation failed for battle %s, using fallback: %v", battle.ID, err)
		return hs.fallback(battle)
	}
	return text
}

func (hs *HypeService) generate(ctx context.Context, battle *models.Battle) (string, error) {
	defenderName := "an unknown rival"
	if battle.Defender != nil {
		defenderName = battle.Defender.Username
	}
	prompt := fmt.Sprintf(
		"Write one short, excited line of commentary for a %s %s battle between %s and %s titled %q.",
		battle.Genre, battle.Kind, battle.Challenger.Username, defenderName, battle.Title,
	)

	body, err := json.Marshal(generateRequest{Prompt: prompt, MaxTokens: 60})
	if err != nil {
		return "", fmt.Errorf("failed to marshal hype request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generate", hs.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create hype request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if hs.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+hs.apiKey)
	}

	resp, err := hs.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("hype request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from hype service", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read hype response: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(bodyBytes, &genResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal hype response: %w", err)
	}
	if genResp.Text == "" {
		return "", fmt.Errorf("hype service returned an empty line")
	}
	return genResp.Text, nil
}

func (hs *HypeService) fallback(battle *models.Battle) string {
	switch rand.Intn(len(fallbackLines)) {
	case 1:
		return fmt.Sprintf(fallbackLines[1], battle.Genre, battle.Kind)
	default:
		return fallbackLines[0]
	}
}
