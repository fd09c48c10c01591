package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ScorerConfig describes the external transcript scorer endpoint.
type ScorerConfig struct {
	URL     string        `env:"SCORER_URL,required"`
	APIKey  string        `env:"SCORER_API_KEY,required"`
	Timeout time.Duration `env:"SCORER_TIMEOUT" envDefault:"30s"`
}

// HTTPScorer calls the voice-AI scoring service over HTTP.
type HTTPScorer struct {
	cfg    ScorerConfig
	client *http.Client
}

// NewHTTPScorer creates a scorer client from the config.
func NewHTTPScorer(cfg ScorerConfig) *HTTPScorer {
	return &HTTPScorer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, userID, interviewID, transcript string) (Score, error) {
	body, err := json.Marshal(map[string]string{
		"userId":      userID,
		"interviewId": interviewID,
		"transcript":  transcript,
	})
	if err != nil {
		return Score{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Score{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Score{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Score{}, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var score Score
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return Score{}, err
	}
	return score, nil
}
