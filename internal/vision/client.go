package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/livingcool/kisanmind-sub000/internal/catalog"
	"github.com/livingcool/kisanmind-sub000/pkg/types"
)

// Client wraps the external frame-quality analysis service. Analyze
// never fails: when the service is degraded it returns a permissive
// verdict so a down dependency can never block a farmer from capturing.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	resetTimeout  time.Duration
	healthTimeout time.Duration
}

// NewClient creates a frame-quality client.
func NewClient(baseURL, apiKey string, timeout, resetTimeout, healthTimeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: timeout},
		resetTimeout:  resetTimeout,
		healthTimeout: healthTimeout,
	}
}

// analyzeRequest is the wire format sent to the quality service.
type analyzeRequest struct {
	SessionID string              `json:"session_id"`
	StepID    string              `json:"step_id"`
	FrameData string              `json:"frame_data"`
	Overrides *catalog.Thresholds `json:"overrides,omitempty"`
}

// Analyze submits a frame for quality analysis. Per-step threshold
// overrides, when present, are forwarded to the service. On any error
// or timeout the permissive fallback verdict is returned instead.
func (c *Client) Analyze(ctx context.Context, sessionID, stepID, frameData string, overrides *catalog.Thresholds) *types.FrameAnalysis {
	analysis, err := c.callAnalyze(ctx, sessionID, stepID, frameData, overrides)
	if err != nil {
		log.Printf("Quality service unavailable for session %s step %s, using permissive fallback: %v", sessionID, stepID, err)
		return FallbackAnalysis()
	}
	return analysis
}

func (c *Client) callAnalyze(ctx context.Context, sessionID, stepID, frameData string, overrides *catalog.Thresholds) (*types.FrameAnalysis, error) {
	reqBytes, err := json.Marshal(analyzeRequest{
		SessionID: sessionID,
		StepID:    stepID,
		FrameData: frameData,
		Overrides: overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/frames/analyze"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quality service returned status %d", resp.StatusCode)
	}

	var result types.FrameAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Feedback.OverlayColor == "" {
		return nil, fmt.Errorf("quality service returned incomplete feedback")
	}

	return &result, nil
}

// FallbackAnalysis is the permissive verdict returned when the quality
// service is unreachable. Capture stays enabled so the farmer can
// finish the sequence without quality gating.
func FallbackAnalysis() *types.FrameAnalysis {
	return &types.FrameAnalysis{
		Analysis: types.QualityVerdict{
			Score:        70,
			IsAcceptable: true,
			PrimaryIssue: "good",
			FeedbackID:   "looks_good",
		},
		Feedback: types.FeedbackDecision{
			ShouldSpeak:    false,
			OverlayColor:   types.OverlayYellow,
			StatusText:     "Quality check unavailable",
			CaptureEnabled: true,
		},
	}
}

// Reset clears the per-session feedback throttle and history held by
// the quality service. Called on every step advance; callers treat
// failures as best effort.
func (c *Client) Reset(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.resetTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/sessions/%s/reset", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("quality service returned status %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck reports whether the quality service answers its health
// endpoint within the probe timeout.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
