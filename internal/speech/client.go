package speech

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

// Client wraps the external speech-instruction synthesis service. A
// failed or slow call never surfaces as an error: the client builds a
// deterministic on-device fallback instruction instead, so callers are
// never blocked on this dependency.
type Client struct {
	baseURL       string
	apiKey        string
	catalog       *catalog.Catalog
	httpClient    *http.Client
	healthTimeout time.Duration
}

// NewClient creates a speech-instruction client. The catalog is used to
// build generic "Step N. Title." fallback texts for step instructions
// that have no dedicated template.
func NewClient(baseURL, apiKey string, cat *catalog.Catalog, timeout, healthTimeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		catalog:       cat,
		httpClient:    &http.Client{Timeout: timeout},
		healthTimeout: healthTimeout,
	}
}

// synthesizeResponse is the wire format of the speech service.
type synthesizeResponse struct {
	Text       string `json:"text"`
	AudioPath  string `json:"audio_path"`
	DurationMs int    `json:"duration_ms"`
	Locale     string `json:"locale"`
}

// Synthesize returns a speech instruction for the given instruction id
// and language. It never fails: on any service error it returns the
// client-speech fallback.
func (c *Client) Synthesize(ctx context.Context, instructionID, language string) *types.SpeechInstruction {
	instr, err := c.callService(ctx, instructionID, language)
	if err != nil {
		log.Printf("Speech service unavailable for %s (%s), using fallback: %v", instructionID, language, err)
		return c.Fallback(instructionID, language)
	}
	return instr
}

func (c *Client) callService(ctx context.Context, instructionID, language string) (*types.SpeechInstruction, error) {
	reqBody := map[string]string{
		"instruction_id": instructionID,
		"language":       language,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/instructions/synthesize"
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
		return nil, fmt.Errorf("speech service returned status %d", resp.StatusCode)
	}

	var result synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Text == "" {
		return nil, fmt.Errorf("speech service returned empty text")
	}

	mode := types.ModeExternalAPI
	if result.AudioPath != "" {
		mode = types.ModeFile
	}
	locale := result.Locale
	if locale == "" {
		locale = Locale(language)
	}
	durationMs := result.DurationMs
	if durationMs <= 0 {
		durationMs = estimateDurationMs(result.Text)
	}

	return &types.SpeechInstruction{
		Mode:                mode,
		InstructionID:       instructionID,
		Language:            language,
		Text:                result.Text,
		AudioPath:           result.AudioPath,
		EstimatedDurationMs: durationMs,
		SpeechLocale:        locale,
	}, nil
}

// Fallback deterministically builds a client-speech instruction from
// the static templates.
func (c *Client) Fallback(instructionID, language string) *types.SpeechInstruction {
	text, ok := templateText(instructionID, language)
	if !ok {
		text = c.stepTemplate(instructionID)
	}

	return &types.SpeechInstruction{
		Mode:                types.ModeClientSpeech,
		InstructionID:       instructionID,
		Language:            language,
		Text:                text,
		EstimatedDurationMs: estimateDurationMs(text),
		SpeechLocale:        Locale(language),
	}
}

// stepTemplate builds a generic "Step N. Title." text for step
// instruction ids with no dedicated template.
func (c *Client) stepTemplate(instructionID string) string {
	if c.catalog != nil {
		for _, s := range c.catalog.Steps() {
			if s.InstructionID == instructionID {
				return fmt.Sprintf("Step %d. %s.", s.StepNumber, s.Title)
			}
		}
	}
	return "Please follow the instruction shown on screen."
}

// HealthCheck reports whether the speech service answers its health
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
