package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingcool/kisanmind-sub000/internal/catalog"
	"github.com/livingcool/kisanmind-sub000/pkg/types"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "test-key", catalog.Default(), 500*time.Millisecond, 200*time.Millisecond)
}

func TestSynthesizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/instructions/synthesize", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "session_start", req["instruction_id"])
		assert.Equal(t, "hi", req["language"])

		json.NewEncoder(w).Encode(map[string]any{
			"text":        "स्वागत है",
			"audio_path":  "/static/audio/session_start_hi.mp3",
			"duration_ms": 2400,
			"locale":      "hi-IN",
		})
	}))
	defer srv.Close()

	instr := newTestClient(srv.URL).Synthesize(context.Background(), "session_start", "hi")

	assert.Equal(t, types.ModeFile, instr.Mode)
	assert.Equal(t, "स्वागत है", instr.Text)
	assert.Equal(t, "/static/audio/session_start_hi.mp3", instr.AudioPath)
	assert.Equal(t, 2400, instr.EstimatedDurationMs)
	assert.Equal(t, "hi-IN", instr.SpeechLocale)
	assert.Equal(t, "hi", instr.Language)
}

func TestSynthesizeNoAudioPathIsExternalAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"text": "Hold the phone steady."})
	}))
	defer srv.Close()

	instr := newTestClient(srv.URL).Synthesize(context.Background(), "hold_steady", "en")

	assert.Equal(t, types.ModeExternalAPI, instr.Mode)
	assert.Equal(t, "en-IN", instr.SpeechLocale)
	assert.GreaterOrEqual(t, instr.EstimatedDurationMs, 1000)
}

func TestSynthesizeFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	instr := newTestClient(srv.URL).Synthesize(context.Background(), "session_start", "en")

	assert.Equal(t, types.ModeClientSpeech, instr.Mode)
	assert.NotEmpty(t, instr.Text)
}

func TestSynthesizeFallsBackOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	instr := newTestClient(srv.URL).Synthesize(context.Background(), "session_start", "en")

	assert.Equal(t, types.ModeClientSpeech, instr.Mode)
	assert.NotEmpty(t, instr.Text)
}

func TestSynthesizeFallsBackOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	instr := newTestClient(srv.URL).Synthesize(context.Background(), "session_start", "en")
	assert.Equal(t, types.ModeClientSpeech, instr.Mode)
}

func TestSynthesizeFallsBackWhenUnreachable(t *testing.T) {
	instr := newTestClient("http://127.0.0.1:1").Synthesize(context.Background(), "capture_ack", "hi")

	assert.Equal(t, types.ModeClientSpeech, instr.Mode)
	assert.Equal(t, "capture_ack", instr.InstructionID)
	assert.Equal(t, "hi", instr.Language)
	assert.Equal(t, "hi-IN", instr.SpeechLocale)
	assert.NotEmpty(t, instr.Text)
}

func TestFallbackIsDeterministic(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	a := c.Fallback("session_start", "en")
	b := c.Fallback("session_start", "en")
	assert.Equal(t, a, b)
}

func TestFallbackStepTemplate(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	// crop_2 has no dedicated mr template, and mr has no fallback for
	// step texts, so English is used; the id still resolves.
	instr := c.Fallback("step_crop_2", "mr")
	assert.Contains(t, instr.Text, "Crop Row")

	// Unknown step ids get the generic on-screen prompt.
	instr = c.Fallback("step_unknown_99", "en")
	assert.Equal(t, "Please follow the instruction shown on screen.", instr.Text)
}

func TestFallbackGenericStepTextFromCatalog(t *testing.T) {
	steps := []catalog.Step{
		{ID: "rare", Title: "Rare Angle", InstructionID: "step_rare", Type: catalog.StepField, StepNumber: 1},
	}
	cat, err := catalog.New(steps)
	require.NoError(t, err)

	c := NewClient("http://127.0.0.1:1", "", cat, time.Second, time.Second)
	instr := c.Fallback("step_rare", "en")

	assert.Equal(t, "Step 1. Rare Angle.", instr.Text)
}

func TestFallbackLanguageTemplates(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	hi := c.Fallback("session_start", "hi")
	en := c.Fallback("session_start", "en")
	assert.NotEqual(t, en.Text, hi.Text)

	// Languages without a dedicated template fall back to English text
	// but keep their own locale.
	ta := c.Fallback("hold_steady", "ta")
	assert.Equal(t, en.Language, "en")
	assert.Equal(t, "ta-IN", ta.SpeechLocale)
	assert.Equal(t, fallbackTemplates["en"]["hold_steady"], ta.Text)
}

func TestEstimateDurationMs(t *testing.T) {
	assert.Equal(t, 1000, estimateDurationMs("hi"))
	assert.Equal(t, 1000, estimateDurationMs(""))

	text := strings.Repeat("word ", 10)
	assert.Equal(t, 4000, estimateDurationMs(text))
}

func TestLocale(t *testing.T) {
	assert.Equal(t, "hi-IN", Locale("hi"))
	assert.Equal(t, "te-IN", Locale("te"))
	assert.Equal(t, "en-IN", Locale("xx"))
}

func TestHealthCheck(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	assert.True(t, newTestClient(up.URL).HealthCheck(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.False(t, newTestClient(down.URL).HealthCheck(context.Background()))
	assert.False(t, newTestClient("http://127.0.0.1:1").HealthCheck(context.Background()))
}
