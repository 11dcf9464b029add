package types

// Speech instruction delivery modes.
const (
	ModeFile         = "file"
	ModeClientSpeech = "client_speech"
	ModeExternalAPI  = "external_api"
)

// SpeechInstruction is a spoken guidance payload returned to the client.
// Mode tells the client how to play it: a pre-rendered audio file, text
// for on-device speech synthesis, or audio produced by the external TTS
// service.
type SpeechInstruction struct {
	Mode                string `json:"mode"`
	InstructionID       string `json:"instructionId"`
	Language            string `json:"language"`
	Text                string `json:"text"`
	AudioPath           string `json:"audioPath,omitempty"`
	EstimatedDurationMs int    `json:"estimatedDurationMs"`
	SpeechLocale        string `json:"speechLocale,omitempty"`
}

// QualityMetrics holds the raw per-frame measurements produced by the
// frame-quality service.
type QualityMetrics struct {
	Brightness  float64 `json:"brightness"`
	Sharpness   float64 `json:"sharpness"`
	EdgeDensity float64 `json:"edgeDensity"`
	Contrast    float64 `json:"contrast"`
}

// QualityVerdict is the quality service's judgment of a single frame.
type QualityVerdict struct {
	Score            int            `json:"score"`
	IsAcceptable     bool           `json:"isAcceptable"`
	PrimaryIssue     string         `json:"primaryIssue"`
	FeedbackID       string         `json:"feedbackId"`
	Metrics          QualityMetrics `json:"metrics"`
	ProcessingTimeMs int            `json:"processingTimeMs"`
}

// Overlay colors for the capture viewfinder.
const (
	OverlayGreen  = "green"
	OverlayYellow = "yellow"
	OverlayRed    = "red"
)

// FeedbackDecision is the verdict translated into client-facing guidance:
// whether to speak an instruction, what to show on screen, and whether
// the capture button should be enabled.
type FeedbackDecision struct {
	ShouldSpeak    bool   `json:"shouldSpeak"`
	InstructionID  string `json:"instructionId,omitempty"`
	OverlayColor   string `json:"overlayColor"`
	StatusText     string `json:"statusText"`
	CaptureEnabled bool   `json:"captureEnabled"`
}

// FrameAnalysis pairs the raw verdict with the derived feedback decision.
type FrameAnalysis struct {
	Analysis QualityVerdict   `json:"analysis"`
	Feedback FeedbackDecision `json:"feedback"`
}

// Progress reports position within the capture sequence.
type Progress struct {
	Current  int `json:"current"`
	Total    int `json:"total"`
	Captured int `json:"captured"`
}

// Message types accepted by the dispatch entry point.
const (
	MsgStart    = "start"
	MsgFrame    = "frame"
	MsgCapture  = "capture"
	MsgNext     = "next"
	MsgSkip     = "skip"
	MsgComplete = "complete"
	MsgPing     = "ping"
)

// Response envelope types emitted by the dispatch entry point.
const (
	EnvSession         = "session"
	EnvInstruction     = "instruction"
	EnvFeedback        = "feedback"
	EnvCaptureAck      = "capture_ack"
	EnvStepChange      = "step_change"
	EnvSessionComplete = "session_complete"
	EnvPong            = "pong"
	EnvError           = "error"
)

// Message is an inbound transport message routed to an orchestrator
// operation.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	FarmerID  string `json:"farmerId,omitempty"`
	Language  string `json:"language,omitempty"`
	StepID    string `json:"stepId,omitempty"`
	FrameData string `json:"frameData,omitempty"`
	ImageData string `json:"imageData,omitempty"`
}

// Envelope is an outbound typed response wrapper.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
