package guide

import (
	"context"
	"errors"

	"github.com/livingcool/kisanmind-sub000/internal/session"
	"github.com/livingcool/kisanmind-sub000/pkg/types"
)

// Stable error codes surfaced to callers.
const (
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeStepNotFound     = "STEP_NOT_FOUND"
	CodeSessionCompleted = "SESSION_COMPLETED"
	CodeMissingField     = "MISSING_FIELD"
	CodeUnknownType      = "UNKNOWN_TYPE"
	CodeInternal         = "INTERNAL"
)

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionData is the payload of a session envelope.
type SessionData struct {
	Session session.Snapshot `json:"session"`
	Steps   any              `json:"steps"`
}

// PongData is the payload of a pong envelope.
type PongData struct {
	Timestamp int64 `json:"timestamp"`
}

// HandleMessage routes one inbound transport message to the matching
// orchestrator operation and wraps the result as typed envelopes. Ping
// is answered immediately without touching session state.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg types.Message) []types.Envelope {
	switch msg.Type {
	case types.MsgPing:
		return []types.Envelope{{Type: types.EnvPong, Data: PongData{Timestamp: o.store.Now().UnixMilli()}}}

	case types.MsgStart:
		result, err := o.StartSession(ctx, msg.FarmerID, msg.Language, msg.SessionID)
		if err != nil {
			return errorEnvelope(err)
		}
		return []types.Envelope{
			{Type: types.EnvSession, Data: SessionData{Session: result.Session, Steps: result.Steps}},
			{Type: types.EnvInstruction, Data: result.Welcome},
			{Type: types.EnvInstruction, Data: result.Instruction},
		}

	case types.MsgFrame:
		if msg.FrameData == "" {
			return missingField("frameData")
		}
		result, err := o.ProcessFrame(ctx, msg.SessionID, msg.FrameData, msg.StepID)
		if err != nil {
			return errorEnvelope(err)
		}
		return []types.Envelope{{Type: types.EnvFeedback, Data: result}}

	case types.MsgCapture:
		if msg.StepID == "" {
			return missingField("stepId")
		}
		result, err := o.HandleCapture(ctx, msg.SessionID, msg.StepID, msg.ImageData)
		if err != nil {
			return errorEnvelope(err)
		}
		return []types.Envelope{{Type: types.EnvCaptureAck, Data: result}}

	case types.MsgNext:
		transition, err := o.AdvanceToNextStep(ctx, msg.SessionID)
		if err != nil {
			return errorEnvelope(err)
		}
		return transitionEnvelope(transition)

	case types.MsgSkip:
		if msg.StepID == "" {
			return missingField("stepId")
		}
		transition, err := o.HandleSkip(ctx, msg.SessionID, msg.StepID)
		if err != nil {
			return errorEnvelope(err)
		}
		return transitionEnvelope(transition)

	case types.MsgComplete:
		result, err := o.CompleteSession(ctx, msg.SessionID)
		if err != nil {
			return errorEnvelope(err)
		}
		return []types.Envelope{{Type: types.EnvSessionComplete, Data: result}}

	default:
		return []types.Envelope{{Type: types.EnvError, Data: ErrorData{
			Code:    CodeUnknownType,
			Message: "unknown message type: " + msg.Type,
		}}}
	}
}

func transitionEnvelope(t *Transition) []types.Envelope {
	if t.Complete != nil {
		return []types.Envelope{{Type: types.EnvSessionComplete, Data: t.Complete}}
	}
	return []types.Envelope{{Type: types.EnvStepChange, Data: t.StepChange}}
}

func missingField(field string) []types.Envelope {
	return []types.Envelope{{Type: types.EnvError, Data: ErrorData{
		Code:    CodeMissingField,
		Message: field + " is required",
	}}}
}

// ErrorCode maps an orchestrator error to its stable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrStepNotFound):
		return CodeStepNotFound
	case errors.Is(err, ErrSessionCompleted):
		return CodeSessionCompleted
	case errors.Is(err, ErrMissingFarmerID):
		return CodeMissingField
	default:
		return CodeInternal
	}
}

func errorEnvelope(err error) []types.Envelope {
	return []types.Envelope{{Type: types.EnvError, Data: ErrorData{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}}}
}
