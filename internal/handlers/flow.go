package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pagemate/pagemate/internal/models"
)

// flowState tracks one in-flight request through the coordinator.
type flowState int

const (
	stateIdle flowState = iota
	stateCredentialCheck
	stateSending
	stateStreaming
	stateFinalizing
	stateCompleted
	stateFailed
)

func (s flowState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCredentialCheck:
		return "credential_check"
	case stateSending:
		return "sending"
	case stateStreaming:
		return "streaming"
	case stateFinalizing:
		return "finalizing"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// streamFlow describes one in-flight request. The summarize, draft, and continuation
// flows all run the same state machine; only the request-construction step and the
// push callbacks differ.
//
// credentialErr returns a user-facing "not configured" message, or "" when the provider
// credential is usable. build constructs the provider message list, persisting whatever
// the flow needs persisted first; a non-empty second return is a user-facing failure
// message that aborts the flow before any network call. onComplete finalizes the
// accumulated assistant text and pushes the terminal notification; a non-empty return
// reports a finalization failure. onFailure pushes the error notification and whatever
// the UI needs to re-enable its input controls.
type streamFlow struct {
	op             string
	conversationID string
	llm            LLM
	failureMessage string

	credentialErr func() string
	build         func(ctx context.Context) ([]models.Message, string)
	onDelta       func(accumulated string)
	onComplete    func(ctx context.Context, accumulated string) string
	onFailure     func(message string)
}

// runFlow walks a request through
// CredentialCheck -> Sending -> Streaming -> Finalizing -> Completed | Failed.
// Every failure path resolves to a deterministic user-facing message through onFailure;
// nothing propagates to the UI layer as a raised fault, and the UI is never left in a
// loading state.
func (m Main) runFlow(ctx context.Context, f streamFlow) {
	logger := m.logger.With(
		slog.String("op", f.op),
		slog.String("conversationID", f.conversationID),
	)

	state := stateIdle
	advance := func(next flowState) {
		logger.Debug("Flow state",
			slog.String("from", state.String()),
			slog.String("to", next.String()))
		state = next
	}

	advance(stateCredentialCheck)
	if msg := f.credentialErr(); msg != "" {
		advance(stateFailed)
		logger.Error("Provider not configured", slog.String("message", msg))
		f.onFailure(msg)
		return
	}

	advance(stateSending)
	messages, failMsg := f.build(ctx)
	if failMsg != "" {
		advance(stateFailed)
		f.onFailure(failMsg)
		return
	}

	advance(stateStreaming)
	var acc strings.Builder
	for fragment, err := range f.llm.Chat(ctx, messages) {
		if err != nil {
			advance(stateFailed)
			logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			f.onFailure(f.failureMessage)
			return
		}
		acc.WriteString(fragment)
		f.onDelta(acc.String())
	}

	advance(stateFinalizing)
	if failMsg := f.onComplete(ctx, acc.String()); failMsg != "" {
		advance(stateFailed)
		f.onFailure(failMsg)
		return
	}

	advance(stateCompleted)
}
