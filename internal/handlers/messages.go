package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/pagemate/pagemate/internal/models"
)

const errLoggerKey = "err"

// Inbound actions accepted on the /messages endpoint.
const (
	actionSummarize                 = "summarize"
	actionDraft                     = "draft"
	actionSummarizeVideo            = "summarizeVideo"
	actionContinueConversation      = "continueConversation"
	actionContinueDraftConversation = "continueDraftConversation"
	actionCloseConversation         = "closeConversation"
)

// Outbound push actions; each becomes the SSE event type of one push.
const (
	actionDisplaySummary            = "displaySummary"
	actionUpdateSummary             = "updateSummary"
	actionSummaryComplete           = "summaryComplete"
	actionDisplayDraft              = "displayDraft"
	actionUpdateDraft               = "updateDraft"
	actionUpdateConversation        = "updateConversation"
	actionConversationComplete      = "conversationComplete"
	actionDraftConversationUpdate   = "draftConversationUpdate"
	actionDraftConversationComplete = "draftConversationComplete"
	actionConversationError         = "conversationError"
)

// inboundMessage is the request schema of the UI-to-coordinator channel. Action selects
// the operation; the remaining fields are per-action.
type inboundMessage struct {
	Action         string           `json:"action"`
	SurfaceID      string           `json:"surfaceId"`
	Text           string           `json:"text"`
	Instructions   string           `json:"instructions"`
	VideoID        string           `json:"videoId"`
	ConversationID string           `json:"conversationId"`
	Message        string           `json:"message"`
	History        []models.Message `json:"history"`
	OriginalThread string           `json:"originalThread"`
}

type summaryPush struct {
	Summary        string `json:"summary"`
	Transcript     string `json:"transcript,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	HTML           string `json:"html,omitempty"`
}

type draftPush struct {
	Draft          string `json:"draft"`
	ConversationID string `json:"conversationId,omitempty"`
	HTML           string `json:"html,omitempty"`
}

type conversationPush struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId,omitempty"`
	HTML           string `json:"html,omitempty"`
}

type errorPush struct {
	Error          string `json:"error"`
	ConversationID string `json:"conversationId,omitempty"`
}

type completePush struct {
	ConversationID string `json:"conversationId,omitempty"`
}

// HandleMessages accepts inbound UI requests as JSON POST bodies and dispatches them to
// the matching streaming flow. Flows run asynchronously; the response is an immediate
// acknowledgment carrying the conversation ID, and the stream itself arrives on the
// /events channel of the originating surface.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req inboundMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error("Failed to decode inbound message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case actionSummarize:
		if req.Text == "" {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
		conversationID := uuid.New().String()
		go m.summarize(context.Background(), req.SurfaceID, conversationID, req.Text)
		m.ack(w, conversationID)

	case actionDraft:
		if req.Text == "" {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
		conversationID := uuid.New().String()
		go m.draft(context.Background(), req.SurfaceID, conversationID, req.Text, req.Instructions)
		m.ack(w, conversationID)

	case actionSummarizeVideo:
		if req.VideoID == "" {
			http.Error(w, "videoId is required", http.StatusBadRequest)
			return
		}
		conversationID := uuid.New().String()
		go m.summarizeVideo(context.Background(), req.SurfaceID, conversationID, req.VideoID)
		m.ack(w, conversationID)

	case actionContinueConversation:
		if req.ConversationID == "" || req.Message == "" {
			http.Error(w, "conversationId and message are required", http.StatusBadRequest)
			return
		}
		go m.continueConversation(context.Background(), req.SurfaceID, req.ConversationID, req.Message)
		m.ack(w, req.ConversationID)

	case actionContinueDraftConversation:
		if req.ConversationID == "" || req.Message == "" {
			http.Error(w, "conversationId and message are required", http.StatusBadRequest)
			return
		}
		go m.continueDraftConversation(context.Background(),
			req.SurfaceID, req.ConversationID, req.Message, req.History, req.OriginalThread)
		m.ack(w, req.ConversationID)

	case actionCloseConversation:
		if req.ConversationID == "" {
			http.Error(w, "conversationId is required", http.StatusBadRequest)
			return
		}
		if err := m.store.DeleteConversation(r.Context(), req.ConversationID); err != nil {
			m.logger.Error("Failed to delete conversation",
				slog.String("conversationID", req.ConversationID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		m.logger.Error("Unknown action", slog.String("action", req.Action))
		http.Error(w, "Unknown action", http.StatusBadRequest)
	}
}

func (m Main) ack(w http.ResponseWriter, conversationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"conversationId": conversationID}); err != nil {
		m.logger.Error("Failed to write ack", slog.String(errLoggerKey, err.Error()))
	}
}

// push delivers one outbound message to the given UI surface. Requests that originated
// without an addressable surface still run to completion, but nothing is pushed.
// Delivery is at-most-once and unacknowledged.
func (m Main) push(surfaceID, action string, payload any) {
	if surfaceID == "" {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("Failed to marshal push payload",
			slog.String("action", action),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	e := &sse.Message{Type: sse.Type(action)}
	e.AppendData(string(data))

	if err := m.pub.Publish(e, surfaceTopic(surfaceID)); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("action", action),
			slog.String(errLoggerKey, err.Error()))
	}
}
