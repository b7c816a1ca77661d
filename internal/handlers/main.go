package handlers

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/pagemate/pagemate/internal/models"
	"github.com/pagemate/pagemate/internal/services"
)

// LLM represents a streaming language model provider. It accepts a context and a
// sequence of messages, returning an iterator that yields response fragments and
// potential errors.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Store defines the interface for conversation persistence. AppendMessage and
// Conversation report models.ErrConversationNotFound for unknown IDs; ExpireOlderThan
// removes conversations created strictly before the threshold and returns the count.
type Store interface {
	CreateConversation(ctx context.Context, conv models.Conversation) error
	Conversation(ctx context.Context, id string) (models.Conversation, error)
	AppendMessage(ctx context.Context, id string, msg models.Message) error
	DeleteConversation(ctx context.Context, id string) error
	ExpireOlderThan(ctx context.Context, threshold time.Time) (int, error)
}

// TranscriptFetcher resolves a video ID to its transcript via the native helper.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// publisher is the outbound message channel to UI surfaces. Satisfied by *sse.Server.
type publisher interface {
	Publish(msg *sse.Message, topics ...string) error
}

// Main is the conversation coordinator. It owns the provider credentials, dispatches
// inbound UI requests to streaming flows, mutates the conversation store, and pushes
// partial and terminal updates to the originating UI surface over server-sent events.
//
// The store is mutated only by the coordinator; UI surfaces mirror it locally for
// rendering. The coordinator assumes at most one in-flight request per conversation ID
// (the UI disables its input while awaiting a response); requests for different IDs
// proceed fully independently.
type Main struct {
	sseSrv *sse.Server
	pub    publisher

	summarizer  LLM
	drafter     LLM
	store       Store
	transcripts TranscriptFetcher

	creds      services.Credentials
	draftNotes string

	logger *slog.Logger
}

// NewMain creates a new Main instance wiring the two providers, the conversation store,
// and the transcript adapter. The SSE server subscribes each session to a per-surface
// topic taken from the surface_id query parameter, so pushes reach only the UI surface
// that originated the request.
func NewMain(
	summarizer, drafter LLM,
	store Store,
	transcripts TranscriptFetcher,
	creds services.Credentials,
	draftNotes string,
	logger *slog.Logger,
) Main {
	sseSrv := &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			topics := []string{sse.DefaultTopic}

			surfaceID := s.Req.URL.Query().Get("surface_id")
			if surfaceID != "" {
				topics = append(topics, surfaceTopic(surfaceID))
			}

			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      topics,
			}, true
		},
	}

	return Main{
		sseSrv:      sseSrv,
		pub:         sseSrv,
		summarizer:  summarizer,
		drafter:     drafter,
		store:       store,
		transcripts: transcripts,
		creds:       creds,
		draftNotes:  draftNotes,
		logger:      logger.With(slog.String("module", "coordinator")),
	}
}

func surfaceTopic(surfaceID string) string {
	return fmt.Sprintf("surface-%s", surfaceID)
}

// HandleEvents serves the outbound push channel as a server-sent event stream.
func (m Main) HandleEvents(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all
// connected UI surfaces and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeEvents")}
	// The close event complies with the SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.pub.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
