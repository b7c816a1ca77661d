package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagemate/pagemate/internal/models"
)

const summarySystemPrompt = "You are a helpful assistant. When asked to summarize, " +
	"provide a clear and concise summary. Answer any follow-up questions based on the " +
	"context provided."

// Fixed user-facing failure strings, one per operation.
const (
	summaryFailedMessage          = "Summary generation failed."
	responseFailedMessage         = "Response generation failed."
	draftFailedMessage            = "Draft generation failed."
	conversationNotFoundMessage   = "Conversation not found."
	openAINotConfiguredMessage    = "OpenAI API key not configured. Add OPENAI_API_KEY to keys.env in the coordinator config directory."
	anthropicNotConfiguredMessage = "Anthropic API key not configured. Add ANTHROPIC_API_KEY to keys.env in the coordinator config directory."
)

func summarizePrompt(text string) string {
	return "Summarize:\n\n" + text
}

// summarize starts a new conversation from the selected page text and streams its
// summary to the originating surface.
func (m Main) summarize(ctx context.Context, surfaceID, conversationID, text string) {
	m.runFlow(ctx, m.summarizeFlow(surfaceID, conversationID, text, ""))
}

// summarizeVideo resolves the video transcript through the native helper, then runs the
// ordinary summarize flow over it. The transcript rides along on every push so the UI
// can offer a copy-the-full-transcript action.
func (m Main) summarizeVideo(ctx context.Context, surfaceID, conversationID, videoID string) {
	transcript, err := m.transcripts.Transcript(ctx, videoID)
	if err != nil {
		m.logger.Error("Failed to resolve video transcript",
			slog.String("videoID", videoID),
			slog.String(errLoggerKey, err.Error()))
		m.push(surfaceID, actionDisplaySummary, summaryPush{Summary: videoFailureMessage(err)})
		m.push(surfaceID, actionSummaryComplete, completePush{})
		return
	}

	m.runFlow(ctx, m.summarizeFlow(surfaceID, conversationID, transcript, transcript))
}

func videoFailureMessage(err error) string {
	return fmt.Sprintf("Failed to get video transcript. Error: %v\n\nMake sure:\n"+
		"1. The transcript helper command is set in config.yaml\n"+
		"2. The helper program is installed and executable\n"+
		"3. The helper speaks the native messaging framing", err)
}

func (m Main) summarizeFlow(surfaceID, conversationID, text, transcript string) streamFlow {
	return streamFlow{
		op:             "summarize",
		conversationID: conversationID,
		llm:            m.summarizer,
		failureMessage: summaryFailedMessage,
		credentialErr: func() string {
			if !m.creds.OpenAIConfigured() {
				return openAINotConfiguredMessage
			}
			return ""
		},
		build: func(ctx context.Context) ([]models.Message, string) {
			messages := []models.Message{
				{Role: models.RoleSystem, Content: summarySystemPrompt},
				{Role: models.RoleUser, Content: summarizePrompt(text)},
			}

			conv := models.Conversation{
				ID:         conversationID,
				SourceText: text,
				Messages:   messages,
				CreatedAt:  time.Now(),
			}
			if err := m.store.CreateConversation(ctx, conv); err != nil {
				m.logger.Error("Failed to create conversation",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return nil, summaryFailedMessage
			}

			return messages, ""
		},
		onDelta: func(accumulated string) {
			m.push(surfaceID, actionUpdateSummary, summaryPush{
				Summary:        accumulated,
				Transcript:     transcript,
				ConversationID: conversationID,
			})
		},
		onComplete: func(ctx context.Context, accumulated string) string {
			assistant := models.Message{Role: models.RoleAssistant, Content: accumulated}
			if err := m.store.AppendMessage(ctx, conversationID, assistant); err != nil {
				m.logger.Error("Failed to append assistant message",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return summaryFailedMessage
			}

			m.push(surfaceID, actionDisplaySummary, summaryPush{
				Summary:        accumulated,
				Transcript:     transcript,
				ConversationID: conversationID,
				HTML:           models.RenderMarkdown(accumulated),
			})
			m.push(surfaceID, actionSummaryComplete, completePush{ConversationID: conversationID})
			return ""
		},
		onFailure: func(message string) {
			m.push(surfaceID, actionDisplaySummary, summaryPush{
				Summary:        message,
				Transcript:     transcript,
				ConversationID: conversationID,
			})
			m.push(surfaceID, actionSummaryComplete, completePush{ConversationID: conversationID})
		},
	}
}

// continueConversation appends the user's follow-up to the stored conversation, then
// streams the assistant reply over the full history. The user message is appended
// before the request is issued, so the request body grows by exactly one message.
func (m Main) continueConversation(ctx context.Context, surfaceID, conversationID, message string) {
	m.runFlow(ctx, streamFlow{
		op:             "continueConversation",
		conversationID: conversationID,
		llm:            m.summarizer,
		failureMessage: responseFailedMessage,
		credentialErr: func() string {
			if !m.creds.OpenAIConfigured() {
				return openAINotConfiguredMessage
			}
			return ""
		},
		build: func(ctx context.Context) ([]models.Message, string) {
			userMsg := models.Message{Role: models.RoleUser, Content: message}
			if err := m.store.AppendMessage(ctx, conversationID, userMsg); err != nil {
				if errors.Is(err, models.ErrConversationNotFound) {
					return nil, conversationNotFoundMessage
				}
				m.logger.Error("Failed to append user message",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return nil, responseFailedMessage
			}

			conv, err := m.store.Conversation(ctx, conversationID)
			if err != nil {
				m.logger.Error("Failed to get conversation",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return nil, responseFailedMessage
			}

			return conv.Messages, ""
		},
		onDelta: func(accumulated string) {
			m.push(surfaceID, actionUpdateConversation, conversationPush{
				Response:       accumulated,
				ConversationID: conversationID,
			})
		},
		onComplete: func(ctx context.Context, accumulated string) string {
			assistant := models.Message{Role: models.RoleAssistant, Content: accumulated}
			if err := m.store.AppendMessage(ctx, conversationID, assistant); err != nil {
				m.logger.Error("Failed to append assistant message",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return responseFailedMessage
			}

			m.push(surfaceID, actionConversationComplete, conversationPush{
				Response:       accumulated,
				ConversationID: conversationID,
				HTML:           models.RenderMarkdown(accumulated),
			})
			return ""
		},
		onFailure: func(message string) {
			m.push(surfaceID, actionConversationError, errorPush{
				Error:          message,
				ConversationID: conversationID,
			})
		},
	})
}
