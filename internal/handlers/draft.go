package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagemate/pagemate/internal/models"
)

func draftPrompt(text, instructions, notes string) string {
	prompt := fmt.Sprintf("Draft a concise response to the following thread:\n\n\"%s\"\n\n"+
		"Additional instructions:\n%s", text, instructions)
	if notes != "" {
		prompt += "\n\nNotes:\n" + notes
	}
	return prompt
}

// draft generates a one-shot reply draft for the given thread and streams it to the
// originating surface. The exchange is persisted as a conversation so follow-ups can
// run against stored history.
func (m Main) draft(ctx context.Context, surfaceID, conversationID, text, instructions string) {
	m.runFlow(ctx, streamFlow{
		op:             "draft",
		conversationID: conversationID,
		llm:            m.drafter,
		failureMessage: draftFailedMessage,
		credentialErr: func() string {
			if !m.creds.AnthropicConfigured() {
				return anthropicNotConfiguredMessage
			}
			return ""
		},
		build: func(ctx context.Context) ([]models.Message, string) {
			// An empty draft push first, so the surface opens its panel before
			// fragments start arriving.
			m.push(surfaceID, actionDisplayDraft, draftPush{Draft: "", ConversationID: conversationID})

			messages := []models.Message{
				{Role: models.RoleUser, Content: draftPrompt(text, instructions, m.draftNotes)},
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
				return nil, draftFailedMessage
			}

			return messages, ""
		},
		onDelta: func(accumulated string) {
			m.push(surfaceID, actionUpdateDraft, draftPush{
				Draft:          accumulated,
				ConversationID: conversationID,
			})
		},
		onComplete: func(ctx context.Context, accumulated string) string {
			assistant := models.Message{Role: models.RoleAssistant, Content: accumulated}
			if err := m.store.AppendMessage(ctx, conversationID, assistant); err != nil {
				m.logger.Error("Failed to append assistant message",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return draftFailedMessage
			}

			m.push(surfaceID, actionDisplayDraft, draftPush{
				Draft:          accumulated,
				ConversationID: conversationID,
				HTML:           models.RenderMarkdown(accumulated),
			})
			return ""
		},
		onFailure: func(message string) {
			m.push(surfaceID, actionDisplayDraft, draftPush{
				Draft:          message,
				ConversationID: conversationID,
			})
		},
	})
}

// continueDraftConversation streams a follow-up on a draft thread. The stored
// conversation is preferred; surfaces whose draft predates persistence resubmit their
// mirrored history instead, with the first follow-up collapsing the original thread,
// the current draft, and the user's ask into one message.
func (m Main) continueDraftConversation(
	ctx context.Context,
	surfaceID, conversationID, message string,
	history []models.Message,
	originalThread string,
) {
	persisted := false

	m.runFlow(ctx, streamFlow{
		op:             "continueDraftConversation",
		conversationID: conversationID,
		llm:            m.drafter,
		failureMessage: responseFailedMessage,
		credentialErr: func() string {
			if !m.creds.AnthropicConfigured() {
				return anthropicNotConfiguredMessage
			}
			return ""
		},
		build: func(ctx context.Context) ([]models.Message, string) {
			userMsg := models.Message{Role: models.RoleUser, Content: message}

			conv, err := m.store.Conversation(ctx, conversationID)
			switch {
			case err == nil:
				persisted = true
				if err := m.store.AppendMessage(ctx, conversationID, userMsg); err != nil {
					m.logger.Error("Failed to append user message",
						slog.String("conversationID", conversationID),
						slog.String(errLoggerKey, err.Error()))
					return nil, responseFailedMessage
				}
				return append(conv.Messages, userMsg), ""

			case errors.Is(err, models.ErrConversationNotFound):
				return draftFollowUpMessages(history, originalThread, message), ""

			default:
				m.logger.Error("Failed to get conversation",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
				return nil, responseFailedMessage
			}
		},
		onDelta: func(accumulated string) {
			m.push(surfaceID, actionDraftConversationUpdate, conversationPush{
				Response:       accumulated,
				ConversationID: conversationID,
			})
		},
		onComplete: func(ctx context.Context, accumulated string) string {
			if persisted {
				assistant := models.Message{Role: models.RoleAssistant, Content: accumulated}
				if err := m.store.AppendMessage(ctx, conversationID, assistant); err != nil {
					m.logger.Error("Failed to append assistant message",
						slog.String("conversationID", conversationID),
						slog.String(errLoggerKey, err.Error()))
					return responseFailedMessage
				}
			}

			m.push(surfaceID, actionDraftConversationComplete, conversationPush{
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

func draftFollowUpMessages(history []models.Message, originalThread, userMessage string) []models.Message {
	if originalThread != "" && len(history) == 1 && history[0].Role == models.RoleAssistant {
		return []models.Message{{
			Role: models.RoleUser,
			Content: fmt.Sprintf("I'm drafting a response to this thread:\n\n\"%s\"\n\n"+
				"Here's my current draft:\n\n%s\n\n%s",
				originalThread, history[0].Content, userMessage),
		}}
	}

	messages := append([]models.Message(nil), history...)
	return append(messages, models.Message{Role: models.RoleUser, Content: userMessage})
}
