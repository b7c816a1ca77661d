package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/pagemate/pagemate/internal/models"
)

// Anthropic provides the message-style streaming provider used for drafting replies.
// Deltas arrive as content_block_delta events carrying delta.text, and the stream is
// terminated by a message_stop event.
type Anthropic struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

const anthropicAPIEndpoint = "https://api.anthropic.com/v1"

// NewAnthropic creates a new Anthropic instance with the specified API key, base URL,
// model name, and maximum token limit. An empty baseURL selects the public API endpoint.
func NewAnthropic(apiKey, baseURL, model string, maxTokens int, logger *slog.Logger) Anthropic {
	if baseURL == "" {
		baseURL = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{},
		logger:    logger.With(slog.String("module", "anthropic")),
	}
}

func extractSystemMessage(messages []models.Message) (string, []models.Message) {
	if len(messages) == 0 {
		return "", messages
	}

	if messages[0].Role == models.RoleSystem {
		return messages[0].Content, messages[1:]
	}

	return "", messages
}

type anthropicMessageDecoder struct{}

func (anthropicMessageDecoder) decodeEvent(data string) (string, bool, bool) {
	var res anthropicStreamResponse
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return "", false, false
	}
	switch res.Type {
	case "message_stop":
		return "", true, true
	case "content_block_delta":
		return res.Delta.Text, false, true
	default:
		return "", false, false
	}
}

// Chat streams a response for the given message sequence. A leading system message is
// carried on the request's system field rather than in the message list. It returns an
// iterator that yields text fragments and potential errors; the context can be used to
// cancel an ongoing request.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		systemMessage, ms := extractSystemMessage(messages)

		msgs := make([]anthropicMessage, len(ms))
		for i, msg := range ms {
			msgs[i] = anthropicMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			}
		}

		reqBody := anthropicChatRequest{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			Messages:  msgs,
			System:    systemMessage,
			Stream:    true,
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		a.logger.Debug("Request body", slog.String("body", string(jsonBody)))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			a.baseURL+"/messages", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		for fragment, err := range streamEvents(a.client, req, anthropicMessageDecoder{}) {
			if !yield(fragment, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
