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

// OpenAI provides the completion-style streaming provider used for summaries and
// conversation continuations. Request and stream shapes follow the chat completions
// wire contract: deltas arrive as choices[0].delta.content and the stream is terminated
// by a literal [DONE] sentinel.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string

	reasoningEffort     string
	maxCompletionTokens int

	client *http.Client

	logger *slog.Logger
}

type openAIChatRequest struct {
	Model               string          `json:"model"`
	Messages            []openAIMessage `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
	Stream              bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

const (
	openAIAPIEndpoint = "https://api.openai.com/v1"

	openAIDoneSentinel = "[DONE]"
)

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL, model
// name, and sampling knobs. An empty baseURL selects the public API endpoint.
func NewOpenAI(apiKey, baseURL, model, reasoningEffort string, maxCompletionTokens int, logger *slog.Logger) OpenAI {
	if baseURL == "" {
		baseURL = openAIAPIEndpoint
	}
	return OpenAI{
		apiKey:              apiKey,
		baseURL:             baseURL,
		model:               model,
		reasoningEffort:     reasoningEffort,
		maxCompletionTokens: maxCompletionTokens,
		client:              &http.Client{},
		logger:              logger.With(slog.String("module", "openai")),
	}
}

type openAICompletionDecoder struct{}

func (openAICompletionDecoder) decodeEvent(data string) (string, bool, bool) {
	if data == openAIDoneSentinel {
		return "", true, true
	}
	var res openAIStreamResponse
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return "", false, false
	}
	if len(res.Choices) == 0 {
		return "", false, false
	}
	return res.Choices[0].Delta.Content, false, true
}

// Chat streams a response for the given message sequence. It returns an iterator that
// yields text fragments and potential errors; the context can be used to cancel an
// ongoing request. Refer to models.Message for message structure details.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]openAIMessage, len(messages))
		for i, msg := range messages {
			msgs[i] = openAIMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			}
		}

		reqBody := openAIChatRequest{
			Model:               o.model,
			Messages:            msgs,
			MaxCompletionTokens: o.maxCompletionTokens,
			ReasoningEffort:     o.reasoningEffort,
			Stream:              true,
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		o.logger.Debug("Request body", slog.String("body", string(jsonBody)))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			o.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)

		for fragment, err := range streamEvents(o.client, req, openAICompletionDecoder{}) {
			if !yield(fragment, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
