package services

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Placeholder values shipped in the example credentials file. A key equal to its
// placeholder is treated the same as a missing key.
const (
	openAIKeyPlaceholder    = "your-openai-api-key-here"
	anthropicKeyPlaceholder = "your-anthropic-api-key-here"
)

// Credentials holds the provider API keys resolved at process start. Missing or
// incomplete configuration resolves to empty strings; the coordinator refuses to call
// an unconfigured provider instead of failing the network request.
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
}

// LoadCredentials reads provider keys from a dotenv-style file. The file is expected to
// live outside source control next to the coordinator config. A missing file is not an
// error; it resolves to empty credentials.
func LoadCredentials(path string) (Credentials, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, err
	}

	return Credentials{
		OpenAIKey:    strings.TrimSpace(env["OPENAI_API_KEY"]),
		AnthropicKey: strings.TrimSpace(env["ANTHROPIC_API_KEY"]),
	}, nil
}

// OpenAIConfigured reports whether a usable completion-provider key is present.
func (c Credentials) OpenAIConfigured() bool {
	return c.OpenAIKey != "" && c.OpenAIKey != openAIKeyPlaceholder
}

// AnthropicConfigured reports whether a usable message-provider key is present.
func (c Credentials) AnthropicConfigured() bool {
	return c.AnthropicKey != "" && c.AnthropicKey != anthropicKeyPlaceholder
}
