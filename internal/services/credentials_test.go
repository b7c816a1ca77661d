package services_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pagemate/pagemate/internal/services"
)

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.env")

	contents := "OPENAI_API_KEY=sk-test-123\n" +
		"ANTHROPIC_API_KEY=your-anthropic-api-key-here\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	creds, err := services.LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}

	if creds.OpenAIKey != "sk-test-123" {
		t.Errorf("OpenAIKey = %q", creds.OpenAIKey)
	}
	if !creds.OpenAIConfigured() {
		t.Error("OpenAIConfigured() = false, want true")
	}

	// A placeholder key counts as unconfigured even though the file supplies a value.
	if creds.AnthropicConfigured() {
		t.Error("AnthropicConfigured() = true, want false for placeholder key")
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	creds, err := services.LoadCredentials(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v, want nil for missing file", err)
	}

	if creds.OpenAIConfigured() || creds.AnthropicConfigured() {
		t.Error("missing credentials file should resolve to unconfigured providers")
	}
}

func TestCredentialsConfigured(t *testing.T) {
	tests := []struct {
		name  string
		creds services.Credentials
		want  bool
	}{
		{"empty", services.Credentials{}, false},
		{"placeholder", services.Credentials{OpenAIKey: "your-openai-api-key-here"}, false},
		{"real key", services.Credentials{OpenAIKey: "sk-real"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.OpenAIConfigured(); got != tt.want {
				t.Errorf("OpenAIConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
