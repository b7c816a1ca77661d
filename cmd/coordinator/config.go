package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type config struct {
	Port          string `yaml:"port"`
	Debug         bool   `yaml:"debug"`
	StoreBackend  string `yaml:"storeBackend"`
	RetentionDays int    `yaml:"retentionDays"`
	DraftNotes    string `yaml:"draftNotes"`

	Summarizer       summarizerConfig       `yaml:"summarizer"`
	Drafter          drafterConfig          `yaml:"drafter"`
	TranscriptHelper transcriptHelperConfig `yaml:"transcriptHelper"`
}

// summarizerConfig configures the completion-style provider used for summaries and
// conversation continuations.
type summarizerConfig struct {
	Model               string `yaml:"model"`
	BaseURL             string `yaml:"baseURL"`
	ReasoningEffort     string `yaml:"reasoningEffort"`
	MaxCompletionTokens int    `yaml:"maxCompletionTokens"`
}

// drafterConfig configures the message-style provider used for reply drafts.
type drafterConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"baseURL"`
	MaxTokens int    `yaml:"maxTokens"`
}

type transcriptHelperConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Defaults mirror what the extension ships with; every field can be overridden in
// config.yaml.
func defaultConfig() config {
	return config{
		Port:          "8089",
		StoreBackend:  "bolt",
		RetentionDays: 7,
		Summarizer: summarizerConfig{
			Model:               "o3",
			ReasoningEffort:     "high",
			MaxCompletionTokens: 8192,
		},
		Drafter: drafterConfig{
			Model:     "claude-3-5-sonnet-latest",
			MaxTokens: 8192,
		},
	}
}

// loadConfig reads the YAML config at path over the defaults. A missing file yields the
// defaults; the coordinator is usable with no config at all once credentials exist.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding config file: %w", err)
	}

	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultConfig().RetentionDays
	}

	return cfg, nil
}
