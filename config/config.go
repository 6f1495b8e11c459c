// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"go.aimuz.me/speakup/livesession"
)

const (
	appName        = "speakup"
	configFileName = "config.json"
)

// Environment variables holding API keys. Keys are never persisted.
const (
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvGoogleKey = "GOOGLE_API_KEY"
	EnvOpenAIKey = "OPENAI_API_KEY"
)

// Config represents the application configuration.
type Config struct {
	Backend      string `json:"backend"`
	Model        string `json:"model,omitempty"`
	Voice        string `json:"voice,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`

	// Audio
	CaptureSampleRate  int    `json:"capture_sample_rate"`
	FrameSize          int    `json:"frame_size"`
	PlaybackSampleRate int    `json:"playback_sample_rate"`
	QueueSize          int    `json:"queue_size"`
	QueuePolicy        string `json:"queue_policy"`

	// Tutoring
	TutorLanguage   string   `json:"tutor_language"`
	DetectLanguages []string `json:"detect_languages,omitempty"`

	MetricsAddr string `json:"metrics_addr,omitempty"`
	Hotkeys     bool   `json:"hotkeys"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend:            livesession.BackendGemini,
		CaptureSampleRate:  16000,
		FrameSize:          4096,
		PlaybackSampleRate: 24000,
		QueueSize:          32,
		QueuePolicy:        string(livesession.DropOldest),
		TutorLanguage:      "en",
		DetectLanguages:    []string{"en", "zh", "es", "fr", "de", "ja"},
		Hotkeys:            true,
	}
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Missing fields keep their defaults.
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if !slices.Contains(livesession.Backends(), c.Backend) {
		return fmt.Errorf("backend %q not one of %s", c.Backend, strings.Join(livesession.Backends(), ", "))
	}
	if c.CaptureSampleRate <= 0 {
		return errors.New("capture_sample_rate must be positive")
	}
	if c.FrameSize <= 0 {
		return errors.New("frame_size must be positive")
	}
	if c.PlaybackSampleRate <= 0 {
		return errors.New("playback_sample_rate must be positive")
	}
	if c.QueueSize < 0 {
		return errors.New("queue_size must not be negative")
	}
	switch livesession.QueuePolicy(c.QueuePolicy) {
	case "", livesession.DropOldest, livesession.Block:
	default:
		return fmt.Errorf("queue_policy %q not one of %s, %s", c.QueuePolicy, livesession.DropOldest, livesession.Block)
	}
	if _, err := language.Parse(c.TutorLanguage); err != nil {
		return fmt.Errorf("tutor_language %q: %w", c.TutorLanguage, err)
	}
	for _, l := range c.DetectLanguages {
		if _, err := language.Parse(l); err != nil {
			return fmt.Errorf("detect_languages %q: %w", l, err)
		}
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("metrics_addr %q: %w", c.MetricsAddr, err)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Key/value access for the CLI
// ─────────────────────────────────────────────────────────────────────────────

// Keys lists the names accepted by Set.
func Keys() []string {
	return []string{
		"backend", "model", "voice", "system_prompt", "endpoint",
		"capture_sample_rate", "frame_size", "playback_sample_rate",
		"queue_size", "queue_policy", "tutor_language", "detect_languages",
		"metrics_addr", "hotkeys",
	}
}

// Set assigns a single field from its string form and validates the result.
// The receiver is left unchanged when the new value is invalid.
func (c *Config) Set(key, value string) error {
	next := *c
	next.DetectLanguages = slices.Clone(c.DetectLanguages)

	var err error
	switch key {
	case "backend":
		next.Backend = value
	case "model":
		next.Model = value
	case "voice":
		next.Voice = value
	case "system_prompt":
		next.SystemPrompt = value
	case "endpoint":
		next.Endpoint = value
	case "capture_sample_rate":
		next.CaptureSampleRate, err = strconv.Atoi(value)
	case "frame_size":
		next.FrameSize, err = strconv.Atoi(value)
	case "playback_sample_rate":
		next.PlaybackSampleRate, err = strconv.Atoi(value)
	case "queue_size":
		next.QueueSize, err = strconv.Atoi(value)
	case "queue_policy":
		next.QueuePolicy = value
	case "tutor_language":
		next.TutorLanguage = value
	case "detect_languages":
		next.DetectLanguages = splitList(value)
	case "metrics_addr":
		next.MetricsAddr = value
	case "hotkeys":
		next.Hotkeys, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Secrets
// ─────────────────────────────────────────────────────────────────────────────

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment, without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// APIKey returns the key for the configured backend from the environment.
func (c *Config) APIKey() string {
	switch c.Backend {
	case livesession.BackendOpenAI:
		return os.Getenv(EnvOpenAIKey)
	default:
		if k := os.Getenv(EnvGeminiKey); k != "" {
			return k
		}
		return os.Getenv(EnvGoogleKey)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tutor prompt
// ─────────────────────────────────────────────────────────────────────────────

const promptTemplate = `You are a friendly %[1]s conversation partner helping the user practice speaking %[1]s.
Keep the conversation going with short, natural replies and follow-up questions.
When the user makes a mistake, add one brief remark prefixed with exactly one of these tags: %[2]s.
Only tag real mistakes and keep each remark to a single sentence.`

// Prompt returns the system instruction sent to the assistant. A custom
// system_prompt wins; otherwise the tutoring prompt is built for the tutor
// language.
func (c *Config) Prompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}
	return fmt.Sprintf(promptTemplate, LanguageName(c.TutorLanguage), strings.Join(livesession.FeedbackMarkers(), ", "))
}

// LanguageName returns the English name of a BCP 47 tag, or the tag itself
// when it cannot be parsed.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}
