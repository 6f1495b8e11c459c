package livesession

import (
	"errors"
	"fmt"

	"go.aimuz.me/speakup/transport"
	"go.aimuz.me/speakup/transport/gemini"
	"go.aimuz.me/speakup/transport/geminiws"
	"go.aimuz.me/speakup/transport/openai"
)

// Backend names accepted by NewTransport.
const (
	BackendGemini   = "gemini"
	BackendGeminiWS = "gemini-ws"
	BackendOpenAI   = "openai"
)

// Backends lists the supported backend names.
func Backends() []string {
	return []string{BackendGemini, BackendGeminiWS, BackendOpenAI}
}

// TransportConfig selects and authenticates a backend.
type TransportConfig struct {
	Backend  string // Default: "gemini"
	APIKey   string
	Endpoint string // Optional endpoint override
}

// NewTransport builds the transport for cfg.Backend.
func NewTransport(cfg TransportConfig) (transport.Transport, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendGemini
	}
	// A custom websocket endpoint may be a keyless proxy.
	if cfg.APIKey == "" && (cfg.Backend != BackendGeminiWS || cfg.Endpoint == "") {
		return nil, errors.New("livesession: API key required")
	}

	switch cfg.Backend {
	case BackendGemini:
		return &gemini.Transport{APIKey: cfg.APIKey, BaseURL: cfg.Endpoint}, nil
	case BackendGeminiWS:
		t := geminiws.New(cfg.APIKey)
		if cfg.Endpoint != "" {
			t.Endpoint = cfg.Endpoint
		}
		return t, nil
	case BackendOpenAI:
		return &openai.Transport{APIKey: cfg.APIKey, Endpoint: cfg.Endpoint}, nil
	default:
		return nil, fmt.Errorf("livesession: unknown backend %q", cfg.Backend)
	}
}
