package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/realtime"
)

const (
	// CallsEndpoint accepts the WebRTC SDP offer.
	CallsEndpoint = "https://api.openai.com/v1/realtime/calls"

	// DefaultModel is used when the session config names none.
	DefaultModel = "gpt-realtime"
)

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// Secret is an ephemeral client secret.
type Secret struct {
	Value     string
	ExpiresAt int64
}

// SecretRequest selects the conversation model and its instructions.
// Voice and transcription are configured later over the data channel.
type SecretRequest struct {
	Model        string
	Instructions string
}

// NewSecret mints an ephemeral key for a speech-to-speech session.
func NewSecret(ctx context.Context, apiKey string, req SecretRequest) (*Secret, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	sess := &realtime.RealtimeSessionCreateRequestParam{
		Model: realtime.RealtimeSessionCreateRequestModel(model),
	}
	if req.Instructions != "" {
		sess.Instructions = openai.String(req.Instructions)
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	resp, err := client.Realtime.ClientSecrets.New(ctx, realtime.ClientSecretNewParams{
		Session: realtime.ClientSecretNewParamsSessionUnion{OfRealtime: sess},
	})
	if err != nil {
		return nil, fmt.Errorf("create client secret: %w", err)
	}
	return &Secret{Value: resp.Value, ExpiresAt: resp.ExpiresAt}, nil
}

// ExchangeSDP posts the local offer and returns the remote answer.
func ExchangeSDP(ctx context.Context, endpoint, offer, ephemeralKey string) (string, error) {
	if endpoint == "" {
		endpoint = CallsEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(offer))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ephemeralKey)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		slog.Error("sdp exchange failed", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}
	return string(body), nil
}
