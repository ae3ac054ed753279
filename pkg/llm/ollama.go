package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/httputil"
	"github.com/ordlab/ordpilot/pkg/observability"
)

// DefaultOllamaEndpoint is the local Ollama server address.
const DefaultOllamaEndpoint = "http://localhost:11434"

// Ollama is a [Provider] backed by a local Ollama server's chat API.
type Ollama struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllama creates an Ollama provider. An empty endpoint uses the local
// default; the model is required.
func NewOllama(endpoint, model string) (*Ollama, error) {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	if model == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "ollama model is required")
	}
	return &Ollama{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

func (o *Ollama) Close() error { return nil }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}

// Generate implements [Provider]. Transient server errors are retried with
// exponential backoff before giving up.
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	observability.Model().OnRequest(ctx, "ollama", o.model, req.Temperature)

	messages := req.Messages
	if req.System != "" {
		messages = append([]Message{{Role: "system", Content: req.System}}, messages...)
	}
	chat := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if req.JSON {
		chat.Format = "json"
	}
	body, err := json.Marshal(chat)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encoding ollama request")
	}

	var text string
	err = httputil.RetryWithBackoff(ctx, func() error {
		text, err = o.chat(ctx, body)
		return err
	})
	if err != nil {
		observability.Model().OnError(ctx, "ollama", o.model, err)
		return "", errors.Wrap(errors.ErrCodeProvider, err, "ollama call failed")
	}

	observability.Model().OnResponse(ctx, "ollama", o.model, len(text), time.Since(start))
	return text, nil
}

func (o *Ollama) chat(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", &httputil.RetryableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode >= 500 {
			return "", &httputil.RetryableError{Err: err}
		}
		return "", err
	}

	var decoded ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	return decoded.Message.Content, nil
}
