package llm

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/observability"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini is a [Provider] backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider. The API key may be empty, in which
// case the SDK falls back to its GEMINI_API_KEY environment lookup.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProvider, err, "creating Gemini client")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

func (g *Gemini) Close() error { return nil }

// Generate implements [Provider].
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	observability.Model().OnRequest(ctx, "gemini", g.model, req.Temperature)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		observability.Model().OnError(ctx, "gemini", g.model, err)
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		err := errors.New(errors.ErrCodeProvider, "Gemini returned an empty response")
		observability.Model().OnError(ctx, "gemini", g.model, err)
		return "", err
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := b.String()

	observability.Model().OnResponse(ctx, "gemini", g.model, len(text), time.Since(start))
	return text, nil
}

func classifyGeminiError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return errors.Wrap(errors.ErrCodeRateLimited, err, "Gemini rate limit exceeded")
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "context canceled"):
		return errors.Wrap(errors.ErrCodeTimeout, err, "Gemini call timed out")
	default:
		return errors.Wrap(errors.ErrCodeProvider, err, "Gemini call failed")
	}
}
