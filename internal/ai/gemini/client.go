// Package gemini implements ai.Provider over Google's Generative Language API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"medstudy-backend/internal/ai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Client implements ai.Provider using Gemini.
type Client struct {
	client    *genai.Client
	modelName string
}

// NewClient constructs a Gemini client.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModel
	}
	return &Client{client: cl, modelName: modelName}, nil
}

// Close releases the underlying connection.
func (g *Client) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete sends one generation request.
func (g *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if req.SystemInstructions != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstructions)},
		}
	}
	if req.JSONMode {
		m.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	m.SetTemperature(0)

	resp, err := m.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return "", classify(err)
	}
	out := responseText(resp)
	if out == "" {
		return "", fmt.Errorf("gemini response empty content")
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: gemini generate: %v", ai.ErrTransient, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal:
		return fmt.Errorf("%w: gemini generate: %v", ai.ErrTransient, err)
	}
	return fmt.Errorf("gemini generate: %w", err)
}

var _ ai.Provider = (*Client)(nil)
