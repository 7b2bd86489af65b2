// Package ai is the study assistant's language-model capability: topic
// extraction from document text and tutoring answers. Providers are
// swappable; fallbacks for failed or malformed calls live here rather than
// in callers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medstudy-backend/internal/shared/telemetry"
)

// Request is one completion call.
type Request struct {
	SystemInstructions string
	UserPrompt         string
	// JSONMode asks the provider for a strict JSON object response.
	JSONMode  bool
	MaxTokens int
}

// Provider is an external language-model service.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var (
	// ErrTransient marks provider errors worth one more attempt.
	ErrTransient = errors.New("transient provider error")
	// ErrNotConfigured is returned by the placeholder provider.
	ErrNotConfigured = errors.New("LLM provider not configured")
)

// PlaceholderProvider fails every call, so the assistant always falls back.
type PlaceholderProvider struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderProvider) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

// Retrying retries a provider call once when it fails with ErrTransient.
type Retrying struct {
	Provider Provider
	Backoff  time.Duration
}

// WithRetry wraps p with a single retry on transient errors.
func WithRetry(p Provider) *Retrying {
	return &Retrying{Provider: p, Backoff: 500 * time.Millisecond}
}

// Complete implements Provider.
func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	out, err := r.Provider.Complete(ctx, req)
	if err == nil || !errors.Is(err, ErrTransient) {
		return out, err
	}
	telemetry.Warn("ai.retry", map[string]any{"error": err.Error()})
	if r.Backoff > 0 {
		timer := time.NewTimer(r.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w (retry abandoned: %v)", err, ctx.Err())
		case <-timer.C:
		}
	}
	return r.Provider.Complete(ctx, req)
}
