package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"medstudy-backend/internal/ai"
)

func TestClassifyMarksRetryableCodes(t *testing.T) {
	cases := []struct {
		err       error
		transient bool
	}{
		{status.Error(codes.Unavailable, "down"), true},
		{status.Error(codes.ResourceExhausted, "quota"), true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{status.Error(codes.InvalidArgument, "bad prompt"), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		got := errors.Is(classify(tc.err), ai.ErrTransient)
		if got != tc.transient {
			t.Fatalf("classify(%v) transient=%v, want %v", tc.err, got, tc.transient)
		}
	}
}

func TestResponseTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"topics":`), genai.Text(`[]}`)}},
		}},
	}
	if got := responseText(resp); got != `{"topics":[]}` {
		t.Fatalf("unexpected text %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", ""); err == nil {
		t.Fatalf("expected error without api key")
	}
}
