package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"medstudy-backend/internal/shared/metrics"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/shared/util"
	"medstudy-backend/internal/topics"
)

const (
	// MaxPromptChars bounds the document text sent for extraction.
	MaxPromptChars = 15000
	// FallbackContentChars bounds the fallback topic's content.
	FallbackContentChars = 500
	// FallbackSubject is suggested when extraction fails.
	FallbackSubject = "General Medicine"

	extractMaxTokens = 8192
	answerMaxTokens  = 4096
)

// ExtractedTopic is one topic proposed by the model, already validated.
type ExtractedTopic struct {
	Title      string
	Content    string
	Type       topics.Type
	Confidence int
}

// ExtractedTopics is the validated extraction result.
type ExtractedTopics struct {
	Topics           []ExtractedTopic
	SuggestedSubject string
	// Fallback is set when the deterministic fallback replaced the model output.
	Fallback bool
}

// Answer is a tutoring reply.
type Answer struct {
	Text     string
	Fallback bool
}

// Capability is what the rest of the service needs from a language model.
type Capability interface {
	ExtractTopics(ctx context.Context, text, filename string) ExtractedTopics
	Answer(ctx context.Context, question string, lang Language, contextText string) Answer
}

// Assistant implements Capability over a Provider.
type Assistant struct {
	Provider Provider
}

// NewAssistant wraps p with a single transient retry.
func NewAssistant(p Provider) *Assistant {
	if p == nil {
		p = PlaceholderProvider{}
	}
	return &Assistant{Provider: WithRetry(p)}
}

var errMalformed = errors.New("malformed extraction response")

type rawExtraction struct {
	Topics []struct {
		Title      string          `json:"title"`
		Content    string          `json:"content"`
		TopicType  string          `json:"topicType"`
		Confidence json.RawMessage `json:"confidence"`
	} `json:"topics"`
	SuggestedSubject string `json:"suggestedSubject"`
}

// ExtractTopics never fails: any provider error or malformed response yields
// a single concept topic built from the first characters of text.
func (a *Assistant) ExtractTopics(ctx context.Context, text, filename string) ExtractedTopics {
	prompt := extractionPrompt(util.TruncateRunes(text, MaxPromptChars), filename)
	raw, err := a.Provider.Complete(ctx, Request{
		SystemInstructions: extractSystemPrompt,
		UserPrompt:         prompt,
		JSONMode:           true,
		MaxTokens:          extractMaxTokens,
	})
	if err != nil {
		return fallbackTopics(text, filename, err)
	}
	out, err := parseExtraction(raw)
	if err != nil {
		return fallbackTopics(text, filename, err)
	}
	return out
}

// Answer returns the model's reply, or a localized apology when the call fails.
func (a *Assistant) Answer(ctx context.Context, question string, lang Language, contextText string) Answer {
	system, ok := answerSystemPrompts[lang]
	if !ok {
		lang = LanguageCatalan
		system = answerSystemPrompts[lang]
	}
	raw, err := a.Provider.Complete(ctx, Request{
		SystemInstructions: system,
		UserPrompt:         answerPrompt(question, contextText),
		MaxTokens:          answerMaxTokens,
	})
	text := strings.TrimSpace(raw)
	if err != nil || text == "" {
		reason := "empty answer"
		if err != nil {
			reason = err.Error()
		}
		metrics.IncAIFallback()
		telemetry.Warn("ai.fallback", map[string]any{"operation": "answer", "reason": reason})
		return Answer{Text: answerApologies[lang], Fallback: true}
	}
	return Answer{Text: text}
}

func parseExtraction(raw string) (ExtractedTopics, error) {
	var parsed rawExtraction
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return ExtractedTopics{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	subject := strings.TrimSpace(parsed.SuggestedSubject)
	if subject == "" {
		return ExtractedTopics{}, fmt.Errorf("%w: missing suggestedSubject", errMalformed)
	}
	out := ExtractedTopics{SuggestedSubject: subject}
	for _, t := range parsed.Topics {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		typ, ok := topics.ParseType(t.TopicType)
		if !ok {
			typ = topics.TypeConcept
		}
		out.Topics = append(out.Topics, ExtractedTopic{
			Title:      title,
			Content:    strings.TrimSpace(t.Content),
			Type:       typ,
			Confidence: parseConfidence(t.Confidence),
		})
	}
	if len(out.Topics) == 0 {
		return ExtractedTopics{}, fmt.Errorf("%w: no topics", errMalformed)
	}
	return out, nil
}

// parseConfidence accepts numbers or numeric strings and clamps to [0,100].
func parseConfidence(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return topics.DefaultConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return topics.DefaultConfidence
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &f); err != nil {
			return topics.DefaultConfidence
		}
	}
	// Some models answer on a 0-1 scale.
	if f > 0 && f < 1 {
		f *= 100
	}
	return topics.ClampConfidence(int(f + 0.5))
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fallbackTopics(text, filename string, cause error) ExtractedTopics {
	metrics.IncAIFallback()
	telemetry.Warn("ai.fallback", map[string]any{
		"operation": "extract_topics",
		"file_name": filename,
		"reason":    cause.Error(),
	})
	return ExtractedTopics{
		Topics: []ExtractedTopic{{
			Title:      "Content from " + filename,
			Content:    util.TruncateRunes(text, FallbackContentChars),
			Type:       topics.TypeConcept,
			Confidence: topics.DefaultConfidence,
		}},
		SuggestedSubject: FallbackSubject,
		Fallback:         true,
	}
}

var _ Capability = (*Assistant)(nil)
