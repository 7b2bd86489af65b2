package main

// Run topic extraction (and optionally one question) against a local file:
//   go run ./cmd/prompttest -file notes.pdf -question "Què és la insuficiència cardíaca?"

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"medstudy-backend/internal/ai"
	"medstudy-backend/internal/bootstrap"
	"medstudy-backend/internal/extract"
	"medstudy-backend/internal/qa"
	"medstudy-backend/internal/shared/config"
	"medstudy-backend/internal/topics"
)

type output struct {
	File             string        `json:"file"`
	WordCount        int           `json:"wordCount"`
	PageCount        int           `json:"pageCount,omitempty"`
	SuggestedSubject string        `json:"suggestedSubject"`
	Fallback         bool          `json:"fallback"`
	Topics           []outputTopic `json:"topics"`
	Answer           *outputAnswer `json:"answer,omitempty"`
}

type outputTopic struct {
	Title      string      `json:"title"`
	Type       topics.Type `json:"type"`
	Confidence int         `json:"confidence"`
	Band       topics.Band `json:"band"`
}

type outputAnswer struct {
	Question string   `json:"question"`
	Context  []string `json:"contextTitles"`
	Text     string   `json:"text"`
	Fallback bool     `json:"fallback"`
}

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to a pdf, docx or csv file")
	question := flag.String("question", "", "Question to answer against the extracted topics (optional)")
	lang := flag.String("lang", "ca", "Answer language (ca or es)")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai, gemini, none)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}
	kind, ok := extract.KindOf(*filePath)
	if !ok {
		exitErr("unsupported file type: " + filepath.Ext(*filePath))
	}
	language, ok := ai.ParseLanguage(*lang)
	if !ok {
		exitErr("unsupported language: " + *lang)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}
	ctx := context.Background()
	res, err := extract.FromBytes(ctx, data, kind)
	if err != nil {
		exitErr(fmt.Sprintf("extract text: %v", err))
	}

	cfg.LLMProvider = *provider
	cfg.LLMModel = *model
	p, closeFn, err := bootstrap.NewProvider(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}
	defer closeFn()
	assistant := ai.NewAssistant(p)

	fileName := filepath.Base(*filePath)
	extracted := assistant.ExtractTopics(ctx, res.Text, fileName)
	out := output{
		File:             fileName,
		WordCount:        res.WordCount,
		PageCount:        res.PageCount,
		SuggestedSubject: extracted.SuggestedSubject,
		Fallback:         extracted.Fallback,
	}
	candidates := make([]topics.Topic, 0, len(extracted.Topics))
	for _, t := range extracted.Topics {
		out.Topics = append(out.Topics, outputTopic{
			Title:      t.Title,
			Type:       t.Type,
			Confidence: t.Confidence,
			Band:       topics.BandFor(t.Confidence),
		})
		candidates = append(candidates, topics.Topic{
			ID:         uuid.NewString(),
			Title:      t.Title,
			Content:    t.Content,
			Type:       t.Type,
			Confidence: t.Confidence,
			Included:   true,
		})
	}

	if q := strings.TrimSpace(*question); q != "" {
		selected := qa.Retrieve(q, candidates)
		answer := assistant.Answer(ctx, q, language, qa.BuildContext(selected))
		titles := make([]string, 0, len(selected))
		for _, s := range selected {
			titles = append(titles, s.Topic.Title)
		}
		out.Answer = &outputAnswer{Question: q, Context: titles, Text: answer.Text, Fallback: answer.Fallback}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("encode output: %v", err))
	}
	if strings.TrimSpace(*outPath) != "" {
		if err := os.WriteFile(*outPath, encoded, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
		return
	}
	fmt.Println(string(encoded))
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
