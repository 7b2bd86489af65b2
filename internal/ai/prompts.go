package ai

import (
	_ "embed"
	"strings"
)

//go:embed prompts/extract_topics.txt
var extractTopicsTemplate string

const extractSystemPrompt = "You are an expert medical educator. Extract medical topics and classify content accurately. Always respond with valid JSON."

// Language is a supported tutoring language.
type Language string

const (
	LanguageCatalan Language = "ca"
	LanguageSpanish Language = "es"
)

// ParseLanguage maps a request value to a Language, defaulting to Catalan.
func ParseLanguage(raw string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LanguageCatalan:
		return LanguageCatalan, true
	case LanguageSpanish:
		return LanguageSpanish, true
	}
	return "", false
}

var answerSystemPrompts = map[Language]string{
	LanguageCatalan: "Ets un assistent d'estudi mèdic expert. Respon sempre en català amb explicacions clares i detallades. Utilitza un to didàctic i proporciona exemples clínics quan sigui apropiat.",
	LanguageSpanish: "Eres un asistente de estudio médico experto. Responde siempre en español con explicaciones claras y detalladas. Utiliza un tono didáctico y proporciona ejemplos clínicos cuando sea apropiado.",
}

var answerApologies = map[Language]string{
	LanguageCatalan: "Ho sento, hi ha hagut un error en processar la teva pregunta. Torna-ho a provar.",
	LanguageSpanish: "Lo siento, hubo un error al procesar tu pregunta. Inténtalo de nuevo.",
}

func extractionPrompt(text, filename string) string {
	return strings.NewReplacer(
		"{{filename}}", filename,
		"{{content}}", text,
	).Replace(extractTopicsTemplate)
}

func answerPrompt(question, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return question
	}
	return "Basant-te en aquest context:\n\n" + contextText + "\n\nPregunta: " + question
}
