package topics

import (
	"errors"
	"strings"
	"time"
)

// Type classifies an extracted topic.
type Type string

const (
	TypeDefinition   Type = "definition"
	TypeClinicalCase Type = "clinical_case"
	TypeConcept      Type = "concept"
	TypeProcedure    Type = "procedure"
)

// ParseType maps a free-form label to a Type. Unknown labels yield false.
func ParseType(raw string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeDefinition:
		return TypeDefinition, true
	case TypeClinicalCase:
		return TypeClinicalCase, true
	case TypeConcept:
		return TypeConcept, true
	case TypeProcedure:
		return TypeProcedure, true
	}
	return "", false
}

// Label is the human-readable form used in prompts.
func (t Type) Label() string {
	switch t {
	case TypeDefinition:
		return "Definició"
	case TypeClinicalCase:
		return "Cas clínic"
	case TypeProcedure:
		return "Procediment"
	default:
		return "Concepte"
	}
}

// Confidence bounds.
const (
	MinConfidence     = 0
	MaxConfidence     = 100
	DefaultConfidence = 50
)

// ClampConfidence forces c into [MinConfidence, MaxConfidence].
func ClampConfidence(c int) int {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// Band is the review UI's confidence classification.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor classifies a confidence score.
func BandFor(confidence int) Band {
	switch {
	case confidence >= 90:
		return BandHigh
	case confidence >= 70:
		return BandMedium
	default:
		return BandLow
	}
}

// Topic is one extracted unit of study content.
type Topic struct {
	ID              string
	DocumentID      string
	OwnerID         string
	SubjectID       *string
	Title           string
	Content         string
	Type            Type
	Confidence      int
	Included        bool
	DeepFocus       bool
	CorrectedByUser bool
	Position        int
	ExtractedAt     time.Time
	UpdatedAt       time.Time
}

// Edit is a reviewer's change to one topic. ID may be empty for entries that
// were never persisted; those are skipped. A nil Confidence or Included keeps
// the stored value.
type Edit struct {
	ID              string
	Title           string
	Content         string
	Confidence      *int
	Included        *bool
	DeepFocus       bool
	CorrectedByUser bool
}

var (
	ErrNotFound     = errors.New("topic not found")
	ErrInvalidInput = errors.New("invalid input")
)
