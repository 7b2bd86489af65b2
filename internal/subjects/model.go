package subjects

import (
	"errors"
	"time"
)

// Subject is a medical specialty used to group documents and topics.
type Subject struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

var (
	ErrNotFound     = errors.New("subject not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultIcon is assigned to subjects created by the resolver.
const DefaultIcon = "BookOpen"

// Palette is the fixed set of colors assigned to new subjects.
var Palette = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#06b6d4"}
