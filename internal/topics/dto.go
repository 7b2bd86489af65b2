package topics

import "time"

// TopicResponse is the review payload for one topic.
type TopicResponse struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"documentId"`
	SubjectID       *string   `json:"subjectId"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	TopicType       Type      `json:"topicType"`
	Confidence      int       `json:"confidence"`
	ConfidenceBand  Band      `json:"confidenceBand"`
	Included        bool      `json:"included"`
	DeepFocus       bool      `json:"deepFocus"`
	CorrectedByUser bool      `json:"correctedByUser"`
	ExtractedAt     time.Time `json:"extractedAt"`
}

// EditRequest is one entry of a confirm submission.
type EditRequest struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	Confidence      *int   `json:"confidence"`
	Included        *bool  `json:"included"`
	DeepFocus       bool   `json:"deepFocus"`
	CorrectedByUser bool   `json:"correctedByUser"`
}

// ConfirmRequest wraps the edits of a confirm submission.
type ConfirmRequest struct {
	Topics []EditRequest `json:"topics"`
}

// ToResponse converts a topic to its API shape.
func ToResponse(t Topic) TopicResponse {
	return TopicResponse{
		ID:              t.ID,
		DocumentID:      t.DocumentID,
		SubjectID:       t.SubjectID,
		Title:           t.Title,
		Content:         t.Content,
		TopicType:       t.Type,
		Confidence:      t.Confidence,
		ConfidenceBand:  BandFor(t.Confidence),
		Included:        t.Included,
		DeepFocus:       t.DeepFocus,
		CorrectedByUser: t.CorrectedByUser,
		ExtractedAt:     t.ExtractedAt,
	}
}

func toResponses(list []Topic) []TopicResponse {
	out := make([]TopicResponse, 0, len(list))
	for _, t := range list {
		out = append(out, ToResponse(t))
	}
	return out
}

func (r EditRequest) toEdit() Edit {
	return Edit{
		ID:              r.ID,
		Title:           r.Title,
		Content:         r.Content,
		Confidence:      r.Confidence,
		Included:        r.Included,
		DeepFocus:       r.DeepFocus,
		CorrectedByUser: r.CorrectedByUser,
	}
}
