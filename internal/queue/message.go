package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current ingestion payload version.
const MessageVersion = 1

// Message asks a consumer to run the ingestion pipeline for one document.
type Message struct {
	DocumentID string `json:"documentId"`
	OwnerID    string `json:"ownerId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps a message for the given document.
func NewMessage(documentID, ownerID, requestID string) Message {
	return Message{
		DocumentID: documentID,
		OwnerID:    ownerID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
