package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"medstudy-backend/internal/queue"
)

type scriptedProcessor map[string]error

func (s scriptedProcessor) HandleMessage(ctx context.Context, msg queue.Message) error {
	return s[msg.DocumentID]
}

func record(t *testing.T, id, documentID string) events.SQSMessage {
	t.Helper()
	body, err := queue.EncodeMessage(queue.NewMessage(documentID, "user-1", ""))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	p := scriptedProcessor{"doc-retry": errors.New("db down")}
	event := events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m-ok", "doc-ok"),
		record(t, "m-retry", "doc-retry"),
		{MessageId: "m-bad", Body: "{not json"},
	}}

	resp := processBatch(context.Background(), p, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m-retry" {
		t.Fatalf("unexpected failures %+v", resp.BatchItemFailures)
	}
}
