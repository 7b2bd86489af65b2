package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"medstudy-backend/internal/bootstrap"
	"medstudy-backend/internal/shared/config"
	"medstudy-backend/internal/shared/metrics"
	"medstudy-backend/internal/shared/storage/db"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/workerproc"
)

var (
	initOnce  sync.Once
	initErr   error
	processor workerproc.Processor
)

func initApp() {
	cfg := config.Load()
	_ = telemetry.Init(cfg.Env)
	app, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{
		DBOptions:  db.DefaultWorkerOptions(1),
		SkipRouter: true,
	})
	if err != nil {
		initErr = err
		return
	}
	processor = app.Orchestrator
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, processor, event), nil
}

// processBatch reports only retryable failures back to SQS; terminal ones
// are dropped so the batch is not redelivered for them.
func processBatch(ctx context.Context, p workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerJobsReceived()
		err := workerproc.HandleMessage(ctx, p, record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerJobsCompleted()
		case workerproc.Terminal(err):
			metrics.IncWorkerJobsDropped()
			telemetry.Warn("lambda_worker.dropped", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
		default:
			metrics.IncWorkerJobsFailed()
			telemetry.Error("lambda_worker.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	defer telemetry.Sync()
	lambda.Start(handler)
}
