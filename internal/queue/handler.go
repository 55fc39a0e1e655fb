package queue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"

	"github.com/pharmakg/sentinel/internal/storage"
	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/logger"
	"github.com/pharmakg/sentinel/pkg/react"
)

// QueryJob is one asynchronous query request.
type QueryJob struct {
	JobID         string `json:"job_id"`
	Query         string `json:"query"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	Attempt       int    `json:"attempt,omitempty"`
}

const maxJobAttempts = 3

// ConsumeQueryJobs processes query jobs until the context is cancelled.
// Each completed job's result is archived to S3 for audit. Failed jobs are
// retried via the retry queue up to maxJobAttempts, then dead-lettered.
func ConsumeQueryJobs(
	ctx context.Context,
	ch *amqp091.Channel,
	orchestrator *react.Orchestrator,
	s3Client *s3.Client,
) error {
	deliveries, err := ch.Consume(QueryQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			handleDelivery(ctx, ch, delivery, orchestrator, s3Client)
		}
	}
}

func handleDelivery(
	ctx context.Context,
	ch *amqp091.Channel,
	delivery amqp091.Delivery,
	orchestrator *react.Orchestrator,
	s3Client *s3.Client,
) {
	var job QueryJob
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		logger.Error("[Queue] Malformed query job, dead-lettering", "err", err)
		_ = Publish(ch, QueryQueue+"_dlq", delivery.Body)
		_ = delivery.Ack(false)
		return
	}

	logger.Info("[Queue] Processing query job", "job_id", job.JobID, "attempt", job.Attempt+1)

	result := orchestrator.Run(ctx, job.Query, job.MaxIterations)

	if result.CompletionReason == react.ReasonError {
		job.Attempt++
		if job.Attempt >= maxJobAttempts {
			logger.Error("[Queue] Query job failed permanently", "job_id", job.JobID, "error", result.Error)
			body, _ := json.Marshal(job)
			_ = Publish(ch, QueryQueue+"_dlq", body)
			_ = delivery.Ack(false)
			return
		}
		logger.Warn("[Queue] Query job failed, scheduling retry", "job_id", job.JobID, "error", result.Error)
		body, _ := json.Marshal(job)
		_ = Publish(ch, QueryQueue+"_retry", body)
		_ = delivery.Ack(false)
		return
	}

	err := util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
		return storage.ArchiveQueryResult(ctx, s3Client, result)
	})
	if err != nil {
		logger.Warn("[Queue] Failed to archive query trace", "job_id", job.JobID, "err", err)
	}

	logger.Info("[Queue] Query job done", "job_id", job.JobID, "reason", result.CompletionReason)
	_ = delivery.Ack(false)
}
