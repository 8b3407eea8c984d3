package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/feedbacklens/feedback-api/internal/database"
	"github.com/feedbacklens/feedback-api/internal/models"
	"github.com/feedbacklens/feedback-api/internal/queue"
	"github.com/feedbacklens/feedback-api/internal/services/sentiment"
)

// Responder processes reply generation jobs: it loads a stored analysis,
// drafts a reply matching its sentiment, and persists the reply.
type Responder struct {
	replyProvider sentiment.ReplyProvider
	analysisRepo  database.AnalysisStore
	jobQueue      queue.JobQueue // For re-enqueueing jobs with delays
}

// NewResponder creates a new responder worker
func NewResponder(
	replyProvider sentiment.ReplyProvider,
	analysisRepo database.AnalysisStore,
	jobQueue queue.JobQueue,
) *Responder {
	return &Responder{
		replyProvider: replyProvider,
		analysisRepo:  analysisRepo,
		jobQueue:      jobQueue,
	}
}

// ProcessReplyJob drafts and stores a reply for a single analysis. The job
// is idempotent: an analysis that already carries a reply is skipped, as is
// neutral feedback.
func (r *Responder) ProcessReplyJob(ctx context.Context, job *queue.Job) error {
	if job.AnalysisID == nil {
		return fmt.Errorf("analysis_id is required for reply generation job")
	}

	analysis, err := r.analysisRepo.GetByID(ctx, *job.AnalysisID)
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}

	if analysis.UserID != job.UserID {
		return fmt.Errorf("analysis does not belong to user")
	}

	if analysis.Reply != nil {
		log.Printf("Analysis %s already has a reply, skipping", analysis.ID)
		return nil
	}

	ctx = context.WithValue(ctx, sentiment.UserIDContextKey(), job.UserID)
	ctx = context.WithValue(ctx, sentiment.AnalysisIDContextKey(), analysis.ID)

	reply, err := r.replyProvider.DraftReply(ctx, analysis.FeedbackText, analysis.Sentiment)
	if err != nil {
		if errors.Is(err, sentiment.ErrNoReplyNeeded) {
			log.Printf("Analysis %s is %s, no reply drafted", analysis.ID, analysis.Sentiment)
			return nil
		}
		return fmt.Errorf("failed to draft reply: %w", err)
	}

	if err := r.analysisRepo.SetReply(ctx, analysis.ID, reply); err != nil {
		return fmt.Errorf("failed to store reply: %w", err)
	}

	log.Printf("Drafted reply for analysis %s (sentiment=%s, length=%d)", analysis.ID, analysis.Sentiment, len(reply))
	return nil
}

// ProcessReprocessUserJob drafts replies for all of a user's analyses that
// still lack one.
func (r *Responder) ProcessReprocessUserJob(ctx context.Context, job *queue.Job) error {
	const pageSize = 100

	drafted := 0
	for page := 1; ; page++ {
		analyses, total, err := r.analysisRepo.GetByUserIDPaginated(ctx, job.UserID, page, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list analyses: %w", err)
		}
		if len(analyses) == 0 {
			break
		}

		for _, analysis := range analyses {
			if analysis.Reply != nil || analysis.Sentiment == models.SentimentNeutral {
				continue
			}

			reply, err := r.replyProvider.DraftReply(ctx, analysis.FeedbackText, analysis.Sentiment)
			if err != nil {
				log.Printf("Failed to draft reply for analysis %s: %v", analysis.ID, err)
				continue
			}
			if err := r.analysisRepo.SetReply(ctx, analysis.ID, reply); err != nil {
				log.Printf("Failed to store reply for analysis %s: %v", analysis.ID, err)
				continue
			}
			drafted++
		}

		if page*pageSize >= total {
			break
		}
	}

	log.Printf("Reprocessed analyses for user %s, drafted %d replies", job.UserID, drafted)
	return nil
}

// ProcessJob processes a job based on its type
func (r *Responder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	// Check if job should be processed now (respect NotBefore)
	if !job.ShouldProcess() {
		log.Printf("Job %s not ready yet (NotBefore: %v), skipping", job.ID, job.NotBefore)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job for later processing: %v", ackErr)
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeReplyGeneration:
		if err := r.ProcessReplyJob(ctx, job); err != nil {
			return r.handleJobError(ctx, msg, job, err, "reply generation")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	case queue.JobTypeReprocessUser:
		if err := r.ProcessReprocessUserJob(ctx, job); err != nil {
			// Reprocessing failures are less critical, just log
			if nackErr := msg.Nack(false); nackErr != nil { // Don't requeue reprocessing jobs
				log.Printf("Failed to nack reprocessing job: %v", nackErr)
			}
			return fmt.Errorf("reprocessing failed: %w", err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack reprocessing job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			log.Printf("Failed to nack unknown job type: %v", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError handles errors from job processing with retry logic keyed
// to the kind of provider failure.
func (r *Responder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, jobType string) error {
	// Quota errors should not retry soon; re-enqueue with a long delay.
	if sentiment.IsQuotaError(err) {
		log.Printf("Quota exceeded for %s job %s: %v", jobType, job.ID, err)

		retryDelay := sentiment.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		delayedJob := r.delayedRetry(job, notBefore)

		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job before re-enqueue: %v", ackErr)
		}

		if r.jobQueue != nil {
			if enqueueErr := r.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue job %s with delay: %v", job.ID, enqueueErr)
				return fmt.Errorf("quota exhausted, failed to re-enqueue: %w", enqueueErr)
			}
			log.Printf("Re-enqueued %s job %s for retry at %v (quota exhausted)", jobType, job.ID, notBefore)
			return nil
		}

		log.Printf("Warning: no queue access, cannot re-enqueue job with delay. Sending to DLQ.")
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Printf("Failed to nack quota error job: %v", nackErr)
		}
		return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
	}

	// Rate limit errors retry with backoff via the delayed exchange.
	if sentiment.IsRateLimitError(err) {
		log.Printf("Rate limited for %s job %s: %v", jobType, job.ID, err)

		retryDelay := sentiment.GetRetryDelay(err, job.RetryCount)

		if job.CanRetry() && r.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := r.delayedRetry(job, notBefore)

			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack rate limited job: %v", ackErr)
			}

			if enqueueErr := r.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue rate limited job %s: %v", job.ID, enqueueErr)
				if nackErr := msg.Nack(true); nackErr != nil {
					log.Printf("Failed to nack rate limited job: %v", nackErr)
				}
				return fmt.Errorf("rate limited, failed to re-enqueue: %w", enqueueErr)
			}

			log.Printf("Rate limited: re-enqueued %s job %s for retry at %v (delay: %v)",
				jobType, job.ID, notBefore, retryDelay)
			return nil
		}

		if job.CanRetry() {
			job.IncrementRetry()
			log.Printf("Rate limit: will retry job %s immediately (attempt %d/%d)",
				job.ID, job.RetryCount, job.MaxRetries)
			if nackErr := msg.Nack(true); nackErr != nil {
				log.Printf("Failed to nack rate limited job: %v", nackErr)
			}
			return fmt.Errorf("rate limited (will retry): %w", err)
		}
	}

	// For other errors, use standard retry logic
	if job.CanRetry() {
		job.IncrementRetry()
		log.Printf("%s job %s failed (attempt %d/%d): %v, will retry", jobType, job.ID, job.RetryCount, job.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack job: %v", nackErr)
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	// Max retries exceeded, send to DLQ
	log.Printf("%s job %s failed after %d retries: %v, sending to DLQ", jobType, job.ID, job.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack job to DLQ: %v", nackErr)
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

func (r *Responder) delayedRetry(job *queue.Job, notBefore time.Time) *queue.Job {
	return &queue.Job{
		ID:         job.ID,
		Type:       job.Type,
		UserID:     job.UserID,
		AnalysisID: job.AnalysisID,
		NotBefore:  &notBefore,
		NotAfter:   job.NotAfter,
		Metadata:   job.Metadata,
		CreatedAt:  job.CreatedAt,
		RetryCount: job.RetryCount + 1,
		MaxRetries: job.MaxRetries,
	}
}
