package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/observability/metrics"
	"github.com/yourorg/policydesk/internal/reliability/circuitbreaker"
	"github.com/yourorg/policydesk/internal/reliability/retry"
)

const (
	dequeueTimeout = 5 * time.Second
	maxJobAttempts = 3
)

// ExtractionWorker drains the extraction queue in the background, runs the
// extractor on each document, and records the result. The extractor call sits
// behind a circuit breaker so an unavailable extraction service fails fast
// instead of stalling the queue.
type ExtractionWorker struct {
	docRepo   domain.DocumentRepository
	extractor domain.Extractor
	breaker   *circuitbreaker.CircuitBreaker
	retryCfg  *retry.Config
	logger    *slog.Logger
}

// NewExtractionWorker creates a new extraction worker
func NewExtractionWorker(
	docRepo domain.DocumentRepository,
	extractor domain.Extractor,
	logger *slog.Logger,
) *ExtractionWorker {
	return &ExtractionWorker{
		docRepo:   docRepo,
		extractor: extractor,
		breaker:   circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		retryCfg:  retry.DefaultConfig(),
		logger:    logger,
	}
}

// Start runs the worker loop until ctx is cancelled
func (w *ExtractionWorker) Start(ctx context.Context) {
	w.logger.Info("extraction worker started")
	w.breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		w.logger.Warn("extractor circuit state changed",
			slog.Int("from", int(from)),
			slog.Int("to", int(to)),
		)
	})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("extraction worker stopped")
			return
		default:
		}

		job, err := w.docRepo.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("extraction worker stopped")
				return
			}
			w.logger.Error("failed to dequeue extraction job", slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

func (w *ExtractionWorker) process(ctx context.Context, job *domain.ExtractionJob) {
	logger := w.logger.With(slog.String("document_id", job.DocumentID))
	start := time.Now()

	doc, err := w.docRepo.GetByID(ctx, job.DocumentID)
	if err != nil {
		logger.Error("failed to load document for extraction", slog.String("error", err.Error()))
		metrics.ObserveExtractionJob("missing_document")
		return
	}

	if !w.breaker.AllowRequest() {
		w.requeueOrFail(ctx, job, doc, "extraction service circuit open", logger)
		return
	}

	doc.Status = domain.DocumentExtracting
	doc.UpdatedAt = time.Now()
	if err := w.docRepo.Save(ctx, doc); err != nil {
		logger.Error("failed to mark document extracting", slog.String("error", err.Error()))
	}

	fields, err := retry.Do(ctx, w.retryCfg, logger, "extract", func(ctx context.Context) (map[string]string, error) {
		return w.extractor.Extract(ctx, doc)
	})
	if err != nil {
		w.breaker.RecordFailure()
		metrics.ObserveExtraction("error", time.Since(start))
		w.requeueOrFail(ctx, job, doc, err.Error(), logger)
		return
	}

	w.breaker.RecordSuccess()
	doc.Status = domain.DocumentExtracted
	doc.Fields = fields
	doc.Error = ""
	doc.UpdatedAt = time.Now()
	if err := w.docRepo.Save(ctx, doc); err != nil {
		logger.Error("failed to persist extraction result", slog.String("error", err.Error()))
		metrics.ObserveExtractionJob("save_failed")
		return
	}

	metrics.ObserveExtraction("success", time.Since(start))
	metrics.ObserveExtractionJob("completed")
	logger.Info("document extracted", slog.Duration("took", time.Since(start)))
}

// requeueOrFail puts the job back on the queue until its attempt budget is
// exhausted, then marks the document failed.
func (w *ExtractionWorker) requeueOrFail(ctx context.Context, job *domain.ExtractionJob, doc *domain.Document, reason string, logger *slog.Logger) {
	job.Attempts++
	if job.Attempts < maxJobAttempts {
		if err := w.docRepo.Enqueue(ctx, job); err != nil {
			logger.Error("failed to requeue extraction job", slog.String("error", err.Error()))
		} else {
			metrics.ObserveExtractionJob("requeued")
			logger.Warn("extraction requeued",
				slog.Int("attempts", job.Attempts),
				slog.String("reason", reason),
			)
			return
		}
	}

	doc.Status = domain.DocumentFailed
	doc.Error = reason
	doc.UpdatedAt = time.Now()
	if err := w.docRepo.Save(ctx, doc); err != nil {
		logger.Error("failed to mark document failed", slog.String("error", err.Error()))
	}
	metrics.ObserveExtractionJob("failed")
	logger.Error("extraction failed permanently", slog.String("reason", reason))
}
