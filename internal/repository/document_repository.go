package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/infrastructure/redis"
)

const (
	documentKeyPrefix  = "document:"
	extractionQueueKey = "extraction:queue"
	documentRetention  = 30 * 24 * time.Hour
)

// DocumentRepository implements domain.DocumentRepository using Redis for
// both document metadata and the extraction job queue.
type DocumentRepository struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(redisClient *redis.Client, logger *slog.Logger) *DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentRepository{
		redis:  redisClient,
		logger: logger,
	}
}

// Save stores document metadata
func (r *DocumentRepository) Save(ctx context.Context, doc *domain.Document) error {
	key := documentKeyPrefix + doc.ID

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := r.redis.Set(ctx, key, string(data), documentRetention); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	r.logger.Debug("document saved",
		slog.String("document_id", doc.ID),
		slog.String("status", doc.Status),
	)
	return nil
}

// GetByID retrieves document metadata by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	data, err := r.redis.Get(ctx, documentKeyPrefix+id)
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return &doc, nil
}

// Delete removes document metadata
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if err := r.redis.Delete(ctx, documentKeyPrefix+id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	r.logger.Debug("document deleted", slog.String("document_id", id))
	return nil
}

// ListByTenant returns all documents belonging to a tenant
func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	keys, err := r.redis.Keys(ctx, documentKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var docs []*domain.Document
	for _, key := range keys {
		data, err := r.redis.Get(ctx, key)
		if err != nil {
			r.logger.Error("failed to get document", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}

		var d domain.Document
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			r.logger.Error("failed to unmarshal document", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}

		if d.TenantID == tenantID {
			docs = append(docs, &d)
		}
	}

	return docs, nil
}

// Enqueue pushes an extraction job onto the queue
func (r *DocumentRepository) Enqueue(ctx context.Context, job *domain.ExtractionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := r.redis.LPush(ctx, extractionQueueKey, string(data)); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	r.logger.Debug("extraction job enqueued", slog.String("document_id", job.DocumentID))
	return nil
}

// Dequeue blocks up to timeout waiting for a job. Returns nil when the
// timeout elapsed with nothing queued.
func (r *DocumentRepository) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExtractionJob, error) {
	data, err := r.redis.BRPop(ctx, timeout, extractionQueueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if data == "" {
		return nil, nil
	}

	var job domain.ExtractionJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
