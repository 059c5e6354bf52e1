package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/observability/metrics"
	"github.com/yourorg/policydesk/internal/security"
)

const maxDocumentBytes = 50 << 20

// DocumentService records uploaded policy documents and feeds the extraction
// queue. Extraction itself runs in the background worker.
type DocumentService struct {
	docRepo domain.DocumentRepository
	logger  *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(docRepo domain.DocumentRepository, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{docRepo: docRepo, logger: logger}
}

// UploadInput captures an upload request
type UploadInput struct {
	FileName  string
	SizeBytes int64
}

// Upload records document metadata and enqueues an extraction job
func (s *DocumentService) Upload(ctx context.Context, actor security.Actor, in UploadInput) (*domain.Document, error) {
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return nil, fmt.Errorf("%w: fileName is required", domain.ErrInvalidInput)
	}
	if in.SizeBytes <= 0 || in.SizeBytes > maxDocumentBytes {
		return nil, fmt.Errorf("%w: sizeBytes out of bounds", domain.ErrInvalidInput)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:         uuid.New().String(),
		TenantID:   actor.TenantID,
		AgencyID:   actor.AgencyID,
		UploaderID: actor.UserID,
		FileName:   name,
		SizeBytes:  in.SizeBytes,
		Status:     domain.DocumentUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.docRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	job := &domain.ExtractionJob{
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
		EnqueuedAt: now,
	}
	if err := s.docRepo.Enqueue(ctx, job); err != nil {
		_ = s.docRepo.Delete(ctx, doc.ID)
		return nil, fmt.Errorf("failed to enqueue extraction: %w", err)
	}

	metrics.ObserveDocumentUpload()
	s.logger.Info("document uploaded",
		slog.String("document_id", doc.ID),
		slog.String("tenant_id", doc.TenantID),
		slog.String("uploader_id", doc.UploaderID),
	)
	return doc, nil
}

// Get returns a document if it belongs to the actor's tenant
func (s *DocumentService) Get(ctx context.Context, actor security.Actor, id string) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.TenantID != actor.TenantID {
		// Cross-tenant reads look like absence, not denial
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// List returns all documents in the actor's tenant
func (s *DocumentService) List(ctx context.Context, actor security.Actor) ([]*domain.Document, error) {
	return s.docRepo.ListByTenant(ctx, actor.TenantID)
}
