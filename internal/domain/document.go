package domain

import (
	"context"
	"time"
)

// Document statuses. Transitions: uploaded -> extracting -> extracted | failed.
const (
	DocumentUploaded   = "uploaded"
	DocumentExtracting = "extracting"
	DocumentExtracted  = "extracted"
	DocumentFailed     = "failed"
)

// Document represents an uploaded policy document awaiting extraction
type Document struct {
	ID         string
	TenantID   string
	AgencyID   string
	UploaderID string
	FileName   string
	SizeBytes  int64
	Status     string            // uploaded, extracting, extracted, failed
	Fields     map[string]string // extracted policy fields, empty until extracted
	Error      string            // failure reason when status is failed
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExtractionJob is a queued request to run field extraction on a document
type ExtractionJob struct {
	DocumentID string
	TenantID   string
	Attempts   int
	EnqueuedAt time.Time
}

// DocumentRepository defines data access for document metadata and the
// extraction job queue
type DocumentRepository interface {
	Save(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
	Delete(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Document, error)

	Enqueue(ctx context.Context, job *ExtractionJob) error
	// Dequeue blocks up to timeout waiting for a job; returns nil when none
	// arrived before the timeout elapsed.
	Dequeue(ctx context.Context, timeout time.Duration) (*ExtractionJob, error)
}

// Extractor runs field extraction on an uploaded document. The production
// implementation calls an external model service; the built-in one is a stub.
type Extractor interface {
	Extract(ctx context.Context, doc *Document) (map[string]string, error)
}
