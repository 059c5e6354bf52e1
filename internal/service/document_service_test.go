package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/security"
)

type memDocRepo struct {
	mu    sync.Mutex
	docs  map[string]*domain.Document
	queue []*domain.ExtractionJob

	failEnqueue bool
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: map[string]*domain.Document{}}
}

func (m *memDocRepo) Save(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memDocRepo) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Document
	for _, d := range m.docs {
		if d.TenantID == tenantID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDocRepo) Enqueue(ctx context.Context, job *domain.ExtractionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEnqueue {
		return errors.New("queue unavailable")
	}
	m.queue = append(m.queue, job)
	return nil
}

func (m *memDocRepo) Dequeue(ctx context.Context, timeout time.Duration) (*domain.ExtractionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil
	}
	job := m.queue[0]
	m.queue = m.queue[1:]
	return job, nil
}

var uploader = security.Actor{UserID: "u1", TenantID: "t1", AgencyID: "a1", Role: domain.RoleAgent}

func TestUploadEnqueuesExtraction(t *testing.T) {
	repo := newMemDocRepo()
	svc := NewDocumentService(repo, nil)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, uploader, UploadInput{FileName: "policy.pdf", SizeBytes: 1024})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if doc.Status != domain.DocumentUploaded {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	if doc.TenantID != "t1" || doc.UploaderID != "u1" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	job, err := repo.Dequeue(ctx, 0)
	if err != nil || job == nil {
		t.Fatalf("expected queued job, got %v err=%v", job, err)
	}
	if job.DocumentID != doc.ID || job.TenantID != "t1" {
		t.Fatalf("job mismatch: %+v", job)
	}
}

func TestUploadValidation(t *testing.T) {
	svc := NewDocumentService(newMemDocRepo(), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		input UploadInput
	}{
		{"missing name", UploadInput{SizeBytes: 1024}},
		{"blank name", UploadInput{FileName: "   ", SizeBytes: 1024}},
		{"zero size", UploadInput{FileName: "policy.pdf"}},
		{"oversize", UploadInput{FileName: "policy.pdf", SizeBytes: maxDocumentBytes + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Upload(ctx, uploader, tc.input); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUploadCompensatesFailedEnqueue(t *testing.T) {
	repo := newMemDocRepo()
	repo.failEnqueue = true
	svc := NewDocumentService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, uploader, UploadInput{FileName: "policy.pdf", SizeBytes: 1024}); err == nil {
		t.Fatalf("expected upload to fail when queue is down")
	}

	docs, _ := repo.ListByTenant(ctx, "t1")
	if len(docs) != 0 {
		t.Fatalf("expected orphaned metadata to be removed, found %d", len(docs))
	}
}

func TestGetScopesByTenant(t *testing.T) {
	repo := newMemDocRepo()
	svc := NewDocumentService(repo, nil)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, uploader, UploadInput{FileName: "policy.pdf", SizeBytes: 1024})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := svc.Get(ctx, uploader, doc.ID); err != nil {
		t.Fatalf("own-tenant get failed: %v", err)
	}

	// A foreign tenant sees a plain 404
	outsider := security.Actor{UserID: "u9", TenantID: "t2", Role: domain.RoleTenantAdmin}
	if _, err := svc.Get(ctx, outsider, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign tenant, got %v", err)
	}
}
