package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memDocRepo struct {
	mu    sync.Mutex
	docs  map[string]*domain.Document
	queue []*domain.ExtractionJob
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
	return nil, nil
}

func (m *memDocRepo) Enqueue(ctx context.Context, job *domain.ExtractionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type fakeExtractor struct {
	fields map[string]string
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, doc *domain.Document) (map[string]string, error) {
	return f.fields, f.err
}

func waitForStatus(t *testing.T, repo *memDocRepo, id, want string) *domain.Document {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := repo.GetByID(context.Background(), id)
		if err == nil && doc.Status == want {
			return doc
		}
		time.Sleep(10 * time.Millisecond)
	}
	doc, _ := repo.GetByID(context.Background(), id)
	t.Fatalf("document never reached status %s, last: %+v", want, doc)
	return nil
}

func TestWorkerExtractsQueuedDocument(t *testing.T) {
	repo := newMemDocRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := &domain.Document{ID: "d1", TenantID: "t1", FileName: "policy.pdf", Status: domain.DocumentUploaded}
	repo.Save(ctx, doc)
	repo.Enqueue(ctx, &domain.ExtractionJob{DocumentID: "d1", TenantID: "t1"})

	extractor := &fakeExtractor{fields: map[string]string{"policy_number": "PN-1"}}
	w := NewExtractionWorker(repo, extractor, testLogger())
	go w.Start(ctx)

	got := waitForStatus(t, repo, "d1", domain.DocumentExtracted)
	if got.Fields["policy_number"] != "PN-1" {
		t.Fatalf("fields not persisted: %+v", got.Fields)
	}
	if got.Error != "" {
		t.Fatalf("unexpected error field: %s", got.Error)
	}
}

func TestWorkerMarksFailedAfterAttempts(t *testing.T) {
	repo := newMemDocRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := &domain.Document{ID: "d1", TenantID: "t1", FileName: "policy.pdf", Status: domain.DocumentUploaded}
	repo.Save(ctx, doc)
	repo.Enqueue(ctx, &domain.ExtractionJob{DocumentID: "d1", TenantID: "t1"})

	extractor := &fakeExtractor{err: errors.New("model service down")}
	w := NewExtractionWorker(repo, extractor, testLogger())
	go w.Start(ctx)

	got := waitForStatus(t, repo, "d1", domain.DocumentFailed)
	if got.Error == "" {
		t.Fatalf("expected failure reason to be recorded")
	}
}

func TestWorkerSkipsMissingDocument(t *testing.T) {
	repo := newMemDocRepo()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	repo.Enqueue(ctx, &domain.ExtractionJob{DocumentID: "ghost", TenantID: "t1"})

	w := NewExtractionWorker(repo, &fakeExtractor{}, testLogger())
	w.Start(ctx) // returns when ctx expires

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.queue) != 0 {
		t.Fatalf("expected ghost job to be consumed")
	}
}
