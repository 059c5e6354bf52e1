package service

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/featureflags"
)

// StubExtractor stands in for the external model service that extracts policy
// fields from uploaded documents. It returns canned fields after a short
// delay. With FLAG_EXTRACTOR_CHAOS set it fails a fraction of calls so the
// worker's retry and circuit-breaker paths can be exercised.
type StubExtractor struct {
	delay time.Duration
}

// NewStubExtractor creates a stub extractor with the given simulated latency
func NewStubExtractor(delay time.Duration) *StubExtractor {
	return &StubExtractor{delay: delay}
}

var errExtractionUnavailable = errors.New("extraction service unavailable")

// Extract implements domain.Extractor
func (e *StubExtractor) Extract(ctx context.Context, doc *domain.Document) (map[string]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.delay):
	}

	if featureflags.Enabled("extractor_chaos") && rand.Intn(100) < 30 {
		return nil, errExtractionUnavailable
	}

	return map[string]string{
		"policy_number": "PN-" + strings.ToUpper(doc.ID[:8]),
		"document_type": docType(doc.FileName),
		"insured_name":  "",
		"effective":     "",
	}, nil
}

func docType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "policy_pdf"
	case ".png", ".jpg", ".jpeg":
		return "policy_scan"
	default:
		return "unknown"
	}
}
