package service

import (
	"context"
	"testing"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
)

func TestStubExtractorFields(t *testing.T) {
	e := NewStubExtractor(0)
	doc := &domain.Document{ID: "3f2a1b9c-0000-0000-0000-000000000000", FileName: "policy.pdf"}

	fields, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if fields["policy_number"] != "PN-3F2A1B9C" {
		t.Fatalf("unexpected policy number: %s", fields["policy_number"])
	}
	if fields["document_type"] != "policy_pdf" {
		t.Fatalf("unexpected document type: %s", fields["document_type"])
	}
}

func TestStubExtractorHonorsContext(t *testing.T) {
	e := NewStubExtractor(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := &domain.Document{ID: "3f2a1b9c-0000-0000-0000-000000000000", FileName: "policy.pdf"}
	if _, err := e.Extract(ctx, doc); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}

func TestDocType(t *testing.T) {
	cases := map[string]string{
		"a.pdf":  "policy_pdf",
		"a.PDF":  "policy_pdf",
		"a.png":  "policy_scan",
		"a.jpeg": "policy_scan",
		"a.docx": "unknown",
		"a":      "unknown",
	}
	for in, want := range cases {
		if got := docType(in); got != want {
			t.Fatalf("docType(%q) = %q, want %q", in, got, want)
		}
	}
}
