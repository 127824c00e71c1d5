// Package storage persists extraction results using NATS KV. Each
// document keeps its latest report plus a short revision history, keyed
// by the document's content-derived ID.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semharvest/harvest"
)

// Bucket names for each record type.
const (
	BucketDocuments = "SEMHARVEST_DOCUMENTS"
	BucketReports   = "SEMHARVEST_REPORTS"
)

// Document is the stored metadata for one harvested document.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ContentHash string    `json:"content_hash"`
	TokenCount  int       `json:"token_count"`
	IssueCount  int       `json:"issue_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Report is one stored extraction outcome. Payload carries the full
// result envelope as published to NATS.
type Report struct {
	RunID      string          `json:"run_id"`
	DocumentID string          `json:"document_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store provides result storage operations backed by NATS KV.
type Store struct {
	documents jetstream.KeyValue
	reports   jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	documents, err := getOrCreateBucket(ctx, js, BucketDocuments)
	if err != nil {
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}

	reports, err := getOrCreateBucket(ctx, js, BucketReports)
	if err != nil {
		return nil, fmt.Errorf("create reports bucket: %w", err)
	}

	return &Store{
		documents: documents,
		reports:   reports,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Semharvest %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

// SaveResult upserts the document record and stores its latest report.
// The document's CreatedAt survives re-extraction; UpdatedAt moves.
func (s *Store) SaveResult(ctx context.Context, res *harvest.Result) (*Document, error) {
	id := res.Document.ID
	if !ValidKey(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}

	now := time.Now()
	doc := documentRecord(res, now)
	if existing, err := s.GetDocument(ctx, id); err == nil {
		doc.CreatedAt = existing.CreatedAt
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if _, err := s.documents.Put(ctx, id, data); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal report payload: %w", err)
	}
	report := &Report{
		RunID:      res.Report.RunID,
		DocumentID: id,
		Payload:    payload,
		CreatedAt:  now,
	}
	reportData, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if _, err := s.reports.Put(ctx, id, reportData); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	return doc, nil
}

// documentRecord builds the stored record for a result. CreatedAt is set
// to now; SaveResult overwrites it when the document already exists.
func documentRecord(res *harvest.Result, now time.Time) *Document {
	return &Document{
		ID:          res.Document.ID,
		Filename:    res.Document.Filename,
		Title:       res.Document.Title,
		Tags:        res.Document.Tags,
		ContentHash: res.Document.ContentHash,
		TokenCount:  res.Report.TokenCount,
		IssueCount:  len(res.Report.Issues),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// GetDocument retrieves a document record by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	entry, err := s.documents.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	return &doc, nil
}

// ListDocuments returns all stored document records.
func (s *Store) ListDocuments(ctx context.Context) ([]*Document, error) {
	keys, err := s.documents.Keys(ctx)
	if err != nil {
		if isNoKeys(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list document keys: %w", err)
	}

	docs := make([]*Document, 0, len(keys))
	for _, key := range keys {
		entry, err := s.documents.Get(ctx, key)
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(entry.Value(), &doc); err != nil {
			continue
		}
		docs = append(docs, &doc)
	}

	return docs, nil
}

// GetReport retrieves the latest stored report for a document.
func (s *Store) GetReport(ctx context.Context, docID string) (*Report, error) {
	entry, err := s.reports.Get(ctx, docID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}

	var report Report
	if err := json.Unmarshal(entry.Value(), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	return &report, nil
}

// DeleteDocument removes a document record and its stored report.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}

	if err := s.documents.Delete(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.reports.Delete(ctx, id); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete report: %w", err)
	}

	return nil
}

// ValidKey reports whether an ID is usable as a NATS KV key: the allowed
// character set, not starting or ending with a dot.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '=' || r == '.' || r == '/':
		default:
			return false
		}
	}
	return true
}
