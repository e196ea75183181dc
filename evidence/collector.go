// Package evidence implements shipment of captured prompt/output pairs to
// customer-owned stores. It defines the pluggable collector contract, the
// error taxonomy and retry policy shared by all backends, the object-store,
// log-search, and document-search writers, and the batch shipper that drains
// a run's capture buffer with adaptive back-pressure.
package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/biaslens/evalcore/detect"
)

// Storage type identifiers shared with stored collection configs.
const (
	StorageObjectStore    = "object_store"
	StorageLogSearch      = "log_search"
	StorageDocumentSearch = "document_search"
)

// EvidenceData is the payload written to a customer store for one captured
// iteration.
type EvidenceData struct {
	ReferenceID     string            `json:"referenceId"`
	EvaluationRunID string            `json:"evaluationRunId"`
	TestCaseID      string            `json:"testCaseId"`
	Iteration       int               `json:"iteration"`
	Timestamp       time.Time         `json:"timestamp"`
	Prompt          string            `json:"prompt"`
	Output          string            `json:"output"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ReferenceInfo locates one stored item inside a customer store.
type ReferenceInfo struct {
	ReferenceID     string `json:"referenceId"`
	StorageLocation string `json:"storageLocation"`
	StorageType     string `json:"storageType"`
}

// Collector is the abstract per-backend contract.
type Collector interface {
	// StorageType returns the backend's storage type identifier.
	StorageType() string

	// StoreEvidence writes one item and returns its reference. Writes are
	// idempotent by reference id where the backend allows it.
	StoreEvidence(ctx context.Context, data EvidenceData) (ReferenceInfo, error)

	// TestConnection validates authentication and resource existence.
	// A missing index or bucket that the backend can create on first write
	// is acceptable; a cluster- or host-level not-found is fatal.
	TestConnection(ctx context.Context) error
}

// CollectorReferenceID builds the collector-level reference id:
// evaluation-run-{runId}[-test-case-{id}][-iteration-{n}]-{uuid}.
// testCaseID may be empty and iteration zero for run-level references.
func CollectorReferenceID(runID, testCaseID string, iteration int) string {
	ref := "evaluation-run-" + detect.SanitizeID(runID)
	if testCaseID != "" {
		ref += "-test-case-" + detect.SanitizeID(testCaseID)
	}
	if iteration > 0 {
		ref += fmt.Sprintf("-iteration-%d", iteration)
	}
	return ref + "-" + uuid.NewString()
}

// AuditSink receives the audit events that document every significant
// shipping decision.
type AuditSink interface {
	// Event records one audit event with structured fields.
	Event(name string, fields map[string]any)
}

// NopAudit discards audit events.
type NopAudit struct{}

// Event implements AuditSink.
func (NopAudit) Event(string, map[string]any) {}
