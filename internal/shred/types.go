// Package shred decomposes the embedded self-describing JSON of a canonical
// event into schema-tagged, lineage-annotated documents.
package shred

import (
	"fmt"

	"github.com/harrowlabs/shredder/internal/iglu"
)

// RefRoot identifies the root event type every shredded document descends from.
const RefRoot = "events"

// CanonicalEvent is the upstream, fully-enriched record the shredder reads.
// Both embedded JSON fields are optional; nil means the field was not set.
type CanonicalEvent struct {
	EventID         string  `json:"event_id"`
	CollectorTstamp string  `json:"collector_tstamp"`
	UEProperties    *string `json:"ue_properties"`
	Contexts        *string `json:"contexts"`
}

// Document is one shredded, self-describing JSON document ready for
// per-schema tabular storage.
type Document struct {
	Schema iglu.SchemaKey
	Data   map[string]any

	// Lineage fields joining the document back to its originating event.
	RootID     string
	RootTstamp string
	RefRoot    string
	RefTree    []string
	RefParent  string
}

// ErrorMessage attributes one validation or parse failure to an input field.
type ErrorMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ErrorMessage) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result is the outcome of a shredding computation: a list (possibly empty)
// of documents, or a non-empty list of error messages. Never both.
type Result struct {
	documents []Document
	errors    []ErrorMessage
}

// Ok builds a successful result carrying the given documents.
func Ok(docs ...Document) Result {
	return Result{documents: docs}
}

// Fail builds a failed result carrying the given error messages.
func Fail(errs ...ErrorMessage) Result {
	return Result{errors: errs}
}

// Failed reports whether the result carries errors.
func (r Result) Failed() bool {
	return len(r.errors) > 0
}

// Documents returns the shredded documents of a successful result.
func (r Result) Documents() []Document {
	if r.Failed() {
		return nil
	}
	return r.documents
}

// Errors returns the accumulated error messages of a failed result.
func (r Result) Errors() []ErrorMessage {
	return r.errors
}

// Combine merges two independent results. If either side failed, the merged
// result carries the errors of both sides and no documents; otherwise it
// carries the concatenated document lists. Combining never short-circuits,
// so every defect across independent sub-computations is reported at once.
func (r Result) Combine(other Result) Result {
	if r.Failed() || other.Failed() {
		errs := make([]ErrorMessage, 0, len(r.errors)+len(other.errors))
		errs = append(errs, r.errors...)
		errs = append(errs, other.errors...)
		return Result{errors: errs}
	}
	docs := make([]Document, 0, len(r.documents)+len(other.documents))
	docs = append(docs, r.documents...)
	docs = append(docs, other.documents...)
	return Result{documents: docs}
}
