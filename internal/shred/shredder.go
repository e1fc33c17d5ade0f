package shred

import (
	"context"
	"fmt"
)

// Field names used for error attribution. The contexts lane reports against
// "context" (optionally suffixed with the element index) regardless of the
// input field being named "contexts"; downstream triage tooling keys on it.
const (
	fieldUnstructEvent = "ue_properties"
	fieldContext       = "context"
)

// Shredder turns one canonical event into a flat list of schema-tagged,
// lineage-annotated documents, or the full list of everything wrong with it.
type Shredder struct {
	validator *Validator
}

// New builds a Shredder validating against the given validator.
func New(validator *Validator) (*Shredder, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	return &Shredder{validator: validator}, nil
}

// Shred processes the unstructured-event and contexts lanes independently,
// merges their outcomes, and stamps lineage onto every produced document.
// Errors from both lanes are accumulated; the event fails as a whole if
// either lane fails. An event with neither field shreds to zero documents.
func (s *Shredder) Shred(ctx context.Context, event CanonicalEvent) Result {
	merged := s.shredUnstructEvent(ctx, event).Combine(s.shredContexts(ctx, event))
	if merged.Failed() {
		return merged
	}
	return Ok(stampLineage(event, merged.Documents())...)
}

func (s *Shredder) shredUnstructEvent(ctx context.Context, event CanonicalEvent) Result {
	value, extractErr := ExtractField(fieldUnstructEvent, event.UEProperties)
	if extractErr != nil {
		return Fail(*extractErr)
	}
	if value == nil {
		return Ok()
	}

	key, data, errs := s.validator.ValidateSelfDescribing(ctx, fieldUnstructEvent, value, true)
	if len(errs) > 0 {
		return Fail(errs...)
	}

	return Ok(Document{
		Schema:    key,
		Data:      data,
		RefTree:   []string{RefRoot},
		RefParent: RefRoot,
	})
}

func (s *Shredder) shredContexts(ctx context.Context, event CanonicalEvent) Result {
	value, extractErr := ExtractField(fieldContext, event.Contexts)
	if extractErr != nil {
		return Fail(*extractErr)
	}
	if value == nil {
		return Ok()
	}

	elements, ok := value.([]any)
	if !ok {
		return Fail(ErrorMessage{
			Field:   fieldContext,
			Message: "not an array: expected a JSON array of context objects",
		})
	}

	result := Ok()
	for i, element := range elements {
		field := fmt.Sprintf("%s[%d]", fieldContext, i)
		key, data, errs := s.validator.ValidateSelfDescribing(ctx, field, element, true)
		if len(errs) > 0 {
			result = result.Combine(Fail(errs...))
			continue
		}
		result = result.Combine(Ok(Document{
			Schema:    key,
			Data:      data,
			RefTree:   []string{RefRoot},
			RefParent: RefRoot,
		}))
	}
	return result
}

// stampLineage copies the event's root identifiers onto every document as a
// pure post-processing pass, so downstream joins back to the events table hold.
func stampLineage(event CanonicalEvent, docs []Document) []Document {
	stamped := make([]Document, len(docs))
	for i, doc := range docs {
		doc.RootID = event.EventID
		doc.RootTstamp = event.CollectorTstamp
		doc.RefRoot = RefRoot
		stamped[i] = doc
	}
	return stamped
}
