package shred

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/harrowlabs/shredder/internal/iglu"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	envelopeSchemaKey = "schema"
	envelopeDataKey   = "data"
)

// Validator checks self-describing JSON values against schemas resolved from
// a registry. Compiled schemas are cached per key; the cache is safe for
// concurrent readers, matching the one-shred-per-call concurrency model.
type Validator struct {
	resolver iglu.Resolver
	printer  *message.Printer

	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator builds a validator over the given schema resolver.
func NewValidator(resolver iglu.Resolver) (*Validator, error) {
	if resolver == nil {
		return nil, errors.New("schema resolver is required")
	}
	return &Validator{
		resolver: resolver,
		printer:  message.NewPrinter(language.English),
		compiled: make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateSelfDescribing resolves the value's schema envelope and validates
// the data payload against the fetched schema. Field attributes failures to
// the offending input. When envelopeRequired is false, a value without a
// schema reference passes through unvalidated with a zero key.
//
// On success it returns the resolved key and the validated payload; on
// failure it returns every accumulated error, one per violated constraint.
func (v *Validator) ValidateSelfDescribing(ctx context.Context, field string, value any, envelopeRequired bool) (iglu.SchemaKey, map[string]any, []ErrorMessage) {
	envelope, ok := value.(map[string]any)
	if !ok {
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: "expected a JSON object with a schema envelope",
		}}
	}

	rawRef, hasRef := envelope[envelopeSchemaKey]
	if !hasRef {
		if !envelopeRequired {
			return iglu.SchemaKey{}, envelope, nil
		}
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: "missing schema reference",
		}}
	}

	ref, ok := rawRef.(string)
	if !ok {
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: "schema reference must be a string",
		}}
	}

	key, err := iglu.ParseSchemaKey(ref)
	if err != nil {
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: fmt.Sprintf("invalid schema reference: %v", err),
		}}
	}

	rawData, hasData := envelope[envelopeDataKey]
	if !hasData {
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: "missing data payload",
		}}
	}

	schema, err := v.compile(ctx, key)
	if err != nil {
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: err.Error(),
		}}
	}

	if err := schema.Validate(rawData); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return iglu.SchemaKey{}, nil, v.constraintErrors(field, key, verr)
		}
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: fmt.Sprintf("validating against %s: %v", key, err),
		}}
	}

	data, ok := rawData.(map[string]any)
	if !ok {
		return iglu.SchemaKey{}, nil, []ErrorMessage{{
			Field:   field,
			Message: "data payload is not a JSON object",
		}}
	}

	return key, data, nil
}

func (v *Validator) compile(ctx context.Context, key iglu.SchemaKey) (*jsonschema.Schema, error) {
	id := key.String()

	v.mu.RLock()
	if schema, ok := v.compiled[id]; ok {
		v.mu.RUnlock()
		return schema, nil
	}
	v.mu.RUnlock()

	raw, err := v.resolver.Resolve(ctx, key)
	if err != nil {
		if errors.Is(err, iglu.ErrSchemaNotFound) {
			return nil, fmt.Errorf("could not resolve schema %s", key)
		}
		return nil, fmt.Errorf("could not resolve schema %s: %v", key, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema %s is not valid JSON: %v", key, err)
	}
	stripMetaKeywords(doc)

	url := "iglu://" + key.Path()
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("schema %s could not be loaded: %v", key, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s could not be compiled: %v", key, err)
	}

	v.mu.Lock()
	v.compiled[id] = schema
	v.mu.Unlock()

	return schema, nil
}

// stripMetaKeywords removes the self-describing envelope keywords registry
// schemas carry ($schema pointing at the iglu meta-schema, and the self
// descriptor), which are not resolvable during compilation.
func stripMetaKeywords(doc any) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return
	}
	delete(obj, "$schema")
	delete(obj, "self")
}

// constraintErrors flattens the validator's cause tree into one message per
// violated constraint, each locating the offending value inside the payload.
func (v *Validator) constraintErrors(field string, key iglu.SchemaKey, verr *jsonschema.ValidationError) []ErrorMessage {
	var out []ErrorMessage
	v.flattenCauses(field, key, verr, &out)
	if len(out) == 0 {
		out = append(out, ErrorMessage{
			Field:   field,
			Message: fmt.Sprintf("does not conform to %s", key),
		})
	}
	return out
}

func (v *Validator) flattenCauses(field string, key iglu.SchemaKey, verr *jsonschema.ValidationError, out *[]ErrorMessage) {
	if len(verr.Causes) == 0 {
		*out = append(*out, ErrorMessage{
			Field: field,
			Message: fmt.Sprintf("%s: at %s: %s",
				key, instancePath(verr.InstanceLocation), verr.ErrorKind.LocalizedString(v.printer)),
		})
		return
	}
	for _, cause := range verr.Causes {
		v.flattenCauses(field, key, cause, out)
	}
}

func instancePath(location []string) string {
	if len(location) == 0 {
		return "$"
	}
	return "$/" + strings.Join(location, "/")
}
