package shred

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ExtractField parses the raw embedded JSON carried by the named field.
// An absent, blank, or explicit-null field yields (nil, nil): not present is
// not an error. Malformed JSON yields a single error message attributed to
// the field. The field never panics; all failure is returned as data.
func ExtractField(field string, raw *string) (any, *ErrorMessage) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	value, err := jsonschema.UnmarshalJSON(strings.NewReader(trimmed))
	if err != nil {
		return nil, &ErrorMessage{
			Field:   field,
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}
	}
	if value == nil {
		return nil, nil
	}
	return value, nil
}
