// Package iglu models self-describing schema references and resolves them
// against one or more schema registries.
package iglu

import (
	"fmt"
	"regexp"
	"strings"
)

var schemaURIPattern = regexp.MustCompile(`^iglu:([a-zA-Z0-9\-_.]+)/([a-zA-Z0-9\-_]+)/([a-zA-Z0-9\-_]+)/([0-9]+-[0-9]+-[0-9]+)$`)

// SchemaKey identifies a schema version by vendor, name, format and version.
// Zero value means "no schema".
type SchemaKey struct {
	Vendor  string
	Name    string
	Format  string
	Version string
}

// ParseSchemaKey parses an `iglu:<vendor>/<name>/<format>/<version>` URI.
func ParseSchemaKey(uri string) (SchemaKey, error) {
	matches := schemaURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if matches == nil {
		return SchemaKey{}, fmt.Errorf("invalid schema uri %q", uri)
	}
	return SchemaKey{
		Vendor:  matches[1],
		Name:    matches[2],
		Format:  matches[3],
		Version: matches[4],
	}, nil
}

// String renders the key back to its iglu URI form.
func (k SchemaKey) String() string {
	return "iglu:" + k.Path()
}

// Path renders the registry lookup path `<vendor>/<name>/<format>/<version>`.
func (k SchemaKey) Path() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Vendor, k.Name, k.Format, k.Version)
}

// Model returns the leading (breaking-change) component of the version.
func (k SchemaKey) Model() string {
	if idx := strings.Index(k.Version, "-"); idx > 0 {
		return k.Version[:idx]
	}
	return k.Version
}

// TableName derives the warehouse table identifier for this schema version,
// e.g. com_acme_click_1 for iglu:com.acme/click/jsonschema/1-0-0.
func (k SchemaKey) TableName() string {
	vendor := strings.NewReplacer(".", "_", "-", "_").Replace(k.Vendor)
	return strings.ToLower(vendor) + "_" + toSnakeCase(k.Name) + "_" + k.Model()
}

// IsZero reports whether the key carries no schema reference.
func (k SchemaKey) IsZero() bool {
	return k == SchemaKey{}
}

func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		if r == '-' || r == '.' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
