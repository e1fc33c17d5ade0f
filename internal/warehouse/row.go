// Package warehouse loads shredded documents into one BigQuery table per schema.
package warehouse

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/harrowlabs/shredder/internal/shred"
)

// Lineage columns reserved on every shredded table. A schema property with
// one of these names cannot be loaded and fails the row.
var lineageColumns = map[string]struct{}{
	"root_id":        {},
	"root_tstamp":    {},
	"ref_root":       {},
	"ref_tree":       {},
	"ref_parent":     {},
	"schema_vendor":  {},
	"schema_name":    {},
	"schema_format":  {},
	"schema_version": {},
}

// Row adapts one shredded document to a flat BigQuery row: the lineage
// columns plus one column per top-level property of the payload.
type Row struct {
	doc      shred.Document
	insertID string
}

// NewRow wraps a document for insertion. seq disambiguates sibling documents
// of the same event inside the best-effort dedup insert ID.
func NewRow(doc shred.Document, seq int) Row {
	return Row{
		doc:      doc,
		insertID: fmt.Sprintf("%s:%s:%d", doc.RootID, doc.Schema.String(), seq),
	}
}

// Table returns the destination table for this row's schema.
func (r Row) Table() string {
	return r.doc.Schema.TableName()
}

// Save implements bigquery.ValueSaver.
func (r Row) Save() (map[string]bigquery.Value, string, error) {
	refTree, err := json.Marshal(r.doc.RefTree)
	if err != nil {
		return nil, "", fmt.Errorf("encode ref_tree: %w", err)
	}

	row := map[string]bigquery.Value{
		"root_id":        r.doc.RootID,
		"root_tstamp":    r.doc.RootTstamp,
		"ref_root":       r.doc.RefRoot,
		"ref_tree":       string(refTree),
		"ref_parent":     r.doc.RefParent,
		"schema_vendor":  r.doc.Schema.Vendor,
		"schema_name":    r.doc.Schema.Name,
		"schema_format":  r.doc.Schema.Format,
		"schema_version": r.doc.Schema.Version,
	}

	for name, value := range r.doc.Data {
		column := columnName(name)
		if _, reserved := lineageColumns[column]; reserved {
			return nil, "", fmt.Errorf("property %q collides with a lineage column", name)
		}
		converted, err := columnValue(value)
		if err != nil {
			return nil, "", fmt.Errorf("property %q: %w", name, err)
		}
		row[column] = converted
	}

	return row, r.insertID, nil
}

func columnName(property string) string {
	var b strings.Builder
	for i, r := range property {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// columnValue maps a decoded JSON value onto a BigQuery cell. Nested objects
// and arrays are stored as JSON-encoded strings; scalars map to their typed
// column.
func columnValue(value any) (bigquery.Value, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case bool:
		return v, nil
	case float64:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("unrepresentable number %q", v.String())
		}
		return f, nil
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode nested value: %w", err)
		}
		return string(encoded), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}
