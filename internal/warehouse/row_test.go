package warehouse

import (
	"encoding/json"
	"testing"

	"github.com/harrowlabs/shredder/internal/iglu"
	"github.com/harrowlabs/shredder/internal/shred"
)

func clickDocument() shred.Document {
	return shred.Document{
		Schema: iglu.SchemaKey{Vendor: "com.acme", Name: "click", Format: "jsonschema", Version: "1-0-0"},
		Data: map[string]any{
			"target": "button",
			"clicks": json.Number("3"),
		},
		RootID:     "e1",
		RootTstamp: "2014-01-01T00:00:00Z",
		RefRoot:    shred.RefRoot,
		RefTree:    []string{shred.RefRoot},
		RefParent:  shred.RefRoot,
	}
}

func TestRowSaveLineageColumns(t *testing.T) {
	row := NewRow(clickDocument(), 0)

	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if insertID != "e1:iglu:com.acme/click/jsonschema/1-0-0:0" {
		t.Fatalf("unexpected insert id %q", insertID)
	}
	if values["root_id"] != "e1" {
		t.Fatalf("unexpected root_id %v", values["root_id"])
	}
	if values["root_tstamp"] != "2014-01-01T00:00:00Z" {
		t.Fatalf("unexpected root_tstamp %v", values["root_tstamp"])
	}
	if values["ref_root"] != "events" {
		t.Fatalf("unexpected ref_root %v", values["ref_root"])
	}
	if values["ref_parent"] != "events" {
		t.Fatalf("unexpected ref_parent %v", values["ref_parent"])
	}
	if values["ref_tree"] != `["events"]` {
		t.Fatalf("unexpected ref_tree %v", values["ref_tree"])
	}
	if values["schema_vendor"] != "com.acme" || values["schema_version"] != "1-0-0" {
		t.Fatalf("unexpected schema columns: %v", values)
	}
}

func TestRowSavePropertyColumns(t *testing.T) {
	row := NewRow(clickDocument(), 2)

	values, _, err := row.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if values["target"] != "button" {
		t.Fatalf("unexpected target %v", values["target"])
	}
	if values["clicks"] != int64(3) {
		t.Fatalf("expected integer column, got %T %v", values["clicks"], values["clicks"])
	}
}

func TestRowTableDerivedFromSchema(t *testing.T) {
	row := NewRow(clickDocument(), 0)
	if row.Table() != "com_acme_click_1" {
		t.Fatalf("unexpected table %q", row.Table())
	}
}

func TestRowSaveNestedValuesEncodedAsJSON(t *testing.T) {
	doc := clickDocument()
	doc.Data["tags"] = []any{"a", "b"}
	doc.Data["geo"] = map[string]any{"lat": json.Number("51.5")}

	values, _, err := NewRow(doc, 0).Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if values["tags"] != `["a","b"]` {
		t.Fatalf("unexpected tags column %v", values["tags"])
	}
	if values["geo"] != `{"lat":51.5}` {
		t.Fatalf("unexpected geo column %v", values["geo"])
	}
}

func TestRowSaveCamelCasePropertiesSnakeCased(t *testing.T) {
	doc := clickDocument()
	doc.Data["pageUrl"] = "https://example.com"

	values, _, err := NewRow(doc, 0).Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if values["page_url"] != "https://example.com" {
		t.Fatalf("expected snake_cased column, got %v", values)
	}
}

func TestRowSaveRejectsLineageCollision(t *testing.T) {
	doc := clickDocument()
	doc.Data["root_id"] = "spoofed"

	if _, _, err := NewRow(doc, 0).Save(); err == nil {
		t.Fatal("expected error for lineage column collision")
	}
}

func TestRowSaveFloatAndBool(t *testing.T) {
	doc := clickDocument()
	doc.Data["ratio"] = json.Number("0.25")
	doc.Data["active"] = true

	values, _, err := NewRow(doc, 0).Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if values["ratio"] != 0.25 {
		t.Fatalf("unexpected ratio %T %v", values["ratio"], values["ratio"])
	}
	if values["active"] != true {
		t.Fatalf("unexpected active %v", values["active"])
	}
}
