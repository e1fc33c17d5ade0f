package shred

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/harrowlabs/shredder/internal/iglu"
	"github.com/stretchr/testify/require"
)

const geoURI = "iglu:com.acme/geolocation/jsonschema/1-0-0"

const geoSchema = `{
	"type": "object",
	"properties": {
		"latitude": {"type": "number"},
		"longitude": {"type": "number"}
	},
	"required": ["latitude", "longitude"]
}`

func newTestShredder(t *testing.T) *Shredder {
	t.Helper()
	resolver := iglu.StaticResolver{
		clickURI: json.RawMessage(clickSchema),
		geoURI:   json.RawMessage(geoSchema),
	}
	validator, err := NewValidator(resolver)
	require.NoError(t, err)
	shredder, err := New(validator)
	require.NoError(t, err)
	return shredder
}

func baseEvent() CanonicalEvent {
	return CanonicalEvent{
		EventID:         "e1",
		CollectorTstamp: "2014-01-01T00:00:00Z",
	}
}

func TestShredEmptyEventYieldsNothing(t *testing.T) {
	shredder := newTestShredder(t)

	result := shredder.Shred(context.Background(), baseEvent())
	require.False(t, result.Failed())
	require.Empty(t, result.Documents())
	require.Empty(t, result.Errors())
}

func TestShredSingleValidContext(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.Contexts = strPtr(`[{"schema":"` + clickURI + `","data":{"target":"button"}}]`)

	result := shredder.Shred(context.Background(), event)
	require.False(t, result.Failed(), "errors: %v", result.Errors())

	docs := result.Documents()
	require.Len(t, docs, 1)

	doc := docs[0]
	require.Equal(t, "com.acme", doc.Schema.Vendor)
	require.Equal(t, "click", doc.Schema.Name)
	require.Equal(t, "1-0-0", doc.Schema.Version)
	require.Equal(t, "button", doc.Data["target"])
	require.Equal(t, "e1", doc.RootID)
	require.Equal(t, "2014-01-01T00:00:00Z", doc.RootTstamp)
	require.Equal(t, RefRoot, doc.RefRoot)
	require.Equal(t, RefRoot, doc.RefParent)
	require.Equal(t, []string{RefRoot}, doc.RefTree)
}

func TestShredContextArrayYieldsOneDocumentPerElement(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.Contexts = strPtr(`[
		{"schema":"` + clickURI + `","data":{"target":"a"}},
		{"schema":"` + geoURI + `","data":{"latitude":51.5,"longitude":-0.1}},
		{"schema":"` + clickURI + `","data":{"target":"b"}}
	]`)

	result := shredder.Shred(context.Background(), event)
	require.False(t, result.Failed(), "errors: %v", result.Errors())

	docs := result.Documents()
	require.Len(t, docs, 3)
	for _, doc := range docs {
		require.Equal(t, RefRoot, doc.RefParent, "contexts are siblings, not nested")
		require.Equal(t, []string{RefRoot}, doc.RefTree)
		require.Equal(t, "e1", doc.RootID)
	}
	require.Equal(t, "geolocation", docs[1].Schema.Name)
}

func TestShredUnstructuredEventLane(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.UEProperties = strPtr(`{"schema":"` + clickURI + `","data":{"target":"banner"}}`)

	result := shredder.Shred(context.Background(), event)
	require.False(t, result.Failed(), "errors: %v", result.Errors())

	docs := result.Documents()
	require.Len(t, docs, 1)
	require.Equal(t, "banner", docs[0].Data["target"])
	require.Equal(t, RefRoot, docs[0].RefParent)
}

func TestShredBothLanes(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.UEProperties = strPtr(`{"schema":"` + clickURI + `","data":{"target":"banner"}}`)
	event.Contexts = strPtr(`[{"schema":"` + geoURI + `","data":{"latitude":1,"longitude":2}}]`)

	result := shredder.Shred(context.Background(), event)
	require.False(t, result.Failed(), "errors: %v", result.Errors())
	require.Len(t, result.Documents(), 2)
}

func TestShredContextsNotAnArray(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.Contexts = strPtr(`{"not":"an array"}`)

	result := shredder.Shred(context.Background(), event)
	require.True(t, result.Failed())

	errs := result.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "context", errs[0].Field)
	require.Contains(t, errs[0].Message, "array")
	require.Empty(t, result.Documents())
}

func TestShredUnresolvableSchemaFailsWholeEvent(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.UEProperties = strPtr(`{"schema":"iglu:com.acme/unknown/jsonschema/1-0-0","data":{}}`)
	event.Contexts = strPtr(`[{"schema":"` + clickURI + `","data":{"target":"fine"}}]`)

	result := shredder.Shred(context.Background(), event)
	require.True(t, result.Failed())

	errs := result.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "ue_properties", errs[0].Field)
	require.Contains(t, errs[0].Message, "iglu:com.acme/unknown/jsonschema/1-0-0")
	require.Empty(t, result.Documents(), "no partial success: valid contexts are withheld")
}

func TestShredAccumulatesErrorsAcrossLanes(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.UEProperties = strPtr(`{"not json`)
	event.Contexts = strPtr(`{"not":"an array"}`)

	result := shredder.Shred(context.Background(), event)
	require.True(t, result.Failed())

	errs := result.Errors()
	require.Len(t, errs, 2, "both lanes must report")
	require.Equal(t, "ue_properties", errs[0].Field)
	require.Equal(t, "context", errs[1].Field)
}

func TestShredContextErrorsCarryElementIndex(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.Contexts = strPtr(`[
		{"schema":"` + clickURI + `","data":{"target":"ok"}},
		{"schema":"` + clickURI + `","data":{}},
		{"data":{}}
	]`)

	result := shredder.Shred(context.Background(), event)
	require.True(t, result.Failed())

	fields := make([]string, 0)
	for _, e := range result.Errors() {
		fields = append(fields, e.Field)
	}
	require.Contains(t, fields, "context[1]")
	require.Contains(t, fields, "context[2]")
	require.NotContains(t, fields, "context[0]")
}

func TestShredNullFieldsTreatedAsAbsent(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.UEProperties = strPtr("null")
	event.Contexts = strPtr("")

	result := shredder.Shred(context.Background(), event)
	require.False(t, result.Failed())
	require.Empty(t, result.Documents())
}

func TestShredIsIdempotent(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.UEProperties = strPtr(`{"schema":"` + clickURI + `","data":{"target":"banner","clicks":4}}`)
	event.Contexts = strPtr(`[{"schema":"` + geoURI + `","data":{"latitude":1,"longitude":2}}]`)

	first := shredder.Shred(context.Background(), event)
	second := shredder.Shred(context.Background(), event)

	require.False(t, first.Failed())
	require.True(t, reflect.DeepEqual(first.Documents(), second.Documents()))
}

func TestShredRoundTripPreservesContextValues(t *testing.T) {
	shredder := newTestShredder(t)
	event := baseEvent()
	event.Contexts = strPtr(`[{"schema":"` + geoURI + `","data":{"latitude":51.5074,"longitude":-0.1278}}]`)

	result := shredder.Shred(context.Background(), event)
	require.False(t, result.Failed(), "errors: %v", result.Errors())

	original := parseJSON(t, `{"latitude":51.5074,"longitude":-0.1278}`).(map[string]any)
	require.Equal(t, original, result.Documents()[0].Data)
}
