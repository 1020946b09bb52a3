package fhir_test

import (
	"encoding/json"
	"testing"

	"github.com/seanwevans/fhir-department/internal/fhir"
)

func TestIdentityDefaulting(t *testing.T) {
	tests := []struct {
		name     string
		resource fhir.Resource
		want     fhir.Key
	}{
		{
			name:     "complete",
			resource: fhir.Resource{"resourceType": "Observation", "id": "o1"},
			want:     fhir.Key{Type: "Observation", ID: "o1"},
		},
		{
			name:     "missing id",
			resource: fhir.Resource{"resourceType": "Patient"},
			want:     fhir.Key{Type: "Patient", ID: fhir.UnknownID},
		},
		{
			name:     "missing type",
			resource: fhir.Resource{"id": "p1"},
			want:     fhir.Key{Type: fhir.UnknownType, ID: "p1"},
		},
		{
			name:     "non-string id",
			resource: fhir.Resource{"resourceType": "Patient", "id": 7},
			want:     fhir.Key{Type: "Patient", ID: fhir.UnknownID},
		},
		{
			name:     "empty resource",
			resource: fhir.Resource{},
			want:     fhir.Key{Type: fhir.UnknownType, ID: fhir.UnknownID},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.resource.Identity(); got != tc.want {
				t.Fatalf("Identity() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := fhir.Resource{
		"resourceType": "Patient",
		"id":           "12345",
		"name":         []any{map[string]any{"family": "Doe", "given": []any{"John"}}},
	}

	clone := original.Clone()
	name := clone["name"].([]any)[0].(map[string]any)
	name["family"] = "Smith"
	name["given"].([]any)[0] = "Jane"

	got := original["name"].([]any)[0].(map[string]any)
	if got["family"] != "Doe" {
		t.Fatalf("clone mutation leaked into original: %v", got)
	}
	if got["given"].([]any)[0] != "John" {
		t.Fatalf("nested clone mutation leaked into original: %v", got)
	}
}

func TestEqualStructural(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{
			name: "equal objects",
			a:    map[string]any{"url": "x", "valueString": "Extra"},
			b:    map[string]any{"url": "x", "valueString": "Extra"},
			want: true,
		},
		{
			name: "key order irrelevant",
			a:    map[string]any{"a": 1, "b": 2},
			b:    map[string]any{"b": 2, "a": 1},
			want: true,
		},
		{
			name: "differing value",
			a:    map[string]any{"url": "x"},
			b:    map[string]any{"url": "y"},
			want: false,
		},
		{
			name: "numeric cross-type",
			a:    map[string]any{"count": 1},
			b:    map[string]any{"count": float64(1)},
			want: true,
		},
		{
			name: "list order significant",
			a:    []any{"a", "b"},
			b:    []any{"b", "a"},
			want: false,
		},
		{
			name: "nil vs absent key",
			a:    map[string]any{"x": nil},
			b:    map[string]any{},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := fhir.Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestEqualAfterJSONRoundTrip(t *testing.T) {
	ext := map[string]any{"url": "http://example.org/fhir", "valueInteger": 3}
	data, err := json.Marshal(ext)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !fhir.Equal(ext, decoded) {
		t.Fatalf("expected fixture and decoded JSON to compare equal: %v vs %v", ext, decoded)
	}
}

func TestDecodeEncodeList(t *testing.T) {
	payload := []byte(`[{"resourceType":"Observation","id":"o1","status":"final"}]`)
	resources, err := fhir.DecodeList(payload)
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected one resource, got %d", len(resources))
	}
	if resources[0].ResourceType() != "Observation" {
		t.Fatalf("unexpected resource type %q", resources[0].ResourceType())
	}

	encoded, err := fhir.EncodeList(resources)
	if err != nil {
		t.Fatalf("EncodeList: %v", err)
	}
	roundTrip, err := fhir.DecodeList(encoded)
	if err != nil {
		t.Fatalf("DecodeList round trip: %v", err)
	}
	if !fhir.Equal(resources[0], roundTrip[0]) {
		t.Fatalf("round trip changed content: %v vs %v", resources[0], roundTrip[0])
	}

	if _, err := fhir.DecodeList([]byte(`{"not":"a list"}`)); err == nil {
		t.Fatal("expected error decoding non-list payload")
	}
}
