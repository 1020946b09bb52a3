package reconcile_test

import (
	"testing"

	"github.com/seanwevans/fhir-department/internal/fhir"
	"github.com/seanwevans/fhir-department/internal/reconcile"
)

func observation(id, status string, extensions ...any) fhir.Resource {
	resource := fhir.Resource{"resourceType": "Observation", "id": id, "status": status}
	if len(extensions) > 0 {
		resource["extension"] = extensions
	}
	return resource
}

func TestReconcileKeepsOneResourcePerIdentity(t *testing.T) {
	inputs := []fhir.Resource{
		observation("o1", "final"),
		observation("o2", "final"),
		observation("o1", "final"),
		{"resourceType": "Patient", "id": "o1"},
		observation("o2", "amended"),
	}

	set := reconcile.Reconcile(inputs)

	if set.Len() != 3 {
		t.Fatalf("expected 3 canonical resources, got %d", set.Len())
	}
	seen := make(map[fhir.Key]int)
	for _, resource := range set.Resources() {
		seen[resource.Identity()]++
	}
	for key, count := range seen {
		if count != 1 {
			t.Fatalf("identity %s appears %d times", key, count)
		}
	}
}

func TestReconcilePreservesFirstSightingOrder(t *testing.T) {
	inputs := []fhir.Resource{
		observation("b", "final"),
		{"resourceType": "Patient", "id": "a"},
		observation("b", "amended"),
		observation("a", "final"),
	}

	resources := reconcile.Reconcile(inputs).Resources()

	wantKeys := []fhir.Key{
		{Type: "Observation", ID: "b"},
		{Type: "Patient", ID: "a"},
		{Type: "Observation", ID: "a"},
	}
	if len(resources) != len(wantKeys) {
		t.Fatalf("expected %d resources, got %d", len(wantKeys), len(resources))
	}
	for i, want := range wantKeys {
		if got := resources[i].Identity(); got != want {
			t.Fatalf("position %d: got %s, want %s", i, got, want)
		}
	}
}

func TestReconcileScalarFirstWinsIsNotCommutative(t *testing.T) {
	finalFirst := reconcile.Reconcile([]fhir.Resource{
		observation("o1", "final"),
		observation("o1", "amended"),
	}).Resources()
	if got := finalFirst[0]["status"]; got != "final" {
		t.Fatalf("first-seen status should win, got %v", got)
	}

	// Reordering the same inputs changes the outcome; the merge policy is
	// deliberately order-dependent.
	amendedFirst := reconcile.Reconcile([]fhir.Resource{
		observation("o1", "amended"),
		observation("o1", "final"),
	}).Resources()
	if got := amendedFirst[0]["status"]; got != "amended" {
		t.Fatalf("first-seen status should win after reorder, got %v", got)
	}
}

func TestReconcileExtensionUnionIsIdempotent(t *testing.T) {
	ext := map[string]any{"url": "x", "value": "Extra"}
	resource := observation("o1", "final", ext)

	set := reconcile.Reconcile([]fhir.Resource{resource, resource.Clone()})

	merged := set.Resources()[0].Extensions()
	if len(merged) != 1 {
		t.Fatalf("structurally equal extension duplicated: %v", merged)
	}
	if !fhir.Equal(merged[0], ext) {
		t.Fatalf("extension altered by merge: %v", merged[0])
	}
}

func TestReconcileExtensionUnionPreservesOrder(t *testing.T) {
	first := observation("o1", "final",
		map[string]any{"url": "a"},
		map[string]any{"url": "b"},
	)
	second := observation("o1", "final",
		map[string]any{"url": "c"},
		map[string]any{"url": "a"},
		map[string]any{"url": "d"},
	)

	merged := reconcile.Reconcile([]fhir.Resource{first, second}).Resources()[0].Extensions()

	wantURLs := []string{"a", "b", "c", "d"}
	if len(merged) != len(wantURLs) {
		t.Fatalf("expected %d extensions, got %v", len(wantURLs), merged)
	}
	for i, want := range wantURLs {
		ext, ok := merged[i].(map[string]any)
		if !ok || ext["url"] != want {
			t.Fatalf("position %d: got %v, want url %q", i, merged[i], want)
		}
	}
}

func TestReconcileMergesExtensionsOntoExtensionlessCanonical(t *testing.T) {
	inputs := []fhir.Resource{
		observation("o1", "final"),
		observation("o1", "final", map[string]any{"url": "x", "value": "Extra"}),
	}

	resources := reconcile.Reconcile(inputs).Resources()

	if len(resources) != 1 {
		t.Fatalf("expected one canonical resource, got %d", len(resources))
	}
	canonical := resources[0]
	if canonical["status"] != "final" {
		t.Fatalf("status altered: %v", canonical["status"])
	}
	extensions := canonical.Extensions()
	if len(extensions) != 1 {
		t.Fatalf("expected one merged extension, got %v", extensions)
	}
	if !fhir.Equal(extensions[0], map[string]any{"url": "x", "value": "Extra"}) {
		t.Fatalf("unexpected merged extension %v", extensions[0])
	}
}

func TestReconcileDefaultsMissingIdentity(t *testing.T) {
	inputs := []fhir.Resource{
		{"resourceType": "Observation"},
		{"resourceType": "Observation"},
		{},
	}

	set := reconcile.Reconcile(inputs)

	if set.Len() != 2 {
		t.Fatalf("expected 2 canonical resources, got %d", set.Len())
	}
	if _, ok := set.Get(fhir.Key{Type: "Observation", ID: fhir.UnknownID}); !ok {
		t.Fatal("missing defaulted Observation identity")
	}
	if _, ok := set.Get(fhir.Key{Type: fhir.UnknownType, ID: fhir.UnknownID}); !ok {
		t.Fatal("missing fully defaulted identity")
	}
}

func TestReconcileDeepCopiesCanonicalRecords(t *testing.T) {
	nested := map[string]any{"coding": []any{map[string]any{"code": "85354-9"}}}
	input := fhir.Resource{"resourceType": "Observation", "id": "o1", "code": nested}

	set := reconcile.Reconcile([]fhir.Resource{input})

	// Mutating the input after reconciliation must not reach the canonical copy.
	nested["coding"].([]any)[0].(map[string]any)["code"] = "mutated"
	canonical := set.Resources()[0]
	code := canonical["code"].(map[string]any)["coding"].([]any)[0].(map[string]any)["code"]
	if code != "85354-9" {
		t.Fatalf("canonical record shares state with input: %v", code)
	}
}
