package textutil_test

import (
	"testing"

	"github.com/seanwevans/fhir-department/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"passthrough", "Discharge Summary", "Discharge Summary"},
		{"slashes become dashes", "Labs/2026/Q1", "Labs-2026-Q1"},
		{"colons become dashes", "Visit: Follow-up", "Visit- Follow-up"},
		{"unsafe characters dropped", `Referral <final?> "v2"`, "Referral final v2"},
		{"whitespace trimmed", "  Imaging Report  ", "Imaging Report"},
		{"empty input", "", ""},
		{"dot only names rejected", "..", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeFileName(tc.input); got != tc.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
