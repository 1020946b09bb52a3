package classify_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seanwevans/fhir-department/internal/classify"
)

func TestParseMIMEOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   classify.Classification
	}{
		{
			name:   "pdf with charset",
			output: "application/pdf; charset=binary",
			want:   classify.Classification{Type: "application", Subtype: "pdf", Charset: "binary"},
		},
		{
			name:   "plain text",
			output: "text/plain; charset=us-ascii",
			want:   classify.Classification{Type: "text", Subtype: "plain", Charset: "us-ascii"},
		},
		{
			name:   "no charset",
			output: "application/zip",
			want:   classify.Classification{Type: "application", Subtype: "zip"},
		},
		{
			name:   "trailing newline",
			output: "image/tiff; charset=binary\n",
			want:   classify.Classification{Type: "image", Subtype: "tiff", Charset: "binary"},
		},
		{
			name:   "no subtype",
			output: "data",
			want:   classify.Classification{Type: "data"},
		},
		{
			name:   "unexpected second field",
			output: "application/x-empty; compressed-encoding=binary",
			want:   classify.Classification{Type: "application", Subtype: "x-empty"},
		},
		{
			name:   "empty output",
			output: "",
			want:   classify.Classification{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify.ParseMIMEOutput(tc.output)
			if got != tc.want {
				t.Fatalf("parse %q: got %+v, want %+v", tc.output, got, tc.want)
			}
		})
	}
}

func TestClassificationString(t *testing.T) {
	full := classify.Classification{Type: "application", Subtype: "pdf"}
	if full.String() != "application/pdf" {
		t.Fatalf("unexpected string: %s", full.String())
	}
	bare := classify.Classification{Type: "data"}
	if bare.String() != "data" {
		t.Fatalf("unexpected string: %s", bare.String())
	}
}

func TestSniffInvokesTool(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("application/pdf; charset=binary\n")}
	got, err := classify.Sniff(context.Background(), runner, "file", "/tmp/report.pdf")
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	want := classify.Classification{Type: "application", Subtype: "pdf", Charset: "binary"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	wantCall := []string{"file", "--brief", "--mime", "/tmp/report.pdf"}
	if len(call) != len(wantCall) {
		t.Fatalf("unexpected call: %v", call)
	}
	for i := range call {
		if call[i] != wantCall[i] {
			t.Fatalf("unexpected call: %v", call)
		}
	}
}

func TestSniffToolFailureIncludesStderr(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: []byte("cannot open `/tmp/report.pdf'\n")}
	if _, err := classify.Sniff(context.Background(), runner, "file", "/tmp/report.pdf"); err == nil {
		t.Fatal("expected error")
	} else if !strings.Contains(err.Error(), "cannot open") {
		t.Fatalf("expected stderr excerpt in error, got %v", err)
	}
}
