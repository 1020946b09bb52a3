package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/seanwevans/fhir-department/internal/services"
)

// Classification is the parsed MIME identification for a document.
type Classification struct {
	Type    string
	Subtype string
	Charset string
}

// String renders the classification in "type/subtype" form.
func (c Classification) String() string {
	if c.Subtype == "" {
		return c.Type
	}
	return c.Type + "/" + c.Subtype
}

// Sniff invokes the content identification tool ("file --brief --mime") and
// parses its single-line output.
func Sniff(ctx context.Context, runner services.Runner, binary, path string) (Classification, error) {
	stdout, stderr, err := runner.Run(ctx, binary, "--brief", "--mime", path)
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			return Classification{}, fmt.Errorf("run %s: %w", binary, err)
		}
		return Classification{}, fmt.Errorf("run %s: %w: %s", binary, err, detail)
	}
	return ParseMIMEOutput(string(stdout)), nil
}

// ParseMIMEOutput splits "type/subtype; charset=value" into its parts.
// Charset is optional; any other output shape degrades to a best-effort
// type/subtype split with the charset left absent.
func ParseMIMEOutput(output string) Classification {
	output = strings.TrimSpace(output)
	if output == "" {
		return Classification{}
	}
	parts := strings.Split(output, "; ")
	typeSubtype := strings.SplitN(parts[0], "/", 2)

	classification := Classification{Type: strings.TrimSpace(typeSubtype[0])}
	if len(typeSubtype) > 1 {
		classification.Subtype = strings.TrimSpace(typeSubtype[1])
	}
	if len(parts) > 1 && strings.Contains(parts[1], "charset=") {
		classification.Charset = strings.TrimSpace(strings.Split(parts[1], "=")[1])
	}
	return classification
}
