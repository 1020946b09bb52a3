// Package textutil sanitizes document titles and path segments before they
// become staging directories or bundle file names.
package textutil

import "strings"

// unsafeRunes are characters that either separate path segments or are
// rejected by common filesystems. Separators and glob characters become
// dashes so adjacent words stay readable; the rest are dropped.
var unsafeRunes = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName makes a document title safe to use as a file or directory
// name. Path separators, colons, and asterisks become dashes; other unsafe
// characters are removed and surrounding whitespace is trimmed. Callers that
// need a non-empty result must supply their own fallback.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	cleaned := strings.TrimSpace(unsafeRunes.Replace(name))
	// A title of nothing but dots would escape into the parent directory.
	if strings.Trim(cleaned, ".") == "" {
		return ""
	}
	return cleaned
}
