package queue

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/seanwevans/fhir-department/internal/textutil"
)

// StagingRoot returns the per-item staging directory rooted at base. The
// transaction ID keeps the segment unique across re-queued documents; items
// without one fall back to item-{ID}.
func (i Item) StagingRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return filepath.Join(base, "docs", i.StagingName())
}

// StagingName returns the directory segment StagingRoot places the item
// under. Cleanup sweeps compare it against the directories found on disk.
func (i Item) StagingName() string {
	segment := strings.TrimSpace(i.TransactionID)
	if segment != "" {
		if len(segment) > 8 {
			segment = segment[:8]
		}
		segment = fmt.Sprintf("item-%d-%s", i.ID, segment)
	} else {
		segment = fmt.Sprintf("item-%d", i.ID)
	}
	return sanitizeSegment(segment)
}

func sanitizeSegment(value string) string {
	value = textutil.SanitizeFileName(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "-")
	value = strings.Trim(value, "-_")
	if value == "" {
		return "item"
	}
	return value
}
