package api

import (
	"sort"
	"time"
)

// SortQueueItemsNewestFirst returns a copy of items ordered for queue
// listings: most recently created first, ties broken by higher ID. The input
// slice is left untouched so IPC handlers can sort shared snapshots.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := append([]QueueItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].CreatedAt)
		tj := parseQueueTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

// parseQueueTime tolerates both timestamp encodings found in the queue
// database; the store writes RFC3339Nano but rows migrated from older schema
// versions may carry the second-precision form. Unparseable values sort last.
func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
