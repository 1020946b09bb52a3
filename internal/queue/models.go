package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusClassifying Status = "classifying"
	StatusClassified  Status = "classified"
	StatusExtracting  Status = "extracting"
	StatusExtracted   Status = "extracted"
	StatusMapping     Status = "mapping"
	StatusMapped      Status = "mapped"
	StatusReconciling Status = "reconciling"
	StatusReconciled  Status = "reconciled"
	StatusValidating  Status = "validating"
	StatusValidated   Status = "validated"
	StatusAssembling  Status = "assembling"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusReview      Status = "review"
)

// UserStopReason is the review reason set when a user explicitly stops an item.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusClassifying,
	StatusClassified,
	StatusExtracting,
	StatusExtracted,
	StatusMapping,
	StatusMapped,
	StatusReconciling,
	StatusReconciled,
	StatusValidating,
	StatusValidated,
	StatusAssembling,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusClassifying: {},
	StatusExtracting:  {},
	StatusMapping:     {},
	StatusReconciling: {},
	StatusValidating:  {},
	StatusAssembling:  {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an interrupted processing status to the
// entry point of its stage so work resumes there rather than from scratch.
var stageRollbackTransitions = []statusTransition{
	{from: StatusClassifying, to: StatusPending},
	{from: StatusExtracting, to: StatusClassified},
	{from: StatusMapping, to: StatusExtracted},
	{from: StatusReconciling, to: StatusMapped},
	{from: StatusValidating, to: StatusReconciled},
	{from: StatusAssembling, to: StatusValidated},
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID                 int64
	SourcePath         string
	DocumentTitle      string
	TransactionID      string
	Fingerprint        string
	MIMEType           string
	MIMESubtype        string
	MIMECharset        string
	ClassificationNote string
	Status             Status
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ProgressStage      string
	ProgressPercent    float64
	ProgressMessage    string
	ExtractionKind     string
	PayloadPath        string
	RecordsPath        string
	ResourcesPath      string
	BundlePath         string
	LastHeartbeat      *time.Time
	NeedsReview        bool
	ReviewReason       string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the workflow for an item.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// IsUserStopReason reports whether a review reason represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0,
// and ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview marks the item for manual review with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ProgressMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Review"
}

// IsInWorkflow returns true when an item is actively progressing (or queued
// to progress) through stages and should not be reset simply because the same
// document shows up in the inbox again.
func (i Item) IsInWorkflow() bool {
	if i.IsProcessing() {
		return true
	}
	switch i.Status {
	case StatusClassified,
		StatusExtracted,
		StatusMapped,
		StatusReconciled,
		StatusValidated,
		StatusCompleted:
		return true
	default:
		return false
	}
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "planned"
	case StatusCompleted:
		return "final"
	case StatusClassifying,
		StatusClassified,
		StatusExtracting,
		StatusExtracted,
		StatusMapping,
		StatusMapped,
		StatusReconciling,
		StatusReconciled,
		StatusValidating,
		StatusValidated,
		StatusAssembling,
		StatusFailed,
		StatusReview:
		return string(s)
	default:
		return ""
	}
}

// ProcessingLane partitions workflow into document intake and bundle assembly work.
type ProcessingLane string

const (
	LaneIntake   ProcessingLane = "intake"
	LaneAssembly ProcessingLane = "assembly"
)

// LaneForItem maps a queue item to its processing lane for observability purposes.
func LaneForItem(item *Item) ProcessingLane {
	if item == nil {
		return LaneIntake
	}
	switch item.Status {
	case StatusPending, StatusClassifying, StatusClassified, StatusExtracting:
		return LaneIntake
	case StatusExtracted, StatusMapping, StatusMapped, StatusReconciling, StatusReconciled,
		StatusValidating, StatusValidated, StatusAssembling, StatusCompleted:
		return LaneAssembly
	case StatusFailed, StatusReview:
		if item.PayloadPath != "" {
			return LaneAssembly
		}
		return LaneIntake
	default:
		return LaneIntake
	}
}
