package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID                 int64         `json:"id"`
	DocumentTitle      string        `json:"documentTitle"`
	SourcePath         string        `json:"sourcePath"`
	TransactionID      string        `json:"transactionId,omitempty"`
	Status             string        `json:"status"`
	ProcessingLane     string        `json:"processingLane"`
	Progress           QueueProgress `json:"progress"`
	ErrorMessage       string        `json:"errorMessage"`
	CreatedAt          string        `json:"createdAt,omitempty"`
	UpdatedAt          string        `json:"updatedAt,omitempty"`
	Fingerprint        string        `json:"fingerprint,omitempty"`
	MIMEType           string        `json:"mimeType,omitempty"`
	MIMESubtype        string        `json:"mimeSubtype,omitempty"`
	ClassificationNote string        `json:"classificationNote,omitempty"`
	ExtractionKind     string        `json:"extractionKind,omitempty"`
	PayloadPath        string        `json:"payloadPath,omitempty"`
	RecordsPath        string        `json:"recordsPath,omitempty"`
	ResourcesPath      string        `json:"resourcesPath,omitempty"`
	BundlePath         string        `json:"bundlePath,omitempty"`
	NeedsReview        bool          `json:"needsReview"`
	ReviewReason       string        `json:"reviewReason,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// QueueHealthResponse summarizes queue database diagnostics.
type QueueHealthResponse struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	TableExists      bool   `json:"tableExists"`
	TotalItems       int    `json:"totalItems"`
	Error            string `json:"error,omitempty"`
}

// StatusLine is a labeled readiness row rendered in status output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates external tool readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}
