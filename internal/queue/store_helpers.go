package queue

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const itemColumns = "id, source_path, document_title, transaction_id, fingerprint, mime_type, mime_subtype, mime_charset, classification_note, status, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, extraction_kind, payload_path, records_path, resources_path, bundle_path, needs_review, review_reason, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id                 int64
		sourcePath         sql.NullString
		documentTitle      sql.NullString
		transactionID      sql.NullString
		fingerprint        sql.NullString
		mimeType           sql.NullString
		mimeSubtype        sql.NullString
		mimeCharset        sql.NullString
		classificationNote sql.NullString
		statusStr          string
		errorMessage       sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
		progressStage      sql.NullString
		progressPercent    sql.NullFloat64
		progressMessage    sql.NullString
		extractionKind     sql.NullString
		payloadPath        sql.NullString
		recordsPath        sql.NullString
		resourcesPath      sql.NullString
		bundlePath         sql.NullString
		needsReview        sql.NullInt64
		reviewReason       sql.NullString
		lastHeartbeatRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&documentTitle,
		&transactionID,
		&fingerprint,
		&mimeType,
		&mimeSubtype,
		&mimeCharset,
		&classificationNote,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&extractionKind,
		&payloadPath,
		&recordsPath,
		&resourcesPath,
		&bundlePath,
		&needsReview,
		&reviewReason,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                 id,
		SourcePath:         sourcePath.String,
		DocumentTitle:      documentTitle.String,
		TransactionID:      transactionID.String,
		Fingerprint:        fingerprint.String,
		MIMEType:           mimeType.String,
		MIMESubtype:        mimeSubtype.String,
		MIMECharset:        mimeCharset.String,
		ClassificationNote: classificationNote.String,
		Status:             Status(statusStr),
		ErrorMessage:       errorMessage.String,
		ProgressStage:      progressStage.String,
		ProgressPercent:    progressPercent.Float64,
		ProgressMessage:    progressMessage.String,
		ExtractionKind:     extractionKind.String,
		PayloadPath:        payloadPath.String,
		RecordsPath:        recordsPath.String,
		ResourcesPath:      resourcesPath.String,
		BundlePath:         bundlePath.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

var (
	titleSeparators = strings.NewReplacer("_", " ", "-", " ")
	titleCaser      = cases.Title(language.English)
)

// inferTitleFromPath derives a display title from the source file name.
// Separator characters become spaces and each word is title-cased, so
// "discharge_summary.pdf" reads as "Discharge Summary" in queue output.
func inferTitleFromPath(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	if base == "" || base == "." {
		return "Document"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Join(strings.Fields(titleSeparators.Replace(base)), " ")
	if cleaned == "" {
		return "Document"
	}
	return titleCaser.String(cleaned)
}
