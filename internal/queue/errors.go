package queue

import "errors"

// Error kinds that park an item for manual review instead of a retry. A
// malformed document or a misconfigured endpoint will not succeed on the
// next poll, so failing it repeatedly only burns the retry budget.
const (
	ErrorKindValidation    = "validation"
	ErrorKindConfiguration = "configuration"
	ErrorKindNotFound      = "not_found"
)

// ErrorClassifier lets stage errors declare how their failure should land in
// the queue. Errors without a classification are treated as transient.
type ErrorClassifier interface {
	ErrorKind() string
}

// FailureStatus maps a stage error to the status the workflow persists after
// the stage fails: StatusReview for kinds that need a human, StatusFailed
// (retry-able) for everything else.
func FailureStatus(err error) Status {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case ErrorKindValidation, ErrorKindConfiguration, ErrorKindNotFound:
			return StatusReview
		}
	}
	return StatusFailed
}
