//nolint:revive // types is a standard Go package name pattern
package types

import "github.com/google/uuid"

// JobStatus is the status of an asynchronous document-parsing job
type JobStatus string

// JobStatus values reported by the document-parsing service
const (
	JobStatusPending        JobStatus = "PENDING"
	JobStatusSuccess        JobStatus = "SUCCESS"
	JobStatusError          JobStatus = "ERROR"
	JobStatusPartialSuccess JobStatus = "PARTIAL_SUCCESS"
	JobStatusCancelled      JobStatus = "CANCELLED"
)

// JobRecord is the job descriptor returned by the document-parsing service
type JobRecord struct {
	ID           uuid.UUID `json:"id"`
	Status       JobStatus `json:"status"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
