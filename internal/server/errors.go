// Package server provides the HTTP REST API for the resume-analysis workflow.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-analysis/internal/workflow"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotReady indicates a resource that exists only once the workflow has progressed further
type ErrNotReady struct {
	Resource string
	Stage    string
}

func (e *ErrNotReady) Error() string {
	return fmt.Sprintf("%s is not available at stage %s", e.Resource, e.Stage)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *workflow.ValidationError
		requestErr    *ErrValidation
		tooLarge      *http.MaxBytesError
		notReady      *ErrNotReady
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &requestErr):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrAlreadyStarted), errors.Is(err, workflow.ErrWorkflowEnded), errors.As(err, &notReady):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
