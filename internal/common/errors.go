package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Business logic errors
var (
	// Lookup errors
	ErrRequestNotFound = errors.New("content request not found")
	ErrVersionNotFound = errors.New("content version not found")

	// Workflow errors
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrVersionConflict    = errors.New("concurrent write detected")

	ErrNoCurrentVersion       = fmt.Errorf("%w: content has no version yet", ErrPreconditionFailed)
	ErrNotesRequired          = fmt.Errorf("%w: reviewer notes are required for this decision", ErrPreconditionFailed)
	ErrComplianceNoteRequired = fmt.Errorf("%w: a compliance note is required for fix_compliance", ErrPreconditionFailed)
	ErrScheduleInPast         = fmt.Errorf("%w: scheduled time must be in the future", ErrPreconditionFailed)

	// Rewrite and generation errors
	ErrSelectionInvalid = errors.New("selection invalid")
	ErrGenerationFailed = errors.New("generation failed")

	// Access and input errors
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// StatusFor maps a service error to an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPreconditionFailed), errors.Is(err, ErrSelectionInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
