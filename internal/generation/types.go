// Package generation composes drafts from the text and image generators.
// The generators themselves are external collaborators reached through
// the Generator interface.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
)

// LengthClass is a coarse target size for a draft
type LengthClass string

const (
	LengthShort  LengthClass = "Short"
	LengthMedium LengthClass = "Medium"
	LengthLong   LengthClass = "Long"
)

// ParseLengthClass accepts any casing; unknown or empty input is Medium
func ParseLengthClass(s string) LengthClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return LengthShort
	case "long":
		return LengthLong
	}
	return LengthMedium
}

// WordBand returns the approximate target word count
func (l LengthClass) WordBand() (min, max int) {
	switch l {
	case LengthShort:
		return 300, 500
	case LengthLong:
		return 1200, 1600
	}
	return 600, 1000
}

// Kind selects the capability a generator provides
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Request is the collaborator boundary for one generator call
type Request struct {
	Topic          string                  `json:"topic"`
	ContentType    domain.ContentType      `json:"content_type"`
	Instructions   string                  `json:"instructions"`
	LengthClass    LengthClass             `json:"length_class"`
	Action         domain.GenerationAction `json:"action"`
	CurrentContent string                  `json:"current_content,omitempty"`
	RewriteMode    domain.RewriteMode      `json:"rewrite_mode,omitempty"`
	ComplianceNote string                  `json:"compliance_note,omitempty"`
	ExistingTopics []string                `json:"existing_topics,omitempty"`
}

// Result is what a generator returns. Body is HTML except for rewrite
// calls, where it is the plain rewritten passage, and topic calls, where
// it is the raw JSON reply.
type Result struct {
	Title       string `json:"title,omitempty"`
	Body        string `json:"body"`
	Disclaimers string `json:"disclaimers,omitempty"`
}

// Generator produces content. Implementations make a single attempt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Error is a failed generation. Error returns the originating message
// unchanged so it can be shown to the user verbatim.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is makes errors.Is(err, common.ErrGenerationFailed) hold
func (e *Error) Is(target error) bool { return target == common.ErrGenerationFailed }

// Failf builds an Error
func Failf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// asError keeps an existing *Error and wraps anything else
func asError(err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Message: err.Error()}
}
