// Package workflow is the content review state machine. It performs no I/O:
// Decide validates an action against a request snapshot and returns the
// target status plus the side effects the caller must commit atomically.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
)

// Action is a requested lifecycle step
type Action string

const (
	ActionEdit           Action = "edit"
	ActionSubmit         Action = "submit"
	ActionResubmit       Action = "resubmit"
	ActionApprove        Action = "approve"
	ActionRequestChanges Action = "request_changes"
	ActionReject         Action = "reject"
	ActionSchedule       Action = "schedule"
	ActionPublish        Action = "publish"
)

// Subject is the part of a content request the state machine looks at
type Subject struct {
	OrgID             string
	AdvisorID         string
	Status            domain.ContentStatus
	HasCurrentVersion bool
}

// SubjectOf snapshots a request
func SubjectOf(r *domain.ContentRequest) Subject {
	return Subject{
		OrgID:             r.OrgID,
		AdvisorID:         r.AdvisorID,
		Status:            r.Status.Normalize(),
		HasCurrentVersion: r.CurrentVersionID != nil,
	}
}

// Policy holds organization-level workflow switches
type Policy struct {
	// AllowSelfReview lets a reviewer decide on content they authored
	AllowSelfReview bool
}

// Params carries action-specific input
type Params struct {
	Notes       string
	ScheduledAt time.Time
	Now         time.Time
}

// Outcome describes what executing an action entails
type Outcome struct {
	Action Action
	From   domain.ContentStatus
	To     domain.ContentStatus

	// SaveDraftFirst: persist unsaved editor content as a human version before the status change
	SaveDraftFirst bool
	// Review is set when a ComplianceReview row must be inserted
	Review *domain.ReviewDecision
	Notes  string
	// IncrementCycle: the request re-enters review after changes
	IncrementCycle bool
	// Publish: run the external publication side effect
	Publish     bool
	ScheduledAt *time.Time
}

// StatusChanged reports whether the outcome moves the request
func (o Outcome) StatusChanged() bool { return o.From != o.To }

// TransitionError reports an action attempted from a state that does not allow it
type TransitionError struct {
	From   domain.ContentStatus
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s content in status %s", e.Action, e.From)
}

// Is makes errors.Is(err, common.ErrInvalidTransition) hold
func (e *TransitionError) Is(target error) bool {
	return target == common.ErrInvalidTransition
}

type rule struct {
	from   []domain.ContentStatus
	to     domain.ContentStatus
	review *domain.ReviewDecision
}

func decision(d domain.ReviewDecision) *domain.ReviewDecision { return &d }

// edit does not change status; its "to" is the current status
var rules = map[Action]rule{
	ActionEdit:           {from: []domain.ContentStatus{domain.StatusDraft, domain.StatusChangesRequested}},
	ActionSubmit:         {from: []domain.ContentStatus{domain.StatusDraft}, to: domain.StatusInReview},
	ActionResubmit:       {from: []domain.ContentStatus{domain.StatusChangesRequested}, to: domain.StatusInReview},
	ActionApprove:        {from: []domain.ContentStatus{domain.StatusInReview}, to: domain.StatusApproved, review: decision(domain.DecisionApproved)},
	ActionRequestChanges: {from: []domain.ContentStatus{domain.StatusInReview}, to: domain.StatusChangesRequested, review: decision(domain.DecisionChangesRequested)},
	ActionReject:         {from: []domain.ContentStatus{domain.StatusInReview}, to: domain.StatusRejected, review: decision(domain.DecisionRejected)},
	ActionSchedule:       {from: []domain.ContentStatus{domain.StatusApproved}, to: domain.StatusScheduled},
	ActionPublish:        {from: []domain.ContentStatus{domain.StatusApproved, domain.StatusScheduled}, to: domain.StatusPosted},
}

// ActionForDecision maps a review decision to its action
func ActionForDecision(d domain.ReviewDecision) (Action, bool) {
	switch d {
	case domain.DecisionApproved:
		return ActionApprove, true
	case domain.DecisionChangesRequested:
		return ActionRequestChanges, true
	case domain.DecisionRejected:
		return ActionReject, true
	}
	return "", false
}

// Allowed lists the actions the actor may take on s right now
func Allowed(s Subject, actor domain.Actor, policy Policy) []Action {
	var out []Action
	for _, a := range []Action{ActionEdit, ActionSubmit, ActionResubmit, ActionApprove, ActionRequestChanges, ActionReject, ActionSchedule, ActionPublish} {
		r := rules[a]
		if !contains(r.from, s.Status.Normalize()) {
			continue
		}
		if authorize(a, s, actor, policy) != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Decide validates action and returns its outcome. Checks run in order:
// unknown action, organization/role authorization, source state,
// preconditions. No check has side effects.
func Decide(action Action, s Subject, actor domain.Actor, policy Policy, p Params) (Outcome, error) {
	if _, ok := rules[action]; !ok {
		return Outcome{}, fmt.Errorf("%w: unknown action %q", common.ErrInvalidInput, action)
	}

	if err := authorize(action, s, actor, policy); err != nil {
		return Outcome{}, err
	}

	from := s.Status.Normalize()
	// the editor has a single submit button; after changes it means resubmit
	if action == ActionSubmit && from == domain.StatusChangesRequested {
		action = ActionResubmit
	}
	r := rules[action]
	if !contains(r.from, from) {
		return Outcome{}, &TransitionError{From: from, Action: action}
	}

	out := Outcome{Action: action, From: from, To: r.to, Review: r.review}
	if action == ActionEdit {
		out.To = from
	}

	switch action {
	case ActionSubmit, ActionResubmit:
		if !s.HasCurrentVersion {
			return Outcome{}, common.ErrNoCurrentVersion
		}
		out.SaveDraftFirst = true
		out.IncrementCycle = action == ActionResubmit
	case ActionApprove, ActionRequestChanges, ActionReject:
		notes := strings.TrimSpace(p.Notes)
		if r.review.RequiresNotes() && notes == "" {
			return Outcome{}, common.ErrNotesRequired
		}
		out.Notes = notes
	case ActionSchedule:
		if !s.HasCurrentVersion {
			return Outcome{}, common.ErrNoCurrentVersion
		}
		now := p.Now
		if now.IsZero() {
			now = time.Now()
		}
		if !p.ScheduledAt.After(now) {
			return Outcome{}, common.ErrScheduleInPast
		}
		at := p.ScheduledAt
		out.ScheduledAt = &at
	case ActionPublish:
		if !s.HasCurrentVersion {
			return Outcome{}, common.ErrNoCurrentVersion
		}
		out.Publish = true
	}

	return out, nil
}

func authorize(action Action, s Subject, actor domain.Actor, policy Policy) error {
	if actor.ID == "" {
		return common.ErrUnauthorized
	}
	if actor.OrgID != s.OrgID {
		return fmt.Errorf("%w: content belongs to another organization", common.ErrForbidden)
	}

	switch action {
	case ActionApprove, ActionRequestChanges, ActionReject:
		if !actor.CanReview() {
			return fmt.Errorf("%w: only compliance or admin may review", common.ErrForbidden)
		}
		if actor.ID == s.AdvisorID && !policy.AllowSelfReview {
			return fmt.Errorf("%w: self-review is not permitted", common.ErrForbidden)
		}
	case ActionPublish:
		// scheduled publication runs as the system actor
		if actor.Role == domain.RoleSystem {
			return nil
		}
		return requireOwner(s, actor)
	default:
		return requireOwner(s, actor)
	}
	return nil
}

func requireOwner(s Subject, actor domain.Actor) error {
	if actor.IsAdmin() || actor.ID == s.AdvisorID {
		return nil
	}
	return fmt.Errorf("%w: only the owning advisor or an admin may do this", common.ErrForbidden)
}

func contains(list []domain.ContentStatus, s domain.ContentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
