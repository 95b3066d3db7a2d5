package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	advisor    = domain.Actor{ID: "adv1", OrgID: "org1", Role: domain.RoleAdvisor}
	otherAdv   = domain.Actor{ID: "adv2", OrgID: "org1", Role: domain.RoleAdvisor}
	compliance = domain.Actor{ID: "cco1", OrgID: "org1", Role: domain.RoleCompliance}
	admin      = domain.Actor{ID: "adm1", OrgID: "org1", Role: domain.RoleAdmin}
	outsider   = domain.Actor{ID: "cco9", OrgID: "org9", Role: domain.RoleCompliance}
)

func subject(status domain.ContentStatus, hasVersion bool) Subject {
	return Subject{OrgID: "org1", AdvisorID: "adv1", Status: status, HasCurrentVersion: hasVersion}
}

func TestDecide_TransitionTable(t *testing.T) {
	future := time.Now().Add(time.Hour)
	tests := []struct {
		name   string
		action Action
		from   domain.ContentStatus
		actor  domain.Actor
		params Params
		to     domain.ContentStatus
	}{
		{"submit draft", ActionSubmit, domain.StatusDraft, advisor, Params{}, domain.StatusInReview},
		{"resubmit after changes", ActionResubmit, domain.StatusChangesRequested, advisor, Params{}, domain.StatusInReview},
		{"submit after changes means resubmit", ActionSubmit, domain.StatusChangesRequested, advisor, Params{}, domain.StatusInReview},
		{"admin submits for advisor", ActionSubmit, domain.StatusDraft, admin, Params{}, domain.StatusInReview},
		{"approve", ActionApprove, domain.StatusInReview, compliance, Params{}, domain.StatusApproved},
		{"approve legacy submitted", ActionApprove, domain.StatusSubmitted, compliance, Params{}, domain.StatusApproved},
		{"request changes", ActionRequestChanges, domain.StatusInReview, compliance, Params{Notes: "add disclaimer"}, domain.StatusChangesRequested},
		{"reject", ActionReject, domain.StatusInReview, admin, Params{Notes: "promissory language"}, domain.StatusRejected},
		{"schedule", ActionSchedule, domain.StatusApproved, advisor, Params{ScheduledAt: future}, domain.StatusScheduled},
		{"publish approved", ActionPublish, domain.StatusApproved, advisor, Params{}, domain.StatusPosted},
		{"publish scheduled by system", ActionPublish, domain.StatusScheduled, domain.SystemActor("org1"), Params{}, domain.StatusPosted},
		{"edit draft", ActionEdit, domain.StatusDraft, advisor, Params{}, domain.StatusDraft},
		{"edit after changes", ActionEdit, domain.StatusChangesRequested, advisor, Params{}, domain.StatusChangesRequested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decide(tt.action, subject(tt.from, true), tt.actor, Policy{}, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.to, out.To)
			assert.Equal(t, tt.from.Normalize(), out.From)
		})
	}
}

func TestDecide_InvalidTransitions(t *testing.T) {
	tests := []struct {
		action Action
		from   domain.ContentStatus
		actor  domain.Actor
	}{
		{ActionApprove, domain.StatusDraft, compliance},
		{ActionRequestChanges, domain.StatusApproved, compliance},
		{ActionReject, domain.StatusRejected, compliance},
		{ActionSubmit, domain.StatusInReview, advisor},
		{ActionSubmit, domain.StatusPosted, advisor},
		{ActionResubmit, domain.StatusDraft, advisor},
		{ActionPublish, domain.StatusDraft, advisor},
		{ActionPublish, domain.StatusInReview, advisor},
		{ActionSchedule, domain.StatusPosted, advisor},
		{ActionEdit, domain.StatusInReview, advisor},
		{ActionEdit, domain.StatusApproved, advisor},
	}
	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+string(tt.from), func(t *testing.T) {
			_, err := Decide(tt.action, subject(tt.from, true), tt.actor, Policy{}, Params{Notes: "n", ScheduledAt: time.Now().Add(time.Hour)})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.from.Normalize(), te.From)
			assert.Contains(t, err.Error(), string(tt.from.Normalize()))
		})
	}
}

func TestDecide_SubmitRequiresVersion(t *testing.T) {
	_, err := Decide(ActionSubmit, subject(domain.StatusDraft, false), advisor, Policy{}, Params{})
	assert.ErrorIs(t, err, common.ErrNoCurrentVersion)
	assert.ErrorIs(t, err, common.ErrPreconditionFailed)

	_, err = Decide(ActionPublish, subject(domain.StatusApproved, false), advisor, Policy{}, Params{})
	assert.ErrorIs(t, err, common.ErrNoCurrentVersion)
}

func TestDecide_NotesRequired(t *testing.T) {
	for _, a := range []Action{ActionRequestChanges, ActionReject} {
		_, err := Decide(a, subject(domain.StatusInReview, true), compliance, Policy{}, Params{Notes: "   "})
		assert.ErrorIs(t, err, common.ErrNotesRequired, a)
	}

	out, err := Decide(ActionApprove, subject(domain.StatusInReview, true), compliance, Policy{}, Params{})
	require.NoError(t, err)
	require.NotNil(t, out.Review)
	assert.Equal(t, domain.DecisionApproved, *out.Review)
	assert.Empty(t, out.Notes)
}

func TestDecide_SideEffects(t *testing.T) {
	out, err := Decide(ActionSubmit, subject(domain.StatusDraft, true), advisor, Policy{}, Params{})
	require.NoError(t, err)
	assert.True(t, out.SaveDraftFirst)
	assert.False(t, out.IncrementCycle)
	assert.Nil(t, out.Review)

	out, err = Decide(ActionSubmit, subject(domain.StatusChangesRequested, true), advisor, Policy{}, Params{})
	require.NoError(t, err)
	assert.Equal(t, ActionResubmit, out.Action)
	assert.True(t, out.IncrementCycle)

	out, err = Decide(ActionRequestChanges, subject(domain.StatusInReview, true), compliance, Policy{}, Params{Notes: " add disclaimer "})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionChangesRequested, *out.Review)
	assert.Equal(t, "add disclaimer", out.Notes)

	out, err = Decide(ActionPublish, subject(domain.StatusApproved, true), advisor, Policy{}, Params{})
	require.NoError(t, err)
	assert.True(t, out.Publish)
}

func TestDecide_Authorization(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		from   domain.ContentStatus
		actor  domain.Actor
	}{
		{"advisor cannot approve", ActionApprove, domain.StatusInReview, advisor},
		{"other advisor cannot submit", ActionSubmit, domain.StatusDraft, otherAdv},
		{"compliance cannot submit", ActionSubmit, domain.StatusDraft, compliance},
		{"other org cannot review", ActionApprove, domain.StatusInReview, outsider},
		{"other advisor cannot publish", ActionPublish, domain.StatusApproved, otherAdv},
		{"other advisor cannot edit", ActionEdit, domain.StatusDraft, otherAdv},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decide(tt.action, subject(tt.from, true), tt.actor, Policy{}, Params{Notes: "x"})
			assert.ErrorIs(t, err, common.ErrForbidden)
		})
	}

	_, err := Decide(ActionApprove, subject(domain.StatusInReview, true), domain.Actor{OrgID: "org1"}, Policy{}, Params{})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestDecide_SelfReviewPolicy(t *testing.T) {
	// an admin who authored the content
	s := Subject{OrgID: "org1", AdvisorID: "adm1", Status: domain.StatusInReview, HasCurrentVersion: true}

	_, err := Decide(ActionApprove, s, admin, Policy{}, Params{})
	assert.ErrorIs(t, err, common.ErrForbidden)

	out, err := Decide(ActionApprove, s, admin, Policy{AllowSelfReview: true}, Params{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, out.To)
}

func TestDecide_Schedule(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := Decide(ActionSchedule, subject(domain.StatusApproved, true), advisor, Policy{}, Params{Now: now, ScheduledAt: now.Add(-time.Minute)})
	assert.ErrorIs(t, err, common.ErrScheduleInPast)

	out, err := Decide(ActionSchedule, subject(domain.StatusApproved, true), advisor, Policy{}, Params{Now: now, ScheduledAt: now.Add(time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, out.ScheduledAt)
	assert.Equal(t, now.Add(time.Hour), *out.ScheduledAt)
}

func TestDecide_UnknownAction(t *testing.T) {
	_, err := Decide(Action("archive"), subject(domain.StatusDraft, true), advisor, Policy{}, Params{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAllowed(t *testing.T) {
	assert.ElementsMatch(t, []Action{ActionEdit, ActionSubmit}, Allowed(subject(domain.StatusDraft, true), advisor, Policy{}))
	assert.ElementsMatch(t, []Action{ActionApprove, ActionRequestChanges, ActionReject}, Allowed(subject(domain.StatusInReview, true), compliance, Policy{}))
	assert.Empty(t, Allowed(subject(domain.StatusPosted, true), advisor, Policy{}))
	assert.Empty(t, Allowed(subject(domain.StatusRejected, true), compliance, Policy{}))
}

func TestActionForDecision(t *testing.T) {
	a, ok := ActionForDecision(domain.DecisionRejected)
	assert.True(t, ok)
	assert.Equal(t, ActionReject, a)

	_, ok = ActionForDecision("maybe")
	assert.False(t, ok)
}
