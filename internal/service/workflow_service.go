package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/event"
	"github.com/JxWayne890/complyflow-financial/internal/publisher"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/google/uuid"
)

// TransitionInput carries the optional inputs of a workflow action
type TransitionInput struct {
	Notes       string
	ScheduledAt time.Time
	// Draft is unsaved editor content submitted together with the request
	Draft *DraftInput
}

// TransitionResult is the committed outcome of a workflow action
type TransitionResult struct {
	Request      *domain.ContentRequest   `json:"request"`
	Action       workflow.Action          `json:"action"`
	From         domain.ContentStatus     `json:"from"`
	Review       *domain.ComplianceReview `json:"review,omitempty"`
	SavedVersion *domain.ContentVersion   `json:"saved_version,omitempty"`
	Receipt      *publisher.Receipt       `json:"receipt,omitempty"`
}

// WorkflowService executes review state machine actions. Every action is
// one transaction: the draft save, status change, review row and publish
// side effect commit together or not at all.
type WorkflowService interface {
	Execute(ctx context.Context, actor domain.Actor, id string, action workflow.Action, in TransitionInput) (*TransitionResult, error)
	Submit(ctx context.Context, actor domain.Actor, id string, draft *DraftInput) (*TransitionResult, error)
	Review(ctx context.Context, actor domain.Actor, id string, decision domain.ReviewDecision, notes string) (*TransitionResult, error)
	Schedule(ctx context.Context, actor domain.Actor, id string, at time.Time) (*TransitionResult, error)
	Publish(ctx context.Context, actor domain.Actor, id string) (*TransitionResult, error)
	// PublishDue publishes scheduled requests whose time has come
	PublishDue(ctx context.Context, limit int) (int, error)
	AllowedActions(ctx context.Context, actor domain.Actor, id string) ([]workflow.Action, error)
}

type workflowService struct {
	Deps
	publisher publisher.Publisher
}

// NewWorkflowService creates a WorkflowService. A nil publisher only logs publications.
func NewWorkflowService(d Deps, p publisher.Publisher) WorkflowService {
	if p == nil {
		p = publisher.Noop{}
	}
	return &workflowService{Deps: d, publisher: p}
}

func (s *workflowService) Submit(ctx context.Context, actor domain.Actor, id string, draft *DraftInput) (*TransitionResult, error) {
	return s.Execute(ctx, actor, id, workflow.ActionSubmit, TransitionInput{Draft: draft})
}

func (s *workflowService) Review(ctx context.Context, actor domain.Actor, id string, decision domain.ReviewDecision, notes string) (*TransitionResult, error) {
	action, ok := workflow.ActionForDecision(decision)
	if !ok {
		return nil, fmt.Errorf("%w: unknown decision %q", common.ErrInvalidInput, decision)
	}
	return s.Execute(ctx, actor, id, action, TransitionInput{Notes: notes})
}

func (s *workflowService) Schedule(ctx context.Context, actor domain.Actor, id string, at time.Time) (*TransitionResult, error) {
	return s.Execute(ctx, actor, id, workflow.ActionSchedule, TransitionInput{ScheduledAt: at})
}

func (s *workflowService) Publish(ctx context.Context, actor domain.Actor, id string) (*TransitionResult, error) {
	return s.Execute(ctx, actor, id, workflow.ActionPublish, TransitionInput{})
}

func (s *workflowService) Execute(ctx context.Context, actor domain.Actor, id string, action workflow.Action, in TransitionInput) (*TransitionResult, error) {
	if action == workflow.ActionEdit {
		return nil, fmt.Errorf("%w: edit is not a status transition", common.ErrInvalidInput)
	}
	if in.Draft != nil {
		if err := validateInput(*in.Draft); err != nil {
			return nil, err
		}
	}

	unlock, err := s.lockRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var res *TransitionResult
	err = retryOnConflict(string(action), id, func() error {
		var err error
		res, err = s.execute(ctx, actor, id, action, in)
		return err
	})
	transitionsTotal.WithLabelValues(string(action), outcome(err)).Inc()
	if err != nil {
		pkglogger.ForContent(id).Info().Err(err).Str("action", string(action)).Str("actor_id", actor.ID).Msg("workflow action refused")
		return nil, err
	}

	s.afterCommit(ctx, actor, res)
	return res, nil
}

func (s *workflowService) execute(ctx context.Context, actor domain.Actor, id string, action workflow.Action, in TransitionInput) (*TransitionResult, error) {
	res := &TransitionResult{}
	err := s.Store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests.FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		out, err := workflow.Decide(action, workflow.SubjectOf(req), actor, s.Policy, workflow.Params{
			Notes:       in.Notes,
			ScheduledAt: in.ScheduledAt,
			Now:         now,
		})
		if err != nil {
			return err
		}
		res.Action, res.From = out.Action, out.From

		if out.SaveDraftFirst && in.Draft != nil {
			cur, err := tx.Versions.FindByID(ctx, *req.CurrentVersionID)
			if err != nil {
				return err
			}
			if !sameContent(cur, in.Draft.Title, in.Draft.Body, in.Draft.Disclaimers) {
				res.SavedVersion, err = appendVersion(ctx, tx, req, NewVersion{
					RequestID:   id,
					GeneratedBy: domain.GeneratorHuman,
					Title:       in.Draft.Title,
					Body:        in.Draft.Body,
					Disclaimers: in.Draft.Disclaimers,
				}, now)
				if err != nil {
					return err
				}
			}
		}

		if out.StatusChanged() {
			change := repository.StatusChange{IncrementCycle: out.IncrementCycle, ScheduledAt: out.ScheduledAt, At: now}
			if out.To == domain.StatusPosted {
				change.PostedAt = &now
			}
			if err := tx.UpdateRequestStatus(ctx, id, out.From, out.To, change); err != nil {
				return err
			}
		}

		if out.Review != nil {
			res.Review = &domain.ComplianceReview{
				ID:         uuid.NewString(),
				RequestID:  id,
				VersionID:  req.CurrentVersionID,
				ReviewerID: actor.ID,
				Decision:   *out.Review,
				Notes:      out.Notes,
				CreatedAt:  now,
			}
			if err := tx.InsertReview(ctx, res.Review); err != nil {
				return err
			}
		}

		if out.Publish {
			cur, err := tx.Versions.FindByID(ctx, *req.CurrentVersionID)
			if err != nil {
				return err
			}
			if res.Receipt, err = s.publisher.Publish(ctx, publisher.Item{Request: req, Version: cur, At: now}); err != nil {
				return fmt.Errorf("publish content %s: %w", id, err)
			}
		}

		res.Request, err = tx.Requests.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *workflowService) afterCommit(ctx context.Context, actor domain.Actor, res *TransitionResult) {
	req := res.Request
	pkglogger.ForContent(req.ID).Info().
		Str("action", string(res.Action)).
		Str("from", string(res.From)).
		Str("to", string(req.Status)).
		Str("actor_id", actor.ID).
		Int("revision_cycle", req.RevisionCycle).
		Msg("workflow transition")

	if res.SavedVersion != nil {
		versionsCreated.WithLabelValues(string(domain.GeneratorHuman)).Inc()
		s.emitVersion(req, res.SavedVersion)
	}
	if res.From != req.Status {
		s.emit(event.TopicStatusChanged, req, map[string]interface{}{
			"action":         res.Action,
			"from":           res.From,
			"to":             req.Status,
			"actor_id":       actor.ID,
			"revision_cycle": req.RevisionCycle,
		})
	}
	if res.Review != nil {
		s.emit(event.TopicReviewRecorded, req, map[string]interface{}{
			"review_id":   res.Review.ID,
			"decision":    res.Review.Decision,
			"notes":       res.Review.Notes,
			"reviewer_id": res.Review.ReviewerID,
		})
	}
	s.invalidate(ctx, req.OrgID)
}

func (s *workflowService) PublishDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	due, err := s.Store.Requests.FindDueScheduled(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	published := 0
	var errs []error
	for _, req := range due {
		_, err := s.Execute(ctx, domain.SystemActor(req.OrgID), req.ID, workflow.ActionPublish, TransitionInput{})
		switch {
		case err == nil:
			published++
		case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrVersionConflict):
			// already handled elsewhere
		default:
			errs = append(errs, fmt.Errorf("publish %s: %w", req.ID, err))
		}
	}
	return published, errors.Join(errs...)
}

func (s *workflowService) AllowedActions(ctx context.Context, actor domain.Actor, id string) ([]workflow.Action, error) {
	req, err := s.Store.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, req); err != nil {
		return nil, err
	}
	return workflow.Allowed(workflow.SubjectOf(req), actor, s.Policy), nil
}
