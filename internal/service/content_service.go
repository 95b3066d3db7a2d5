package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/google/uuid"
)

// CreateContentInput starts a new content request
type CreateContentInput struct {
	TopicText    string             `json:"topic_text" validate:"required,max=500"`
	ContentType  domain.ContentType `json:"content_type" validate:"required,oneof=blog linkedin facebook ad video_script"`
	Instructions string             `json:"instructions" validate:"max=5000"`
	ClientID     *string            `json:"client_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateContentInput changes request fields; nil leaves a field alone
type UpdateContentInput struct {
	TopicText    *string             `json:"topic_text,omitempty" validate:"omitempty,min=1,max=500"`
	ContentType  *domain.ContentType `json:"content_type,omitempty" validate:"omitempty,oneof=blog linkedin facebook ad video_script"`
	Instructions *string             `json:"instructions,omitempty" validate:"omitempty,max=5000"`
	ClientID     *string             `json:"client_id,omitempty" validate:"omitempty,uuid"`
}

// DraftInput is the editor content as the advisor last saw it
type DraftInput struct {
	Title       string `json:"title" validate:"max=500"`
	Body        string `json:"body" validate:"required"`
	Disclaimers string `json:"disclaimers"`
}

// ContentService manages content requests around the engine
type ContentService interface {
	Create(ctx context.Context, actor domain.Actor, in CreateContentInput) (*domain.ContentRequest, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.ContentDetail, error)
	UpdateFields(ctx context.Context, actor domain.Actor, id string, in UpdateContentInput) (*domain.ContentRequest, error)
	// SaveDraft stores the editor content as a human version. Saving content
	// identical to the current version returns it without writing.
	SaveDraft(ctx context.Context, actor domain.Actor, id string, in DraftInput) (*domain.ContentVersion, bool, error)
	List(ctx context.Context, actor domain.Actor, f domain.ListFilter) ([]domain.ContentRequest, int64, error)
	StatusCounts(ctx context.Context, actor domain.Actor) (domain.StatusCounts, error)
	ReviewQueue(ctx context.Context, actor domain.Actor) ([]domain.ContentRequest, error)
	ListReviews(ctx context.Context, actor domain.Actor, id string) ([]domain.ComplianceReview, error)
}

type contentService struct {
	Deps
}

// NewContentService creates a ContentService
func NewContentService(d Deps) ContentService {
	return &contentService{Deps: d}
}

func canAuthor(actor domain.Actor) error {
	if actor.ID == "" {
		return common.ErrUnauthorized
	}
	if actor.Role != domain.RoleAdvisor && actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: only advisors create content", common.ErrForbidden)
	}
	return nil
}

func (s *contentService) Create(ctx context.Context, actor domain.Actor, in CreateContentInput) (*domain.ContentRequest, error) {
	if err := canAuthor(actor); err != nil {
		return nil, err
	}
	in.TopicText = strings.TrimSpace(in.TopicText)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	req := &domain.ContentRequest{
		ID:           uuid.NewString(),
		OrgID:        actor.OrgID,
		AdvisorID:    actor.ID,
		ClientID:     in.ClientID,
		TopicText:    in.TopicText,
		ContentType:  in.ContentType,
		Instructions: in.Instructions,
		Status:       domain.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.OrgID)
	pkglogger.ForContent(req.ID).Info().Str("advisor_id", actor.ID).Msg("content request created")
	return req, nil
}

func (s *contentService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.ContentDetail, error) {
	req, err := s.Store.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, req); err != nil {
		return nil, err
	}
	detail := &domain.ContentDetail{Request: req}
	if req.CurrentVersionID != nil {
		if detail.Current, err = s.Store.Versions.FindByID(ctx, *req.CurrentVersionID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func (s *contentService) UpdateFields(ctx context.Context, actor domain.Actor, id string, in UpdateContentInput) (*domain.ContentRequest, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if in.TopicText != nil {
		topic := strings.TrimSpace(*in.TopicText)
		if topic == "" {
			return nil, fmt.Errorf("%w: topic_text must not be empty", common.ErrInvalidInput)
		}
		fields["topic_text"] = topic
	}
	if in.ContentType != nil {
		fields["content_type"] = *in.ContentType
	}
	if in.Instructions != nil {
		fields["instructions"] = *in.Instructions
	}
	if in.ClientID != nil {
		fields["client_id"] = *in.ClientID
	}

	unlock, err := s.lockRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var req *domain.ContentRequest
	err = s.Store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if req, err = tx.Requests.FindByID(ctx, id); err != nil {
			return err
		}
		if _, err := workflow.Decide(workflow.ActionEdit, workflow.SubjectOf(req), actor, s.Policy, workflow.Params{}); err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		fields["updated_at"] = s.now()
		if err := tx.Requests.UpdateFields(ctx, id, fields); err != nil {
			return err
		}
		req, err = tx.Requests.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *contentService) SaveDraft(ctx context.Context, actor domain.Actor, id string, in DraftInput) (*domain.ContentVersion, bool, error) {
	if err := validateInput(in); err != nil {
		return nil, false, err
	}
	unlock, err := s.lockRequest(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		req     *domain.ContentRequest
		v       *domain.ContentVersion
		created bool
	)
	err = retryOnConflict("save_draft", id, func() error {
		created = false
		return s.Store.Transaction(ctx, func(tx *repository.Store) error {
			var err error
			if req, err = tx.Requests.FindByID(ctx, id); err != nil {
				return err
			}
			if _, err := workflow.Decide(workflow.ActionEdit, workflow.SubjectOf(req), actor, s.Policy, workflow.Params{}); err != nil {
				return err
			}
			if req.CurrentVersionID != nil {
				cur, err := tx.Versions.FindByID(ctx, *req.CurrentVersionID)
				if err != nil {
					return err
				}
				if sameContent(cur, in.Title, in.Body, in.Disclaimers) {
					v = cur
					return nil
				}
			}
			v, err = appendVersion(ctx, tx, req, NewVersion{
				RequestID:   id,
				GeneratedBy: domain.GeneratorHuman,
				Title:       in.Title,
				Body:        in.Body,
				Disclaimers: in.Disclaimers,
			}, s.now())
			created = err == nil
			return err
		})
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		versionsCreated.WithLabelValues(string(domain.GeneratorHuman)).Inc()
		pkglogger.ForContent(id).Info().Int("version_number", v.VersionNumber).Msg("draft saved")
		s.emitVersion(req, v)
	}
	return v, created, nil
}

func (s *contentService) List(ctx context.Context, actor domain.Actor, f domain.ListFilter) ([]domain.ContentRequest, int64, error) {
	if actor.ID == "" {
		return nil, 0, common.ErrUnauthorized
	}
	f.OrgID = actor.OrgID
	if actor.Role == domain.RoleAdvisor {
		f.AdvisorID = actor.ID
	}
	return s.Store.Requests.List(ctx, f)
}

func scopeAdvisor(actor domain.Actor) string {
	if actor.Role == domain.RoleAdvisor {
		return actor.ID
	}
	return ""
}

func (s *contentService) StatusCounts(ctx context.Context, actor domain.Actor) (domain.StatusCounts, error) {
	if actor.ID == "" {
		return domain.StatusCounts{}, common.ErrUnauthorized
	}
	advisorID := scopeAdvisor(actor)

	var counts domain.StatusCounts
	if s.Cache != nil {
		if err := s.Cache.GetStatusCounts(ctx, actor.OrgID, advisorID, &counts); err == nil {
			return counts, nil
		}
	}
	counts, err := s.Store.Requests.CountByStatus(ctx, actor.OrgID, advisorID)
	if err != nil {
		return counts, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetStatusCounts(ctx, actor.OrgID, advisorID, counts); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Msg("cache status counts")
		}
	}
	return counts, nil
}

// reviewQueueLimit caps the cached queue
const reviewQueueLimit = 100

func (s *contentService) ReviewQueue(ctx context.Context, actor domain.Actor) ([]domain.ContentRequest, error) {
	if actor.ID == "" {
		return nil, common.ErrUnauthorized
	}
	if !actor.CanReview() {
		return nil, fmt.Errorf("%w: review queue is for compliance", common.ErrForbidden)
	}

	var queue []domain.ContentRequest
	if s.Cache != nil {
		if err := s.Cache.GetQueue(ctx, actor.OrgID, &queue); err == nil {
			return queue, nil
		}
	}
	queue, _, err := s.Store.Requests.List(ctx, domain.ListFilter{
		OrgID:  actor.OrgID,
		Status: domain.StatusInReview,
		Page:   1,
		Limit:  reviewQueueLimit,
	})
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetQueue(ctx, actor.OrgID, queue); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Msg("cache review queue")
		}
	}
	return queue, nil
}

func (s *contentService) ListReviews(ctx context.Context, actor domain.Actor, id string) ([]domain.ComplianceReview, error) {
	req, err := s.Store.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, req); err != nil {
		return nil, err
	}
	return s.Store.Reviews.FindByRequestID(ctx, id)
}
