package service

import (
	"context"
	"strings"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/event"
	"github.com/JxWayne890/complyflow-financial/internal/generation"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/google/uuid"
)

// GenerateInput asks for a new AI draft. Without RequestID a new request
// is created from the topic fields; with it, non-empty fields override the
// stored ones and are saved with the draft.
type GenerateInput struct {
	RequestID    string             `json:"request_id,omitempty"`
	TopicText    string             `json:"topic_text" validate:"max=500"`
	ContentType  domain.ContentType `json:"content_type" validate:"omitempty,oneof=blog linkedin facebook ad video_script"`
	Instructions string             `json:"instructions" validate:"max=5000"`
	ClientID     *string            `json:"client_id,omitempty" validate:"omitempty,uuid"`
	Length       string             `json:"length"`
	Mode         generation.Mode    `json:"mode"`
}

// GenerationResult is the persisted draft
type GenerationResult struct {
	Request *domain.ContentRequest `json:"request"`
	Version *domain.ContentVersion `json:"version"`
}

// TopicsInput lists extra topics a suggestion must not repeat, on top of
// the organization's own
type TopicsInput struct {
	Exclude []string `form:"exclude" validate:"max=200,dive,max=500"`
}

// GenerationService turns briefs into AI versions
type GenerationService interface {
	Generate(ctx context.Context, actor domain.Actor, in GenerateInput) (*GenerationResult, error)
	SuggestTopics(ctx context.Context, actor domain.Actor, in TopicsInput) ([]domain.TopicSuggestion, error)
}

// recentTopicLimit bounds how many stored topics go into a suggestion prompt
const recentTopicLimit = 100

type generationService struct {
	Deps
	orch *generation.Orchestrator
}

// NewGenerationService creates a GenerationService
func NewGenerationService(d Deps, orch *generation.Orchestrator) GenerationService {
	return &generationService{Deps: d, orch: orch}
}

func briefOf(req *domain.ContentRequest, length string, mode generation.Mode) generation.Brief {
	return generation.Brief{
		Topic:        req.TopicText,
		ContentType:  req.ContentType,
		Instructions: req.Instructions,
		Length:       generation.ParseLengthClass(length),
		Mode:         mode,
	}
}

// tracked runs fn while a progress tracker reports phases for req. Real
// completion jumps the tracker to its terminal step.
func (d Deps) tracked(req *domain.ContentRequest, action domain.GenerationAction, phases []generation.Phase, fn func() error) error {
	notify := func(u generation.Update) {
		d.emit(event.TopicProgress, req, map[string]interface{}{
			"action": action,
			"phase":  u.Phase,
			"index":  u.Index,
			"total":  u.Total,
			"done":   u.Done,
		})
	}
	tr := generation.StartTracker(phases, notify)
	start := time.Now()
	err := fn()
	generationDuration.WithLabelValues(string(action), outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		tr.Stop()
		pkglogger.ForContent(req.ID).Warn().Err(err).Str("action", string(action)).Msg("generation failed")
		return err
	}
	tr.Complete()
	return nil
}

func (s *generationService) Generate(ctx context.Context, actor domain.Actor, in GenerateInput) (*GenerationResult, error) {
	in.TopicText = strings.TrimSpace(in.TopicText)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.RequestID == "" {
		return s.generateNew(ctx, actor, in)
	}
	return s.regenerate(ctx, actor, in)
}

func (s *generationService) generateNew(ctx context.Context, actor domain.Actor, in GenerateInput) (*GenerationResult, error) {
	if err := canAuthor(actor); err != nil {
		return nil, err
	}
	create := CreateContentInput{TopicText: in.TopicText, ContentType: in.ContentType, Instructions: in.Instructions, ClientID: in.ClientID}
	if err := validateInput(create); err != nil {
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

	var draft generation.Result
	err := s.tracked(req, domain.ActionGenerate, generation.GenerationPhases, func() error {
		var err error
		draft, err = s.orch.Compose(ctx, briefOf(req, in.Length, in.Mode))
		return err
	})
	if err != nil {
		return nil, err
	}

	// the caller may be gone by now; the request and its first version
	// are written together regardless
	persistCtx := context.WithoutCancel(ctx)
	var v *domain.ContentVersion
	err = s.Store.Transaction(persistCtx, func(tx *repository.Store) error {
		if err := tx.Requests.Create(persistCtx, req); err != nil {
			return err
		}
		var err error
		v, err = appendVersion(persistCtx, tx, req, aiVersion(req.ID, draft), s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.generated(persistCtx, req, v)
	return &GenerationResult{Request: req, Version: v}, nil
}

func (s *generationService) regenerate(ctx context.Context, actor domain.Actor, in GenerateInput) (*GenerationResult, error) {
	unlock, err := s.lockRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := s.Store.Requests.FindByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Decide(workflow.ActionEdit, workflow.SubjectOf(req), actor, s.Policy, workflow.Params{}); err != nil {
		return nil, err
	}
	base := req.CurrentVersionID

	fields := map[string]interface{}{}
	if in.TopicText != "" && in.TopicText != req.TopicText {
		req.TopicText = in.TopicText
		fields["topic_text"] = in.TopicText
	}
	if in.ContentType != "" && in.ContentType != req.ContentType {
		req.ContentType = in.ContentType
		fields["content_type"] = in.ContentType
	}
	if in.Instructions != "" && in.Instructions != req.Instructions {
		req.Instructions = in.Instructions
		fields["instructions"] = in.Instructions
	}

	var draft generation.Result
	err = s.tracked(req, domain.ActionGenerate, generation.GenerationPhases, func() error {
		var err error
		draft, err = s.orch.Compose(ctx, briefOf(req, in.Length, in.Mode))
		return err
	})
	if err != nil {
		return nil, err
	}

	persistCtx := context.WithoutCancel(ctx)
	var v *domain.ContentVersion
	err = retryOnConflict("generate", req.ID, func() error {
		return s.Store.Transaction(persistCtx, func(tx *repository.Store) error {
			if len(fields) > 0 {
				fields["updated_at"] = s.now()
				if err := tx.Requests.UpdateFields(persistCtx, req.ID, fields); err != nil {
					return err
				}
			}
			var err error
			v, err = s.appendOnBase(persistCtx, tx, actor, req, base, aiVersion(req.ID, draft))
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.generated(persistCtx, req, v)
	return &GenerationResult{Request: req, Version: v}, nil
}

func aiVersion(requestID string, r generation.Result) NewVersion {
	return NewVersion{
		RequestID:   requestID,
		GeneratedBy: domain.GeneratorAI,
		Title:       r.Title,
		Body:        r.Body,
		Disclaimers: r.Disclaimers,
	}
}

func (s *generationService) generated(ctx context.Context, req *domain.ContentRequest, v *domain.ContentVersion) {
	versionsCreated.WithLabelValues(string(domain.GeneratorAI)).Inc()
	pkglogger.ForContent(req.ID).Info().
		Int("version_number", v.VersionNumber).
		Str("status", string(req.Status)).
		Msg("draft generated")
	s.emitVersion(req, v)
	s.invalidate(ctx, req.OrgID)
}

func (s *generationService) SuggestTopics(ctx context.Context, actor domain.Actor, in TopicsInput) ([]domain.TopicSuggestion, error) {
	if err := canAuthor(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	existing, err := s.Store.Requests.RecentTopics(ctx, actor.OrgID, recentTopicLimit)
	if err != nil {
		return nil, err
	}
	for _, t := range in.Exclude {
		if t = strings.TrimSpace(t); t != "" {
			existing = append(existing, t)
		}
	}

	start := time.Now()
	topics, err := s.orch.SuggestTopics(ctx, existing)
	generationDuration.WithLabelValues(string(domain.ActionTopics), outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("org_id", actor.OrgID).Msg("topic suggestion failed")
		return nil, err
	}
	pkglogger.GetLogger().Info().
		Str("org_id", actor.OrgID).
		Int("excluded", len(existing)).
		Int("suggested", len(topics)).
		Msg("topics suggested")
	return topics, nil
}
