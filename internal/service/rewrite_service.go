package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/generation"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/rewrite"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
)

// RewriteInput is one selection rewrite
type RewriteInput struct {
	Selection      rewrite.Selection  `json:"selection"`
	Mode           domain.RewriteMode `json:"mode"`
	ComplianceNote string             `json:"compliance_note,omitempty"`
}

// ExtendInput is one whole-document extension
type ExtendInput struct {
	Length string `json:"length"`
}

// RewriteResult is the persisted version plus its transient overlay
type RewriteResult struct {
	Version   *domain.ContentVersion `json:"version"`
	Highlight rewrite.Highlight      `json:"highlight"`
	Span      *rewrite.Span          `json:"span,omitempty"`
}

// RewriteOptions tunes the selection engine
type RewriteOptions struct {
	MinSelectionChars int
	HighlightDuration time.Duration
}

// RewriteService applies AI edits to existing drafts
type RewriteService interface {
	RewriteSelection(ctx context.Context, actor domain.Actor, id string, in RewriteInput) (*RewriteResult, error)
	Extend(ctx context.Context, actor domain.Actor, id string, in ExtendInput) (*RewriteResult, error)
}

type rewriteService struct {
	Deps
	orch *generation.Orchestrator
	opts RewriteOptions
}

// NewRewriteService creates a RewriteService
func NewRewriteService(d Deps, orch *generation.Orchestrator, opts RewriteOptions) RewriteService {
	if opts.MinSelectionChars <= 0 {
		opts.MinSelectionChars = rewrite.DefaultMinSelectionChars
	}
	if opts.HighlightDuration <= 0 {
		opts.HighlightDuration = rewrite.DefaultHighlightDuration
	}
	return &rewriteService{Deps: d, orch: orch, opts: opts}
}

// editable loads the request and its current version for an AI edit
func (s *rewriteService) editable(ctx context.Context, actor domain.Actor, id string) (*domain.ContentRequest, *domain.ContentVersion, error) {
	req, err := s.Store.Requests.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if _, err := workflow.Decide(workflow.ActionEdit, workflow.SubjectOf(req), actor, s.Policy, workflow.Params{}); err != nil {
		return nil, nil, err
	}
	if req.CurrentVersionID == nil {
		return nil, nil, common.ErrNoCurrentVersion
	}
	cur, err := s.Store.Versions.FindByID(ctx, *req.CurrentVersionID)
	if err != nil {
		return nil, nil, err
	}
	return req, cur, nil
}

func (s *rewriteService) RewriteSelection(ctx context.Context, actor domain.Actor, id string, in RewriteInput) (*RewriteResult, error) {
	if !in.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown rewrite mode %q", common.ErrInvalidInput, in.Mode)
	}
	note := strings.TrimSpace(in.ComplianceNote)
	if !in.Mode.NeedsNote() {
		note = ""
	} else if note == "" {
		return nil, common.ErrComplianceNoteRequired
	}

	unlock, err := s.lockRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, cur, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	doc := rewrite.ParseDocument(cur.Body)
	span, err := doc.Resolve(in.Selection, s.opts.MinSelectionChars)
	if err != nil {
		return nil, err
	}

	var replacement string
	err = s.tracked(req, domain.ActionRewrite, nil, func() error {
		var err error
		replacement, err = s.orch.Rewrite(ctx, briefOf(req, "", generation.ModeText), doc.Passage(span), in.Mode, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	applied, err := doc.Apply(span, replacement)
	if err != nil {
		return nil, err
	}

	onto := func(base *domain.ContentVersion, body string) NewVersion {
		return NewVersion{
			RequestID:       id,
			GeneratedBy:     domain.GeneratorAI,
			Title:           base.Title,
			Body:            body,
			Disclaimers:     base.Disclaimers,
			ComplianceNotes: note,
		}
	}
	v, err := s.persist(ctx, actor, req, cur.ID, onto(cur, applied.Body))
	if errors.Is(err, errStaleBase) {
		passage := doc.Passage(span)
		if req, cur, applied, err = s.rebase(ctx, actor, id, in.Selection, passage, replacement); err != nil {
			return nil, err
		}
		pkglogger.ForContent(id).Info().Str("span", applied.Span.String()).Msg("rewrite rebased onto newer version")
		v, err = s.persist(ctx, actor, req, cur.ID, onto(cur, applied.Body))
	}
	if err != nil {
		return nil, err
	}
	span = applied.Span
	pkglogger.ForContent(id).Info().
		Str("mode", string(in.Mode)).
		Str("span", span.String()).
		Int("version_number", v.VersionNumber).
		Msg("selection rewritten")

	return &RewriteResult{
		Version:   v,
		Highlight: rewrite.NewHighlight(applied.Highlighted, s.now(), s.opts.HighlightDuration),
		Span:      &span,
	}, nil
}

// rebase reapplies a generated replacement to the request's new current
// version. The selected passage must still read exactly as it did when the
// replacement was generated.
func (s *rewriteService) rebase(ctx context.Context, actor domain.Actor, id string, sel rewrite.Selection, passage, replacement string) (*domain.ContentRequest, *domain.ContentVersion, rewrite.Result, error) {
	req, cur, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, nil, rewrite.Result{}, err
	}
	doc := rewrite.ParseDocument(cur.Body)
	span, err := doc.Resolve(sel, s.opts.MinSelectionChars)
	if err != nil && (sel.Start != nil || sel.End != nil) {
		// offsets point into the old text
		span, err = doc.Resolve(rewrite.Selection{Text: sel.Text}, s.opts.MinSelectionChars)
	}
	if err != nil || doc.Passage(span) != passage {
		return nil, nil, rewrite.Result{}, errStaleBase
	}
	applied, err := doc.Apply(span, replacement)
	if err != nil {
		return nil, nil, rewrite.Result{}, err
	}
	return req, cur, applied, nil
}

func (s *rewriteService) Extend(ctx context.Context, actor domain.Actor, id string, in ExtendInput) (*RewriteResult, error) {
	unlock, err := s.lockRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, cur, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var extended generation.Result
	err = s.tracked(req, domain.ActionExtend, generation.ExtensionPhases, func() error {
		var err error
		extended, err = s.orch.Extend(ctx, briefOf(req, in.Length, generation.ModeText), rewrite.PlainText(cur.Body))
		return err
	})
	if err != nil {
		return nil, err
	}

	title := cur.Title
	if strings.TrimSpace(title) == "" {
		title = extended.Title
	}
	disclaimers := cur.Disclaimers
	if strings.TrimSpace(disclaimers) == "" {
		disclaimers = extended.Disclaimers
	}
	v, err := s.persist(ctx, actor, req, cur.ID, NewVersion{
		RequestID:   id,
		GeneratedBy: domain.GeneratorAI,
		Title:       title,
		Body:        extended.Body,
		Disclaimers: disclaimers,
	})
	if err != nil {
		return nil, err
	}
	pkglogger.ForContent(id).Info().Int("version_number", v.VersionNumber).Msg("draft extended")

	return &RewriteResult{
		Version:   v,
		Highlight: rewrite.NewHighlight(rewrite.ExtendHighlights(cur.Body, v.Body), s.now(), s.opts.HighlightDuration),
	}, nil
}

// persist appends nv on top of baseID without regard to the caller's
// cancellation. It fails with errStaleBase once baseID is no longer current.
func (s *rewriteService) persist(ctx context.Context, actor domain.Actor, req *domain.ContentRequest, baseID string, nv NewVersion) (*domain.ContentVersion, error) {
	persistCtx := context.WithoutCancel(ctx)
	var v *domain.ContentVersion
	err := retryOnConflict("rewrite", req.ID, func() error {
		return s.Store.Transaction(persistCtx, func(tx *repository.Store) error {
			var err error
			v, err = s.appendOnBase(persistCtx, tx, actor, req, &baseID, nv)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	versionsCreated.WithLabelValues(string(v.GeneratedBy)).Inc()
	s.emitVersion(req, v)
	s.invalidate(persistCtx, req.OrgID)
	return v, nil
}
