package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/event"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/rewrite"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	"github.com/JxWayne890/complyflow-financial/pkg/cache"
	"github.com/JxWayne890/complyflow-financial/pkg/lock"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Deps is the infrastructure shared by the content services
type Deps struct {
	Store  *repository.Store
	Locker lock.Locker
	Bus    *event.Bus
	Cache  cache.Service
	Policy workflow.Policy
	// Now defaults to time.Now in UTC
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// lockRequest serializes writers of one content request
func (d Deps) lockRequest(ctx context.Context, requestID string) (func(), error) {
	if d.Locker == nil {
		return func() {}, nil
	}
	unlock, err := d.Locker.Lock(ctx, "content:"+requestID)
	if err != nil {
		return nil, fmt.Errorf("lock content %s: %w", requestID, err)
	}
	return unlock, nil
}

// invalidate drops the cached counters and queue of an organization
func (d Deps) invalidate(ctx context.Context, orgID string) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.InvalidateStatusCounts(ctx, orgID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("org_id", orgID).Msg("invalidate status counts")
	}
	if err := d.Cache.InvalidateQueue(ctx, orgID); err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("org_id", orgID).Msg("invalidate review queue")
	}
}

func (d Deps) emit(topic string, req *domain.ContentRequest, payload map[string]interface{}) {
	d.Bus.Publish(event.Event{
		Topic:     topic,
		RequestID: req.ID,
		OrgID:     req.OrgID,
		Payload:   payload,
		Timestamp: d.now(),
	})
}

func (d Deps) emitVersion(req *domain.ContentRequest, v *domain.ContentVersion) {
	d.emit(event.TopicVersionCreated, req, map[string]interface{}{
		"version_id":     v.ID,
		"version_number": v.VersionNumber,
		"generated_by":   v.GeneratedBy,
	})
}

// retryOnConflict runs fn and, when it reports a version conflict, runs it
// exactly once more
func retryOnConflict(op, requestID string, fn func() error) error {
	err := fn()
	if !errors.Is(err, common.ErrVersionConflict) || errors.Is(err, errStaleBase) {
		return err
	}
	versionConflicts.Inc()
	pkglogger.GetLogger().Warn().
		Str("op", op).
		Str("content_request_id", requestID).
		Msg("version conflict, retrying once")
	return fn()
}

// NewVersion describes a version to append
type NewVersion struct {
	RequestID       string           `validate:"required"`
	GeneratedBy     domain.Generator `validate:"required,oneof=ai human"`
	Title           string           `validate:"max=500"`
	Body            string
	Disclaimers     string
	ComplianceNotes string
}

// appendVersion numbers, inserts and points the request at a new version.
// It must run inside tx; req is updated in place.
func appendVersion(ctx context.Context, tx *repository.Store, req *domain.ContentRequest, nv NewVersion, at time.Time) (*domain.ContentVersion, error) {
	n, err := tx.Versions.NextNumber(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	v := &domain.ContentVersion{
		ID:              uuid.NewString(),
		RequestID:       req.ID,
		VersionNumber:   n,
		GeneratedBy:     nv.GeneratedBy,
		Title:           strings.TrimSpace(nv.Title),
		Body:            rewrite.StripHighlights(nv.Body),
		Disclaimers:     nv.Disclaimers,
		ComplianceNotes: nv.ComplianceNotes,
		CreatedAt:       at,
	}
	if err := tx.InsertVersion(ctx, v); err != nil {
		return nil, err
	}
	if err := tx.UpdateRequestCurrentVersion(ctx, req.ID, v.ID, at); err != nil {
		return nil, err
	}
	req.CurrentVersionID = &v.ID
	req.UpdatedAt = at
	return v, nil
}

// errStaleBase reports that another writer moved the current version while
// an edit computed from the previous one was in flight
var errStaleBase = fmt.Errorf("%w: content changed while the edit was in progress", common.ErrVersionConflict)

// appendOnBase appends nv inside tx only if req is still editable by actor
// and its current version is still baseID. req is updated in place.
func (d Deps) appendOnBase(ctx context.Context, tx *repository.Store, actor domain.Actor, req *domain.ContentRequest, baseID *string, nv NewVersion) (*domain.ContentVersion, error) {
	fresh, err := tx.Requests.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Decide(workflow.ActionEdit, workflow.SubjectOf(fresh), actor, d.Policy, workflow.Params{}); err != nil {
		return nil, err
	}
	if !sameID(fresh.CurrentVersionID, baseID) {
		return nil, errStaleBase
	}
	req.Status = fresh.Status
	return appendVersion(ctx, tx, req, nv, d.now())
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// sameContent reports whether a pending draft matches a stored version
func sameContent(v *domain.ContentVersion, title, body, disclaimers string) bool {
	return v.Title == strings.TrimSpace(title) &&
		v.Body == rewrite.StripHighlights(body) &&
		v.Disclaimers == disclaimers
}

var validate = validator.New()

// validateInput runs struct validation and reports failures as ErrInvalidInput
func validateInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
}

// authorizeRead checks that actor may see req
func authorizeRead(actor domain.Actor, req *domain.ContentRequest) error {
	if actor.ID == "" {
		return common.ErrUnauthorized
	}
	if actor.OrgID != req.OrgID {
		return fmt.Errorf("%w: content belongs to another organization", common.ErrForbidden)
	}
	if actor.Role == domain.RoleAdvisor && req.AdvisorID != actor.ID {
		return fmt.Errorf("%w: content belongs to another advisor", common.ErrForbidden)
	}
	return nil
}
