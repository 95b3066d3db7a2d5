package service

import (
	"context"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
)

// VersionService is the append-only version ledger of content requests
type VersionService interface {
	// CreateVersion appends a version and moves the current pointer to it
	CreateVersion(ctx context.Context, in NewVersion) (*domain.ContentVersion, error)
	// GetCurrentVersion follows the request's pointer; nil when no version exists
	GetCurrentVersion(ctx context.Context, requestID string) (*domain.ContentVersion, error)
	// ListVersions returns every version, oldest first
	ListVersions(ctx context.Context, requestID string) ([]domain.ContentVersion, error)
	// GetLatestVersion recomputes the current version from the highest number
	GetLatestVersion(ctx context.Context, requestID string) (*domain.ContentVersion, error)
	CheckConsistency(ctx context.Context, requestID string) (*Consistency, error)
}

// Consistency compares the current-version pointer with the ledger
type Consistency struct {
	RequestID        string  `json:"request_id"`
	CurrentVersionID *string `json:"current_version_id,omitempty"`
	CurrentNumber    int     `json:"current_number"`
	LatestNumber     int     `json:"latest_number"`
	Count            int     `json:"count"`
	Gapless          bool    `json:"gapless"`
	Consistent       bool    `json:"consistent"`
}

type versionService struct {
	Deps
}

// NewVersionService creates a VersionService
func NewVersionService(d Deps) VersionService {
	return &versionService{Deps: d}
}

func (s *versionService) CreateVersion(ctx context.Context, in NewVersion) (*domain.ContentVersion, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	unlock, err := s.lockRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		req *domain.ContentRequest
		v   *domain.ContentVersion
	)
	err = retryOnConflict("create_version", in.RequestID, func() error {
		return s.Store.Transaction(ctx, func(tx *repository.Store) error {
			var err error
			if req, err = tx.Requests.FindByID(ctx, in.RequestID); err != nil {
				return err
			}
			v, err = appendVersion(ctx, tx, req, in, s.now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	versionsCreated.WithLabelValues(string(v.GeneratedBy)).Inc()
	pkglogger.ForContent(req.ID).Info().
		Int("version_number", v.VersionNumber).
		Str("generated_by", string(v.GeneratedBy)).
		Msg("version created")
	s.emitVersion(req, v)
	return v, nil
}

func (s *versionService) GetCurrentVersion(ctx context.Context, requestID string) (*domain.ContentVersion, error) {
	req, err := s.Store.Requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CurrentVersionID == nil {
		return nil, nil
	}
	return s.Store.Versions.FindByID(ctx, *req.CurrentVersionID)
}

func (s *versionService) ListVersions(ctx context.Context, requestID string) ([]domain.ContentVersion, error) {
	if _, err := s.Store.Requests.FindByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.Store.Versions.FindByRequestID(ctx, requestID)
}

func (s *versionService) GetLatestVersion(ctx context.Context, requestID string) (*domain.ContentVersion, error) {
	if _, err := s.Store.Requests.FindByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.Store.Versions.FindLatest(ctx, requestID)
}

func (s *versionService) CheckConsistency(ctx context.Context, requestID string) (*Consistency, error) {
	req, err := s.Store.Requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	versions, err := s.Store.Versions.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	c := &Consistency{RequestID: requestID, CurrentVersionID: req.CurrentVersionID, Count: len(versions), Gapless: true}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			c.Gapless = false
		}
		if req.CurrentVersionID != nil && v.ID == *req.CurrentVersionID {
			c.CurrentNumber = v.VersionNumber
		}
	}
	if len(versions) > 0 {
		c.LatestNumber = versions[len(versions)-1].VersionNumber
	}
	pointerOK := (req.CurrentVersionID == nil && len(versions) == 0) ||
		(c.CurrentNumber > 0 && c.CurrentNumber == c.LatestNumber)
	c.Consistent = c.Gapless && pointerOK
	return c, nil
}
