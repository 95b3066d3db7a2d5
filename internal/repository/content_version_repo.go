package repository

import (
	"context"
	"errors"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"gorm.io/gorm"
)

// VersionRepository content_versions data access. Rows are insert-only.
type VersionRepository interface {
	Insert(ctx context.Context, v *domain.ContentVersion) error
	FindByID(ctx context.Context, id string) (*domain.ContentVersion, error)
	FindByRequestID(ctx context.Context, requestID string) ([]domain.ContentVersion, error)
	FindLatest(ctx context.Context, requestID string) (*domain.ContentVersion, error)
	NextNumber(ctx context.Context, requestID string) (int, error)
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a VersionRepository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

// Insert adds a version. A clash on (request_id, version_number) is
// reported as ErrVersionConflict.
func (r *versionRepository) Insert(ctx context.Context, v *domain.ContentVersion) error {
	err := r.db.WithContext(ctx).Create(v).Error
	if isDuplicate(err) {
		return common.ErrVersionConflict
	}
	return err
}

func (r *versionRepository) FindByID(ctx context.Context, id string) (*domain.ContentVersion, error) {
	var v domain.ContentVersion
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByRequestID lists versions by version_number ascending
func (r *versionRepository) FindByRequestID(ctx context.Context, requestID string) ([]domain.ContentVersion, error) {
	var versions []domain.ContentVersion
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}

// FindLatest returns the highest-numbered version or nil when none exist
func (r *versionRepository) FindLatest(ctx context.Context, requestID string) (*domain.ContentVersion, error) {
	var versions []domain.ContentVersion
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("version_number DESC").
		Limit(1).
		Find(&versions).Error
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	return &versions[0], nil
}

func (r *versionRepository) NextNumber(ctx context.Context, requestID string) (int, error) {
	var maxVersion *int
	err := r.db.WithContext(ctx).Model(&domain.ContentVersion{}).
		Where("request_id = ?", requestID).
		Select("MAX(version_number)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, err
	}
	if maxVersion == nil {
		return 1, nil
	}
	return *maxVersion + 1, nil
}
