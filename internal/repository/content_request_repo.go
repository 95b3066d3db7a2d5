package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"gorm.io/gorm"
)

// StatusChange carries the columns written together with a status update
type StatusChange struct {
	IncrementCycle bool
	ScheduledAt    *time.Time
	PostedAt       *time.Time
	At             time.Time
}

// RequestRepository content_requests data access
type RequestRepository interface {
	Create(ctx context.Context, r *domain.ContentRequest) error
	FindByID(ctx context.Context, id string) (*domain.ContentRequest, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	UpdateCurrentVersion(ctx context.Context, id, versionID string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, from, to domain.ContentStatus, change StatusChange) error
	List(ctx context.Context, f domain.ListFilter) ([]domain.ContentRequest, int64, error)
	CountByStatus(ctx context.Context, orgID, advisorID string) (domain.StatusCounts, error)
	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.ContentRequest, error)
	RecentTopics(ctx context.Context, orgID string, limit int) ([]string, error)
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a RequestRepository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *domain.ContentRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id string) (*domain.ContentRequest, error) {
	var req domain.ContentRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	req.Status = req.Status.Normalize()
	return &req, nil
}

func (r *requestRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.ContentRequest{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrRequestNotFound
	}
	return nil
}

// UpdateCurrentVersion moves the current-version pointer. The version must
// already belong to the request; callers insert it in the same transaction.
func (r *requestRepository) UpdateCurrentVersion(ctx context.Context, id, versionID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.ContentRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"current_version_id": versionID, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrRequestNotFound
	}
	return nil
}

// UpdateStatus is a compare-and-set on status. Zero affected rows means the
// request moved underneath the caller and yields ErrVersionConflict.
func (r *requestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.ContentStatus, change StatusChange) error {
	fromSet := []domain.ContentStatus{from}
	if from == domain.StatusInReview {
		fromSet = append(fromSet, domain.StatusSubmitted)
	}

	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	updates := map[string]interface{}{"status": to, "updated_at": at}
	if change.IncrementCycle {
		updates["revision_cycle"] = gorm.Expr("revision_cycle + 1")
	}
	if change.ScheduledAt != nil {
		updates["scheduled_at"] = *change.ScheduledAt
	}
	if change.PostedAt != nil {
		updates["posted_at"] = *change.PostedAt
	}

	res := r.db.WithContext(ctx).Model(&domain.ContentRequest{}).
		Where("id = ? AND status IN ?", id, fromSet).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

func (r *requestRepository) List(ctx context.Context, f domain.ListFilter) ([]domain.ContentRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.ContentRequest{}).Where("org_id = ?", f.OrgID)
	if f.AdvisorID != "" {
		q = q.Where("advisor_id = ?", f.AdvisorID)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		statuses := []domain.ContentStatus{f.Status}
		if f.Status == domain.StatusInReview {
			statuses = append(statuses, domain.StatusSubmitted)
		}
		q = q.Where("status IN ?", statuses)
	} else if s := f.Tab.Statuses(); s != nil {
		q = q.Where("status IN ?", s)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var rows []domain.ContentRequest
	err := q.Order("updated_at DESC").Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Status = rows[i].Status.Normalize()
	}
	return rows, total, nil
}

func (r *requestRepository) CountByStatus(ctx context.Context, orgID, advisorID string) (domain.StatusCounts, error) {
	var rows []struct {
		Status domain.ContentStatus
		N      int64
	}
	q := r.db.WithContext(ctx).Model(&domain.ContentRequest{}).
		Select("status, COUNT(*) AS n").
		Where("org_id = ?", orgID)
	if advisorID != "" {
		q = q.Where("advisor_id = ?", advisorID)
	}
	var counts domain.StatusCounts
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return counts, err
	}
	for _, row := range rows {
		counts.Add(row.Status, row.N)
	}
	return counts, nil
}

// FindDueScheduled returns scheduled requests whose publication time has passed, oldest first
func (r *requestRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.ContentRequest, error) {
	var rows []domain.ContentRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.StatusScheduled, now).
		Order("scheduled_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// RecentTopics returns the organization's distinct topics, most recently used first
func (r *requestRepository) RecentTopics(ctx context.Context, orgID string, limit int) ([]string, error) {
	var topics []string
	err := r.db.WithContext(ctx).Model(&domain.ContentRequest{}).
		Select("topic_text").
		Where("org_id = ? AND topic_text <> ''", orgID).
		Group("topic_text").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck("topic_text", &topics).Error
	return topics, err
}
