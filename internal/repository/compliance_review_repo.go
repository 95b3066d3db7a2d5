package repository

import (
	"context"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"gorm.io/gorm"
)

// ReviewRepository compliance_reviews data access. Rows are insert-only.
type ReviewRepository interface {
	Insert(ctx context.Context, r *domain.ComplianceReview) error
	FindByRequestID(ctx context.Context, requestID string) ([]domain.ComplianceReview, error)
	NextNumber(ctx context.Context, requestID string) (int, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Insert(ctx context.Context, review *domain.ComplianceReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// FindByRequestID returns the full decision history, oldest first
func (r *reviewRepository) FindByRequestID(ctx context.Context, requestID string) ([]domain.ComplianceReview, error) {
	var reviews []domain.ComplianceReview
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("review_number ASC").Order("created_at ASC").Order("id").
		Find(&reviews).Error
	return reviews, err
}

// NextNumber returns the number the next review of requestID receives
func (r *reviewRepository) NextNumber(ctx context.Context, requestID string) (int, error) {
	var last *int
	err := r.db.WithContext(ctx).Model(&domain.ComplianceReview{}).
		Where("request_id = ?", requestID).
		Select("MAX(review_number)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	return *last + 1, nil
}
