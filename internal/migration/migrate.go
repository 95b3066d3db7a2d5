package migration

import (
	"fmt"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"gorm.io/gorm"
)

// Run creates or updates the workflow tables and normalizes legacy rows.
// Safe to run repeatedly.
func Run(db *gorm.DB) error {
	// 1. AutoMigrate: creates missing tables, columns and indexes
	if err := db.AutoMigrate(
		&domain.ContentRequest{},
		&domain.ContentVersion{},
		&domain.ComplianceReview{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// 2. Legacy data
	n, err := NormalizeSubmitted(db)
	if err != nil {
		return err
	}
	if n > 0 {
		pkglogger.GetLogger().Info().Int64("rows", n).Msg("migration: normalized submitted -> in_review")
	}
	numbered, err := NumberReviews(db)
	if err != nil {
		return err
	}
	if numbered > 0 {
		pkglogger.GetLogger().Info().Int64("rows", numbered).Msg("migration: numbered legacy reviews")
	}
	return nil
}

// NumberReviews gives reviews written before review_number existed their
// position in the request's history, by created_at then id
func NumberReviews(db *gorm.DB) (int64, error) {
	var legacy []domain.ComplianceReview
	err := db.Where("review_number = 0").
		Order("request_id").Order("created_at ASC").Order("id").
		Find(&legacy).Error
	if err != nil {
		return 0, fmt.Errorf("number reviews: %w", err)
	}
	if len(legacy) == 0 {
		return 0, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		next := map[string]int{}
		for _, r := range legacy {
			n, ok := next[r.RequestID]
			if !ok {
				var last *int
				if err := tx.Model(&domain.ComplianceReview{}).
					Where("request_id = ? AND review_number > 0", r.RequestID).
					Select("MAX(review_number)").Scan(&last).Error; err != nil {
					return err
				}
				if last != nil {
					n = *last
				}
			}
			n++
			next[r.RequestID] = n
			if err := tx.Model(&domain.ComplianceReview{}).Where("id = ?", r.ID).Update("review_number", n).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("number reviews: %w", err)
	}
	return int64(len(legacy)), nil
}

// NormalizeSubmitted rewrites rows still carrying the legacy submitted status
func NormalizeSubmitted(db *gorm.DB) (int64, error) {
	res := db.Model(&domain.ContentRequest{}).
		Where("status = ?", domain.StatusSubmitted).
		Update("status", domain.StatusInReview)
	if res.Error != nil {
		return 0, fmt.Errorf("normalize submitted: %w", res.Error)
	}
	return res.RowsAffected, nil
}
