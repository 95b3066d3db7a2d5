package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"gorm.io/gorm"
)

// Store groups the workflow repositories over one connection or transaction.
// The four write methods are the only mutations the engine performs.
type Store struct {
	db       *gorm.DB
	Requests RequestRepository
	Versions VersionRepository
	Reviews  ReviewRepository
}

// NewStore creates a Store over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Requests: NewRequestRepository(db),
		Versions: NewVersionRepository(db),
		Reviews:  NewReviewRepository(db),
	}
}

// Transaction runs fn against a Store bound to one database transaction.
// Any error returned by fn rolls the whole unit back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// InsertVersion writes one immutable version row
func (s *Store) InsertVersion(ctx context.Context, v *domain.ContentVersion) error {
	return s.Versions.Insert(ctx, v)
}

// UpdateRequestCurrentVersion points the request at versionID and bumps updated_at
func (s *Store) UpdateRequestCurrentVersion(ctx context.Context, requestID, versionID string, at time.Time) error {
	return s.Requests.UpdateCurrentVersion(ctx, requestID, versionID, at)
}

// UpdateRequestStatus moves the request from one status to another
func (s *Store) UpdateRequestStatus(ctx context.Context, requestID string, from, to domain.ContentStatus, change StatusChange) error {
	return s.Requests.UpdateStatus(ctx, requestID, from, to, change)
}

// InsertReview records one compliance decision as the next in its request's history
func (s *Store) InsertReview(ctx context.Context, r *domain.ComplianceReview) error {
	n, err := s.Reviews.NextNumber(ctx, r.RequestID)
	if err != nil {
		return err
	}
	r.Number = n
	return s.Reviews.Insert(ctx, r)
}

// Ping checks the underlying connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// isDuplicate recognizes unique-index violations. TranslateError covers the
// drivers that implement it; the message checks catch the rest.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
