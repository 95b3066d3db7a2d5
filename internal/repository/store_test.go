package repository

import (
	"context"
	"testing"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/config"
	"github.com/JxWayne890/complyflow-financial/internal/database"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, migration.Run(db))
	return NewStore(db)
}

func seedRequest(t *testing.T, s *Store, status domain.ContentStatus) *domain.ContentRequest {
	t.Helper()
	now := time.Now().UTC()
	r := &domain.ContentRequest{
		ID:          uuid.NewString(),
		OrgID:       "org1",
		AdvisorID:   "adv1",
		TopicText:   "Roth conversions in a down market",
		ContentType: domain.ContentTypeBlog,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Requests.Create(context.Background(), r))
	return r
}

func newVersion(requestID string, n int) *domain.ContentVersion {
	return &domain.ContentVersion{
		ID:            uuid.NewString(),
		RequestID:     requestID,
		VersionNumber: n,
		GeneratedBy:   domain.GeneratorAI,
		Title:         "t",
		Body:          "<p>body</p>",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestVersions_NumberingAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusDraft)

	n, err := s.Versions.NextNumber(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	latest, err := s.Versions.FindLatest(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.InsertVersion(ctx, newVersion(r.ID, i)))
	}

	n, err = s.Versions.NextNumber(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	list, err := s.Versions.FindByRequestID(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, v := range list {
		assert.Equal(t, i+1, v.VersionNumber)
	}

	latest, err = s.Versions.FindLatest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.VersionNumber)
}

func TestInsertVersion_DuplicateNumberConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusDraft)

	require.NoError(t, s.InsertVersion(ctx, newVersion(r.ID, 1)))
	err := s.InsertVersion(ctx, newVersion(r.ID, 1))
	assert.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestUpdateRequestCurrentVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusDraft)
	v := newVersion(r.ID, 1)
	require.NoError(t, s.InsertVersion(ctx, v))

	require.NoError(t, s.UpdateRequestCurrentVersion(ctx, r.ID, v.ID, time.Now().UTC()))
	got, err := s.Requests.FindByID(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentVersionID)
	assert.Equal(t, v.ID, *got.CurrentVersionID)

	err = s.UpdateRequestCurrentVersion(ctx, "missing", v.ID, time.Now().UTC())
	assert.ErrorIs(t, err, common.ErrRequestNotFound)
}

func TestUpdateRequestStatus_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusChangesRequested)

	require.NoError(t, s.UpdateRequestStatus(ctx, r.ID, domain.StatusChangesRequested, domain.StatusInReview, StatusChange{IncrementCycle: true}))
	got, err := s.Requests.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInReview, got.Status)
	assert.Equal(t, 1, got.RevisionCycle)

	// stale from-status
	err = s.UpdateRequestStatus(ctx, r.ID, domain.StatusChangesRequested, domain.StatusInReview, StatusChange{})
	assert.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestUpdateRequestStatus_LegacySubmitted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusSubmitted)

	got, err := s.Requests.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInReview, got.Status)

	require.NoError(t, s.UpdateRequestStatus(ctx, r.ID, domain.StatusInReview, domain.StatusApproved, StatusChange{}))
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusDraft)

	err := s.Transaction(ctx, func(tx *Store) error {
		v := newVersion(r.ID, 1)
		if err := tx.InsertVersion(ctx, v); err != nil {
			return err
		}
		if err := tx.UpdateRequestCurrentVersion(ctx, r.ID, v.ID, time.Now().UTC()); err != nil {
			return err
		}
		// wrong from-status fails the unit
		return tx.UpdateRequestStatus(ctx, r.ID, domain.StatusInReview, domain.StatusApproved, StatusChange{})
	})
	require.ErrorIs(t, err, common.ErrVersionConflict)

	list, err := s.Versions.FindByRequestID(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := s.Requests.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentVersionID)
	assert.Equal(t, domain.StatusDraft, got.Status)
}

func TestReviews_HistoryOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusInReview)

	base := time.Now().UTC()
	for i, d := range []domain.ReviewDecision{domain.DecisionChangesRequested, domain.DecisionApproved} {
		require.NoError(t, s.InsertReview(ctx, &domain.ComplianceReview{
			ID:         uuid.NewString(),
			RequestID:  r.ID,
			ReviewerID: "cco1",
			Decision:   d,
			Notes:      "n",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := s.Reviews.FindByRequestID(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.DecisionChangesRequested, list[0].Decision)
	assert.Equal(t, domain.DecisionApproved, list[1].Decision)
}

func TestReviews_SameInstantKeepsInsertOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := seedRequest(t, s, domain.StatusInReview)

	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	first := &domain.ComplianceReview{ID: "ffffffff-0000-0000-0000-000000000000", RequestID: r.ID, ReviewerID: "cco1", Decision: domain.DecisionChangesRequested, CreatedAt: at}
	second := &domain.ComplianceReview{ID: "00000000-0000-0000-0000-000000000000", RequestID: r.ID, ReviewerID: "cco1", Decision: domain.DecisionApproved, CreatedAt: at}
	require.NoError(t, s.InsertReview(ctx, first))
	require.NoError(t, s.InsertReview(ctx, second))
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)

	list, err := s.Reviews.FindByRequestID(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.DecisionChangesRequested, list[0].Decision)
	assert.Equal(t, domain.DecisionApproved, list[1].Decision)

	// numbering is per request
	other := seedRequest(t, s, domain.StatusInReview)
	third := &domain.ComplianceReview{ID: uuid.NewString(), RequestID: other.ID, ReviewerID: "cco1", Decision: domain.DecisionRejected, CreatedAt: at}
	require.NoError(t, s.InsertReview(ctx, third))
	assert.Equal(t, 1, third.Number)
}

func TestRequests_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, st := range []domain.ContentStatus{
		domain.StatusDraft, domain.StatusChangesRequested, domain.StatusInReview,
		domain.StatusSubmitted, domain.StatusApproved, domain.StatusPosted,
	} {
		seedRequest(t, s, st)
	}

	rows, total, err := s.Requests.List(ctx, domain.ListFilter{OrgID: "org1", Tab: domain.TabDraft})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 2)

	rows, total, err = s.Requests.List(ctx, domain.ListFilter{OrgID: "org1", Tab: domain.TabInReview})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, r := range rows {
		assert.Equal(t, domain.StatusInReview, r.Status)
	}

	_, total, err = s.Requests.List(ctx, domain.ListFilter{OrgID: "org1", Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)

	_, total, err = s.Requests.List(ctx, domain.ListFilter{OrgID: "other"})
	require.NoError(t, err)
	assert.Zero(t, total)

	counts, err := s.Requests.CountByStatus(ctx, "org1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{All: 6, Draft: 2, InReview: 2, Approved: 1}, counts)
}

func TestRequests_FindDueScheduled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	due := seedRequest(t, s, domain.StatusApproved)
	past := now.Add(-time.Minute)
	require.NoError(t, s.UpdateRequestStatus(ctx, due.ID, domain.StatusApproved, domain.StatusScheduled, StatusChange{ScheduledAt: &past}))

	later := seedRequest(t, s, domain.StatusApproved)
	future := now.Add(time.Hour)
	require.NoError(t, s.UpdateRequestStatus(ctx, later.ID, domain.StatusApproved, domain.StatusScheduled, StatusChange{ScheduledAt: &future}))

	rows, err := s.Requests.FindDueScheduled(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, due.ID, rows[0].ID)
}

func TestRequests_RecentTopics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	for i, topic := range []string{"Bond ladders", "Roth conversions", "Bond ladders", "Estate freezes"} {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Requests.Create(ctx, &domain.ContentRequest{
			ID: uuid.NewString(), OrgID: "org1", AdvisorID: "adv1", TopicText: topic,
			ContentType: domain.ContentTypeBlog, Status: domain.StatusDraft, CreatedAt: at, UpdatedAt: at,
		}))
	}
	require.NoError(t, s.Requests.Create(ctx, &domain.ContentRequest{
		ID: uuid.NewString(), OrgID: "org9", AdvisorID: "adv9", TopicText: "Other firm",
		ContentType: domain.ContentTypeBlog, Status: domain.StatusDraft, CreatedAt: base, UpdatedAt: base,
	}))

	topics, err := s.Requests.RecentTopics(ctx, "org1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Estate freezes", "Bond ladders", "Roth conversions"}, topics)

	topics, err = s.Requests.RecentTopics(ctx, "org1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Estate freezes"}, topics)
}
