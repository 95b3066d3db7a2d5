package service

import (
	"context"
	"testing"

	"github.com/JxWayne890/complyflow-financial/internal/common"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, workflow.Policy{})

	_, err := e.content.Create(ctx, advisor, CreateContentInput{TopicText: "   ", ContentType: domain.ContentTypeBlog})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.content.Create(ctx, advisor, CreateContentInput{TopicText: "x", ContentType: "podcast"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.content.Create(ctx, compliance, CreateContentInput{TopicText: "x", ContentType: domain.ContentTypeBlog})
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = e.content.Create(ctx, domain.Actor{}, CreateContentInput{TopicText: "x", ContentType: domain.ContentTypeBlog})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestGet_WithCurrentVersion(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, workflow.Policy{})
	req := e.createRequest(t, advisor)

	d, err := e.content.Get(ctx, advisor, req.ID)
	require.NoError(t, err)
	assert.Nil(t, d.Current)

	v := e.generate(t, advisor, req.ID)
	d, err = e.content.Get(ctx, compliance, req.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, d.Current.ID)

	_, err = e.content.Get(ctx, otherAdv, req.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = e.content.Get(ctx, outsider, req.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = e.content.Get(ctx, advisor, "missing")
	assert.ErrorIs(t, err, common.ErrRequestNotFound)
}

func TestUpdateFields(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, workflow.Policy{})
	req := e.createRequest(t, advisor)

	got, err := e.content.UpdateFields(ctx, advisor, req.ID, UpdateContentInput{TopicText: strPtr("Municipal bonds"), Instructions: strPtr("Keep it brief")})
	require.NoError(t, err)
	assert.Equal(t, "Municipal bonds", got.TopicText)
	assert.Equal(t, "Keep it brief", got.Instructions)

	_, err = e.content.UpdateFields(ctx, advisor, req.ID, UpdateContentInput{TopicText: strPtr("  ")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.content.UpdateFields(ctx, otherAdv, req.ID, UpdateContentInput{TopicText: strPtr("mine now")})
	assert.ErrorIs(t, err, common.ErrForbidden)

	e.generate(t, advisor, req.ID)
	_, err = e.workflow.Submit(ctx, advisor, req.ID, nil)
	require.NoError(t, err)
	_, err = e.content.UpdateFields(ctx, advisor, req.ID, UpdateContentInput{TopicText: strPtr("too late")})
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestSaveDraft(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, workflow.Policy{})
	req := e.createRequest(t, advisor)

	v1, created, err := e.content.SaveDraft(ctx, advisor, req.ID, DraftInput{Title: "Mine", Body: "<p>hand written</p>"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, domain.GeneratorHuman, v1.GeneratedBy)

	again, created, err := e.content.SaveDraft(ctx, advisor, req.ID, DraftInput{Title: "Mine", Body: "<p>hand written</p>"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v1.ID, again.ID)

	_, _, err = e.content.SaveDraft(ctx, advisor, req.ID, DraftInput{Title: "Mine"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	e.requireConsistent(t, req.ID)
}

func TestListAndCounts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, workflow.Policy{})

	a := e.createRequest(t, advisor)
	b := e.createRequest(t, advisor)
	e.createRequest(t, otherAdv)
	e.generate(t, advisor, a.ID)
	_, err := e.workflow.Submit(ctx, advisor, a.ID, nil)
	require.NoError(t, err)

	mine, total, err := e.content.List(ctx, advisor, domain.ListFilter{Tab: domain.TabDraft})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, b.ID, mine[0].ID)

	_, total, err = e.content.List(ctx, compliance, domain.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	counts, err := e.content.StatusCounts(ctx, advisor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{All: 2, Draft: 1, InReview: 1}, counts)

	counts, err = e.content.StatusCounts(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{All: 3, Draft: 2, InReview: 1}, counts)

	queue, err := e.content.ReviewQueue(ctx, compliance)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, a.ID, queue[0].ID)

	_, err = e.content.ReviewQueue(ctx, advisor)
	assert.ErrorIs(t, err, common.ErrForbidden)
}
