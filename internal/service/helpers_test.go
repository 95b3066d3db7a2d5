package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JxWayne890/complyflow-financial/internal/config"
	"github.com/JxWayne890/complyflow-financial/internal/database"
	"github.com/JxWayne890/complyflow-financial/internal/domain"
	"github.com/JxWayne890/complyflow-financial/internal/event"
	"github.com/JxWayne890/complyflow-financial/internal/generation"
	"github.com/JxWayne890/complyflow-financial/internal/migration"
	"github.com/JxWayne890/complyflow-financial/internal/publisher"
	"github.com/JxWayne890/complyflow-financial/internal/repository"
	"github.com/JxWayne890/complyflow-financial/internal/workflow"
	"github.com/JxWayne890/complyflow-financial/pkg/cache"
	"github.com/JxWayne890/complyflow-financial/pkg/lock"
	"github.com/stretchr/testify/require"
)

var (
	advisor    = domain.Actor{ID: "adv1", OrgID: "org1", Role: domain.RoleAdvisor}
	otherAdv   = domain.Actor{ID: "adv2", OrgID: "org1", Role: domain.RoleAdvisor}
	compliance = domain.Actor{ID: "cco1", OrgID: "org1", Role: domain.RoleCompliance}
	admin      = domain.Actor{ID: "adm1", OrgID: "org1", Role: domain.RoleAdmin}
	outsider   = domain.Actor{ID: "adv9", OrgID: "org9", Role: domain.RoleAdvisor}
)

// scriptedGenerator answers generation requests with fn
type scriptedGenerator struct {
	mu    sync.Mutex
	calls []generation.Request
	fn    func(req generation.Request) (generation.Result, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, req generation.Request) (generation.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.fn(req)
}

func (g *scriptedGenerator) last() generation.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

func failing(msg string) func(generation.Request) (generation.Result, error) {
	return func(generation.Request) (generation.Result, error) {
		return generation.Result{}, errors.New(msg)
	}
}

// defaultText drafts, extends and rewrites predictably
func defaultText(req generation.Request) (generation.Result, error) {
	switch req.Action {
	case domain.ActionRewrite:
		return generation.Result{Body: "Remain disciplined"}, nil
	case domain.ActionExtend:
		return generation.Result{
			Title: "ignored",
			Body:  "<p>Markets can be volatile.</p>\n<p>Bond ladders spread maturity risk across many years.</p>",
		}, nil
	}
	return generation.Result{
		Title:       "Staying the Course",
		Body:        "<p>Markets can be volatile.</p><p>Stay invested for the long term.</p>",
		Disclaimers: "Past performance is not indicative of future results.",
	}, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	items []publisher.Item
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, item publisher.Item) (*publisher.Receipt, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, item)
	return &publisher.Receipt{Location: "test://" + item.Request.ID}, nil
}

type testEnv struct {
	store    *repository.Store
	bus      *event.Bus
	text     *scriptedGenerator
	image    *scriptedGenerator
	pub      *recordingPublisher
	versions VersionService
	content  ContentService
	workflow WorkflowService
	gen      GenerationService
	rewrite  RewriteService

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newEnv(t *testing.T, policy workflow.Policy) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, migration.Run(db))

	e := &testEnv{
		store: repository.NewStore(db),
		bus:   event.NewBus(),
		text:  &scriptedGenerator{fn: defaultText},
		image: &scriptedGenerator{fn: func(generation.Request) (generation.Result, error) {
			return generation.Result{Body: "<p>Navy poster, rising line.</p>"}, nil
		}},
		pub: &recordingPublisher{},
		now: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	}
	d := Deps{
		Store:  e.store,
		Locker: lock.NewLocalLocker(),
		Bus:    e.bus,
		Cache:  cache.NewService(nil),
		Policy: policy,
		Now:    e.clock,
	}
	orch := generation.NewOrchestrator(e.text, e.image)
	e.versions = NewVersionService(d)
	e.content = NewContentService(d)
	e.workflow = NewWorkflowService(d, e.pub)
	e.gen = NewGenerationService(d, orch)
	e.rewrite = NewRewriteService(d, orch, RewriteOptions{})
	return e
}

func (e *testEnv) createRequest(t *testing.T, actor domain.Actor) *domain.ContentRequest {
	t.Helper()
	req, err := e.content.Create(context.Background(), actor, CreateContentInput{
		TopicText:   "Staying invested through volatility",
		ContentType: domain.ContentTypeBlog,
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) generate(t *testing.T, actor domain.Actor, id string) *domain.ContentVersion {
	t.Helper()
	res, err := e.gen.Generate(context.Background(), actor, GenerateInput{RequestID: id})
	require.NoError(t, err)
	return res.Version
}

func (e *testEnv) request(t *testing.T, id string) *domain.ContentRequest {
	t.Helper()
	req, err := e.store.Requests.FindByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

// requireConsistent checks the current pointer against the version ledger
func (e *testEnv) requireConsistent(t *testing.T, id string) *Consistency {
	t.Helper()
	c, err := e.versions.CheckConsistency(context.Background(), id)
	require.NoError(t, err)
	require.True(t, c.Gapless, "version numbers must be 1..N")
	require.True(t, c.Consistent, "current version must be the latest")
	return c
}

// appendBehind writes a version the way a writer on another node would,
// without taking the in-process lock
func (e *testEnv) appendBehind(id, body string) error {
	ctx := context.Background()
	return e.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests.FindByID(ctx, id)
		if err != nil {
			return err
		}
		_, err = appendVersion(ctx, tx, req, NewVersion{
			RequestID:   id,
			GeneratedBy: domain.GeneratorHuman,
			Title:       "Staying the Course",
			Body:        body,
			Disclaimers: "Past performance is not indicative of future results.",
		}, e.clock())
		return err
	})
}

// once runs fn the first time it is called
func once(fn func() error) func() error {
	var done bool
	return func() error {
		if done {
			return nil
		}
		done = true
		return fn()
	}
}
