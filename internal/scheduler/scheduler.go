// Package scheduler runs the periodic publication of scheduled content.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Publisher publishes scheduled requests whose time has come
type Publisher interface {
	PublishDue(ctx context.Context, limit int) (int, error)
}

const (
	batchSize  = 50
	runTimeout = 2 * time.Minute
)

// Scheduler wraps a cron runner around Publisher.PublishDue
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	// running prevents overlapping runs
	running sync.Mutex
}

// New registers the publication job on spec (standard cron or "@every 1m")
func New(spec string, p Publisher) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), publisher: p}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the job in the background
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce publishes every due request in batches. It returns the number published.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if !s.running.TryLock() {
		pkglogger.GetLogger().Debug().Msg("scheduler: previous run still in progress")
		return 0
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	total := 0
	for {
		n, err := s.publisher.PublishDue(ctx, batchSize)
		total += n
		if err != nil {
			pkglogger.GetLogger().Error().Err(err).Int("published", total).Msg("scheduler: publish due failed")
			return total
		}
		if n < batchSize {
			break
		}
	}
	if total > 0 {
		pkglogger.GetLogger().Info().Int("published", total).Msg("scheduler: published scheduled content")
	}
	return total
}
