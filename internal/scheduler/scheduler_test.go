package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishDue(ctx context.Context, limit int) (int, error) {
	args := m.Called(limit)
	return args.Int(0), args.Error(1)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New("every minute please", &mockPublisher{})
	assert.Error(t, err)
}

func TestRunOnce_DrainsFullBatches(t *testing.T) {
	p := &mockPublisher{}
	p.On("PublishDue", batchSize).Return(batchSize, nil).Once()
	p.On("PublishDue", batchSize).Return(3, nil).Once()

	s, err := New("@every 1m", p)
	require.NoError(t, err)

	assert.Equal(t, batchSize+3, s.RunOnce(context.Background()))
	p.AssertExpectations(t)
}

func TestRunOnce_StopsOnError(t *testing.T) {
	p := &mockPublisher{}
	p.On("PublishDue", batchSize).Return(1, errors.New("archive unavailable")).Once()

	s, err := New("@every 1m", p)
	require.NoError(t, err)

	assert.Equal(t, 1, s.RunOnce(context.Background()))
	p.AssertNumberOfCalls(t, "PublishDue", 1)
}

func TestRunOnce_SkipsWhenBusy(t *testing.T) {
	p := &mockPublisher{}
	s, err := New("@every 1m", p)
	require.NoError(t, err)

	s.running.Lock()
	assert.Equal(t, 0, s.RunOnce(context.Background()))
	s.running.Unlock()
	p.AssertNotCalled(t, "PublishDue", mock.Anything)
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &mockPublisher{})
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}
