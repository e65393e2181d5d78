package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/developer-overheid-nl/don-defect-register/pkg/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	grace atomic.Int64
}

func (s *countingSweeper) Sweep(_ context.Context, grace time.Duration) (int, error) {
	s.calls.Add(1)
	s.grace.Store(int64(grace))
	return 0, nil
}

func TestScheduleBlobSweep_Disabled(t *testing.T) {
	c, err := jobs.ScheduleBlobSweep(context.Background(), &countingSweeper{}, "", time.Hour, nil)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestScheduleBlobSweep_InvalidSchedule(t *testing.T) {
	_, err := jobs.ScheduleBlobSweep(context.Background(), &countingSweeper{}, "every tuesday", time.Hour, nil)
	assert.Error(t, err)
}

func TestScheduleBlobSweep_Runs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := &countingSweeper{}
	c, err := jobs.ScheduleBlobSweep(ctx, sweeper, "@every 1s", 2*time.Hour, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int64(2*time.Hour), sweeper.grace.Load())
}
