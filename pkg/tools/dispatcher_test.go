package tools_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/developer-overheid-nl/don-defect-register/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_RunsOnce(t *testing.T) {
	var calls atomic.Int32
	done := tools.Dispatch(context.Background(), "count", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tool did not finish")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatch_ErrorDoesNotPropagate(t *testing.T) {
	done := tools.Dispatch(context.Background(), "broken", func(context.Context) error {
		return errors.New("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tool did not finish")
	}
}

func TestDispatch_PassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen error
	done := tools.Dispatch(ctx, "ctx", func(ctx context.Context) error {
		seen = ctx.Err()
		return seen
	})
	<-done
	require.ErrorIs(t, seen, context.Canceled)
}
