package meshscheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRespectsMaxConcurrency(t *testing.T) {
	scheduler := New(Config{MaxConcurrency: 2})

	var inFlight atomic.Int64
	var maxSeen atomic.Int64

	handles := make([]*Handle[struct{}], 0, 3)
	for i := 0; i < 3; i++ {
		h, err := Spawn(scheduler, func(ctx context.Context) (struct{}, error) {
			current := inFlight.Add(1)
			for {
				old := maxSeen.Load()
				if current <= old || maxSeen.CompareAndSwap(old, current) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), maxSeen.Load())
}

func TestClosePreventsNewTasks(t *testing.T) {
	scheduler := New(DefaultConfig())
	scheduler.Close()

	_, err := Spawn(scheduler, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	require.Error(t, err)
	var closedErr *ClosedError
	assert.ErrorAs(t, err, &closedErr)
}
