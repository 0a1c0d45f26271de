package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelPartialLimit_CollectsAll(t *testing.T) {
	boom := errors.New("boom")

	results := ParallelPartialLimit(context.Background(), 2,
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (int, error) { return 0, boom },
		func(context.Context) (int, error) { return 3, nil },
	)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Value)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 3, results[2].Value)
}

func TestParallelPartialLimit_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	fn := func(context.Context) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)

		return struct{}{}, nil
	}

	fns := make([]func(context.Context) (struct{}, error), 8)
	for i := range fns {
		fns[i] = fn
	}

	ParallelPartialLimit(context.Background(), 2, fns...)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelPartialLimit_NoLimit(t *testing.T) {
	results := ParallelPartialLimit(context.Background(), 0,
		func(context.Context) (string, error) { return "a", nil },
		func(context.Context) (string, error) { return "b", nil },
	)

	assert.Equal(t, "a", results[0].Value)
	assert.Equal(t, "b", results[1].Value)
}
