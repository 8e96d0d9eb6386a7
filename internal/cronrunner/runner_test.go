package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_RunsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(zap.NewNop(), ctx)
	var calls atomic.Int32
	_, err := r.Add("tick", "@every 1s", func(context.Context) { calls.Add(1) })
	require.NoError(t, err)
	assert.Equal(t, 1, r.Entries())

	r.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	r.Stop()
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := New(nil, nil)
	var calls atomic.Int32
	_, err := r.Add("boom", "@every 1s", func(context.Context) {
		calls.Add(1)
		panic("boom")
	})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
	r.Stop()
}

func TestRunner_InvalidSpec(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	_, err := r.Add("bad", "not a spec", func(context.Context) {})
	assert.Error(t, err)
}

func TestRunner_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(zap.NewNop(), ctx)
	var calls atomic.Int32
	_, err := r.Add("tick", "@every 1s", func(context.Context) { calls.Add(1) })
	require.NoError(t, err)

	r.Start()
	time.Sleep(1500 * time.Millisecond)
	r.Stop()
	assert.Equal(t, int32(0), calls.Load())
}
