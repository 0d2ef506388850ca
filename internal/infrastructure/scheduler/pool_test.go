package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_EjecutaTodo(t *testing.T) {
	p := NewPool(3, zerolog.Nop())
	var n atomic.Int32
	for i := 0; i < 20; i++ {
		p.Go(func(context.Context) { n.Add(1) })
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
	assert.Equal(t, int32(20), n.Load(), "Close drena lo encolado")
}

func TestPool_PanicoNoMataElWorker(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	var n atomic.Int32
	p.Go(func(context.Context) { panic("boom") })
	p.Go(func(context.Context) { n.Add(1) })

	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Close(context.Background()))
}

func TestPool_DescartaTrasClose(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	require.NoError(t, p.Close(context.Background()))

	var n atomic.Int32
	p.Go(func(context.Context) { n.Add(1) })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())
}

func TestPool_ContextoNoCancelado(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	errCh := make(chan error, 1)
	p.Go(func(ctx context.Context) { errCh <- ctx.Err() })
	assert.NoError(t, <-errCh)
	require.NoError(t, p.Close(context.Background()))
}
