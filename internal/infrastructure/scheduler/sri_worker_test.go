package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls atomic.Int32
	n     int
	err   error
	panic bool
	seen  time.Time
}

func (f *fakeSweeper) ProcessQueue(_ context.Context, now time.Time) (int, error) {
	f.calls.Add(1)
	f.seen = now
	if f.panic {
		panic("boom")
	}
	return f.n, f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	released int
}

func (f *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.held = false
		f.released++
		return nil
	}, true, nil
}

// ── Tick ────────────────────────────────────────────────────────────────────

func TestSRIWorker_Tick(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	s := &fakeSweeper{n: 3}
	w := NewSRIWorker(time.Second, s, nil, zerolog.Nop()).WithClock(func() time.Time { return now })

	assert.Equal(t, 3, w.Tick(context.Background()))
	assert.Equal(t, now, s.seen)
}

func TestSRIWorker_TickRecuperaPanicoYErrores(t *testing.T) {
	w := NewSRIWorker(time.Second, &fakeSweeper{panic: true}, nil, zerolog.Nop())
	assert.NotPanics(t, func() { assert.Equal(t, 0, w.Tick(context.Background())) })

	w = NewSRIWorker(time.Second, &fakeSweeper{err: errors.New("db caída")}, nil, zerolog.Nop())
	assert.Equal(t, 0, w.Tick(context.Background()))
}

func TestSRIWorker_CandadoDeLider(t *testing.T) {
	s := &fakeSweeper{n: 1}
	l := &fakeLocker{}
	w := NewSRIWorker(time.Second, s, l, zerolog.Nop())

	assert.Equal(t, 1, w.Tick(context.Background()))
	assert.Equal(t, 1, l.released, "el candado se libera al terminar el barrido")

	l.held = true
	assert.Equal(t, 0, w.Tick(context.Background()))
	assert.Equal(t, int32(1), s.calls.Load(), "sin candado no se barre")

	l.held = false
	l.err = errors.New("redis caído")
	assert.Equal(t, 0, w.Tick(context.Background()))
	assert.Equal(t, int32(1), s.calls.Load())
}

// ── Ciclo ───────────────────────────────────────────────────────────────────

func TestSRIWorker_StartStop(t *testing.T) {
	s := &fakeSweeper{}
	w := NewSRIWorker(10*time.Millisecond, s, nil, zerolog.Nop())
	w.Start(context.Background())
	w.Start(context.Background())

	require.Eventually(t, func() bool { return s.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	after := s.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, s.calls.Load(), "no hay ticks después de Stop")
}

func TestSRIWorker_StopSinStart(t *testing.T) {
	w := NewSRIWorker(time.Second, &fakeSweeper{}, nil, zerolog.Nop())
	assert.NoError(t, w.Stop(context.Background()))
}
