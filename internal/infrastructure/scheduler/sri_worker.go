// Package scheduler ejecuta en segundo plano el barrido periódico de la cola SRI y los
// efectos secundarios de autorización.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper procesa los documentos vencidos de la cola y devuelve cuántos procesó.
type Sweeper interface {
	ProcessQueue(ctx context.Context, now time.Time) (int, error)
}

// Locker candado distribuido; con varias instancias solo una barre por tick.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

const lockName = "barrido_sri"

// SRIWorker barre la cola SRI cada interval. Una goroutine por proceso.
type SRIWorker struct {
	interval time.Duration
	sweeper  Sweeper
	locker   Locker
	now      func() time.Time
	log      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSRIWorker construye el worker. locker puede ser nil (una sola instancia).
func NewSRIWorker(interval time.Duration, sweeper Sweeper, locker Locker, log zerolog.Logger) *SRIWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SRIWorker{
		interval: interval,
		sweeper:  sweeper,
		locker:   locker,
		now:      time.Now,
		log:      log.With().Str("component", "worker_sri").Logger(),
	}
}

// WithClock reemplaza el reloj (pruebas).
func (w *SRIWorker) WithClock(now func() time.Time) *SRIWorker {
	w.now = now
	return w
}

// Start lanza el ciclo. Llamarlo dos veces sin Stop no lanza otra goroutine.
func (w *SRIWorker) Start(ctx context.Context) {
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)
	w.log.Info().Dur("intervalo", w.interval).Msg("worker SRI iniciado")
}

// Stop cancela el ciclo y espera a que termine el tick en curso o a que venza ctx.
func (w *SRIWorker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.log.Info().Msg("worker SRI detenido")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SRIWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick ejecuta un barrido. Los pánicos y errores se registran y no detienen el worker.
func (w *SRIWorker) Tick(ctx context.Context) (processed int) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("panic", fmt.Sprint(r)).Msg("pánico en barrido SRI")
			processed = 0
		}
	}()

	if w.locker != nil {
		unlock, ok, err := w.locker.TryLock(ctx, lockName, w.interval)
		if err != nil {
			w.log.Error().Err(err).Msg("no se pudo tomar el candado de barrido")
			return 0
		}
		if !ok {
			w.log.Debug().Msg("otra instancia tiene el candado de barrido")
			return 0
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				w.log.Warn().Err(err).Msg("error liberando el candado de barrido")
			}
		}()
	}

	start := w.now()
	n, err := w.sweeper.ProcessQueue(ctx, start)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("error en barrido SRI")
		}
		return n
	}
	ev := w.log.Debug()
	if n > 0 {
		ev = w.log.Info()
	}
	ev.Int("procesados", n).Dur("duracion", w.now().Sub(start)).Msg("barrido SRI")
	return n
}
