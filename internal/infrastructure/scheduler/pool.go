package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
)

// Pool ejecutor acotado para efectos secundarios (correo, archivo). Go bloquea si los
// size workers están ocupados y la cola está llena.
type Pool struct {
	jobs   chan func(ctx context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	log    zerolog.Logger
}

var _ electronic.Executor = (*Pool)(nil)

// NewPool lanza size goroutines.
func NewPool(size int, log zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan func(ctx context.Context), size*4),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "pool_efectos").Logger(),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Go encola fn. Tras Close el trabajo se descarta con un aviso.
func (p *Pool) Go(fn func(ctx context.Context)) {
	select {
	case <-p.ctx.Done():
		p.log.Warn().Msg("pool cerrado, trabajo descartado")
		return
	default:
	}
	select {
	case p.jobs <- fn:
	case <-p.ctx.Done():
		p.log.Warn().Msg("pool cerrado, trabajo descartado")
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case fn := <-p.jobs:
			p.run(fn)
		case <-p.ctx.Done():
			// Drena lo ya encolado antes de salir.
			for {
				select {
				case fn := <-p.jobs:
					p.run(fn)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("panic", fmt.Sprint(r)).Msg("pánico en trabajo del pool")
		}
	}()
	fn(context.WithoutCancel(p.ctx))
}

// Close deja de aceptar trabajo y espera a que terminen los encolados o a que venza ctx.
func (p *Pool) Close(ctx context.Context) error {
	p.once.Do(p.cancel)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
