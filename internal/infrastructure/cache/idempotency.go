// Package cache guarda las respuestas de peticiones con Idempotency-Key y el candado de líder
// del barrido de la cola SRI.
package cache

import (
	"context"
	"time"
)

// StoredResponse respuesta registrada para repetirla ante el mismo Idempotency-Key.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore reserva claves de idempotencia y guarda la respuesta final.
//
// Reserve devuelve reserved=true si la clave es nueva. Si ya existía devuelve la respuesta
// guardada, o nil mientras la primera petición sigue en curso.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (existing *StoredResponse, reserved bool, err error)
	Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
