package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
	"github.com/jhoicas/osiris-api/internal/infrastructure/cache"
)

const (
	// HeaderIdempotencyKey header con la clave de idempotencia enviada por el cliente.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderReplayed marca con "true" las respuestas repetidas desde el store.
	HeaderReplayed = "Idempotent-Replayed"
)

const maxIdempotencyKeyLen = 200

// Idempotency repite la respuesta guardada cuando llega otra vez el mismo Idempotency-Key
// del mismo usuario a la misma ruta. Sin header la petición pasa sin cambios.
// Las respuestas 5xx no se guardan para que el cliente pueda reintentar.
func Idempotency(store cache.IdempotencyStore, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderIdempotencyKey)
		if key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_IDEMPOTENCY_KEY", Message: "Idempotency-Key demasiado largo"})
		}

		scoped := GetUserID(c) + ":" + c.Method() + ":" + c.Path() + ":" + key
		ctx := c.UserContext()
		existing, reserved, err := store.Reserve(ctx, scoped, ttl)
		if err != nil {
			requestLogger(c).Error().Err(err).Msg("store de idempotencia no disponible")
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "IDEMPOTENCY_UNAVAILABLE", Message: "intente más tarde"})
		}
		if !reserved {
			if existing == nil {
				return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "REQUEST_IN_PROGRESS", Message: "la petición original sigue en proceso"})
			}
			c.Set(HeaderReplayed, "true")
			if existing.ContentType != "" {
				c.Set(fiber.HeaderContentType, existing.ContentType)
			}
			return c.Status(existing.Status).Send(existing.Body)
		}

		if err := c.Next(); err != nil {
			_ = store.Release(ctx, scoped)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			_ = store.Release(ctx, scoped)
			return nil
		}
		body := append([]byte(nil), c.Response().Body()...)
		resp := cache.StoredResponse{Status: status, ContentType: string(c.Response().Header.ContentType()), Body: body}
		if err := store.Complete(ctx, scoped, resp, ttl); err != nil {
			requestLogger(c).Warn().Err(err).Msg("no se pudo guardar la respuesta idempotente")
		}
		return nil
	}
}
