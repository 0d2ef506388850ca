package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	localLogger     = "logger"
	HeaderRequestID = "X-Request-ID"
)

// RequestLogger asigna un request id, deja un sublogger en c.Locals y registra cada petición.
func RequestLogger(base zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid := c.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(HeaderRequestID, rid)

		l := base.With().Str("request_id", rid).Logger()
		c.Locals(localLogger, l)

		err := c.Next()
		if err != nil {
			// Que el ErrorHandler escriba la respuesta antes de registrar el estado.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		ev := l.Info()
		if status >= fiber.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Str("metodo", c.Method()).
			Str("ruta", c.Path()).
			Int("status", status).
			Dur("latencia", time.Since(start)).
			Str("usuario", GetUserID(c)).
			Msg("petición HTTP")
		return nil
	}
}

func requestLogger(c *fiber.Ctx) *zerolog.Logger {
	if l, ok := c.Locals(localLogger).(zerolog.Logger); ok {
		return &l
	}
	return &log.Logger
}
