package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger returns the request logging middleware. The log level follows the
// response status class.
func NewLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()
		handlerErr := c.Next()

		status := c.Response().StatusCode()

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = log.Error()
		case status >= fiber.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		message := "HTTP Request"
		if handlerErr != nil {
			message = handlerErr.Error()
		}

		event.
			Int("status", status).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Dur("duration", time.Since(startTime)).
			Str("useragent", c.Get(fiber.HeaderUserAgent)).
			Msg(message)

		return nil
	}
}
