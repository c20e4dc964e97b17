package converter

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kylycht/ratebot/metrics"
	"github.com/rs/zerolog/log"
)

// Observe counts handled requests by route and logs them
func Observe(m *metrics.Metrics) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		path := ctx.Route().Path
		m.ObserveHTTP(path, ctx.Method(), strconv.Itoa(status))

		log.Debug().
			Str("method", ctx.Method()).
			Str("path", ctx.Path()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("handled request")

		return err
	}
}
