package main

import (
	"context"
	"net/http"
	"time"

	"MarksAPI/internal/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const healthPingTimeout = 800 * time.Millisecond

type pinger func(ctx context.Context) error

func healthHandler(ping pinger, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		start := time.Now()
		err := ping(ctx)
		metrics.ObserveDBPing(time.Since(start))
		if err != nil {
			log.Warn("health check: database ping failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"success": false,
				"status":  "ERROR",
				"message": "Database unavailable",
			})
		}
		return ok(c, http.StatusOK, echo.Map{"status": "OK", "message": "Server is running"})
	}
}
