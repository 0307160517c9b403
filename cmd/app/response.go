package main

import (
	"errors"
	"fmt"
	"net/http"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/observability"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorStatus maps any handler error, ours or echo's, to a status and a
// client-safe message.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	}
	return statusFor(apperr.KindOf(err)), apperr.MessageOf(err)
}

// httpErrorHandler renders every error as {success:false, message}.
func httpErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := errorStatus(err)
		switch {
		case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
			req := observability.Request{
				Method:    c.Request().Method,
				Route:     c.Path(),
				RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			}
			eventID := observability.CaptureRequestErr(err, req)
			log.Error("request failed",
				zap.String("method", req.Method),
				zap.String("route", req.Route),
				zap.String("request_id", req.RequestID),
				zap.String("sentry_event", eventID),
				zap.Error(err),
			)
		case status == http.StatusBadGateway:
			log.Warn("upstream failure", zap.String("route", c.Path()), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"success": false, "message": msg})
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}

func ok(c echo.Context, status int, body echo.Map) error {
	body["success"] = true
	return c.JSON(status, body)
}
