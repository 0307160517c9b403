// Package observability reports unexpected errors to Sentry when a DSN is set.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// InitSentry is a no-op without a DSN. The returned func flushes pending events.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
		ServerName:  "marks-api",
		// Request bodies may carry OTP codes.
		SendDefaultPII: false,
	})
	if err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(flushTimeout) }, nil
}

// Request identifies the HTTP call a failure happened in.
type Request struct {
	Method    string
	Route     string
	RequestID string
}

// CaptureRequestErr reports err tagged with the request it failed. It returns
// the event ID, empty when nothing was sent.
func CaptureRequestErr(err error, req Request) string {
	if err == nil {
		return ""
	}
	var id *sentry.EventID
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("http.method", req.Method)
		scope.SetTag("http.route", req.Route)
		if req.RequestID != "" {
			scope.SetTag("request_id", req.RequestID)
		}
		id = sentry.CaptureException(err)
	})
	if id == nil {
		return ""
	}
	return string(*id)
}
