// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marks"

var (
	OTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "otp_requests_total", Help: "OTP requests by outcome",
	}, []string{"result"})
	OTPVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "otp_verifications_total", Help: "OTP verifications by outcome",
	}, []string{"result"})
	EmailDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "email_deliveries_total", Help: "Outgoing emails by provider and outcome",
	}, []string{"provider", "result"})
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "submissions_total", Help: "Marks submissions by kind (create, update)",
	}, []string{"kind"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(OTPRequests, OTPVerifications, EmailDeliveries, Submissions, HTTPDuration, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
