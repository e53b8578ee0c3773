package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payverify_requests_total",
			Help: "Total number of requests processed by the payverify API.",
		},
		[]string{"path", "status"},
	)

	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payverify_requests_errors_total",
			Help: "Total number of error requests processed by the payverify API.",
		},
		[]string{"path", "status"},
	)

	PollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payverify_poll_attempts_total",
			Help: "Verify calls made by server-side verification sessions, by result.",
		},
		[]string{"result"},
	)

	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payverify_verifications_total",
			Help: "Verification sessions that reached a terminal state, by outcome.",
		},
		[]string{"outcome"},
	)
)

// PrometheusInit registers the collectors with registerer.
func PrometheusInit(registerer prometheus.Registerer) {
	registerer.MustRegister(RequestCount, ErrorCount, PollAttempts, Verifications)
}

// TrackMetrics counts requests by route pattern and status.
func TrackMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		path := c.Route().Path

		RequestCount.WithLabelValues(path, http.StatusText(status)).Inc()

		if status >= 400 {
			ErrorCount.WithLabelValues(path, http.StatusText(status)).Inc()
		}

		return err
	}
}

// VerificationMetrics feeds the verification counters.
type VerificationMetrics struct{}

func (VerificationMetrics) PollAttempt(result string) {
	PollAttempts.WithLabelValues(result).Inc()
}

func (VerificationMetrics) Verification(outcome string) {
	Verifications.WithLabelValues(outcome).Inc()
}
