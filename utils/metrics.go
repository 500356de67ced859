package utils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActivityRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailwarm_activity_events_total",
		Help: "Total number of activity events recorded by the workers",
	}, []string{"type", "error_kind"})
	ErrorAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailwarm_error_alerts_total",
		Help: "Error notifications by kind and outcome (sent, failed, throttled)",
	}, []string{"kind", "result"})
	ReportsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailwarm_reports_total",
		Help: "Daily and weekly reports by outcome",
	}, []string{"report", "result"})
	WarmupSendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailwarm_warmup_send_duration_seconds",
		Help:    "Time spent delivering one warmup message, retries included",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})
)

func init() {
	prometheus.MustRegister(ActivityRecorded)
	prometheus.MustRegister(ErrorAlerts)
	prometheus.MustRegister(ReportsDelivered)
	prometheus.MustRegister(WarmupSendDuration)
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
