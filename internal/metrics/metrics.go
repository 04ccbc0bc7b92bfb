package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_http_requests_total",
			Help: "Total inbound HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbackbot_http_request_duration_seconds",
			Help:    "Inbound HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_auth_failures_total",
			Help: "Inbound requests rejected by signature verification",
		},
		[]string{"reason"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbackbot_rate_limit_hits_total",
			Help: "Inbound requests rejected by the rate limiter",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_inbound_events_total",
			Help: "Inbound Slack events by classified intent",
		},
		[]string{"intent"},
	)

	// Upstream metrics
	NotionPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbackbot_notion_pages_fetched_total",
			Help: "Notion query pages fetched",
		},
	)

	RecordsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbackbot_records_fetched_total",
			Help: "Notion records fetched",
		},
	)

	SlackPosts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_slack_posts_total",
			Help: "Slack webhook posts",
		},
		[]string{"status"}, // "ok" or "error"
	)

	// Business metrics
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbackbot_runs_total",
			Help: "Bot runs by operation and result",
		},
		[]string{"operation", "result"},
	)
)
