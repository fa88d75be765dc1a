package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_http_requests_total",
			Help: "Total number of HTTP requests processed by the realtime service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"namespace"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"namespace", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_amqp_publish_errors_total",
			Help: "Total number of AMQP audit publish errors.",
		},
	)
	busPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bus_published_total",
			Help: "Broadcast events published to the bus.",
		},
		[]string{"topic"},
	)
	busPublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bus_publish_errors_total",
			Help: "Broadcast events that failed to publish.",
		},
		[]string{"topic"},
	)
	busDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bus_dropped_total",
			Help: "Broadcast events dropped before reaching the bus or a handler.",
		},
		[]string{"reason"},
	)
	busReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bus_received_total",
			Help: "Broadcast events received from the bus.",
		},
		[]string{"topic"},
	)
	dispatchDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_dispatch_deliveries_total",
			Help: "Frames handed to local connections by the dispatcher.",
		},
		[]string{"namespace", "topic"},
	)
	slowConsumersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_slow_consumers_total",
			Help: "Connections closed because their outbound buffer was full.",
		},
	)
	membershipFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_membership_lookup_failures_total",
			Help: "Connect-time room lookups that failed and fell back to zero rooms.",
		},
	)
	ingestRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_ingest_rejections_total",
			Help: "Inbound client events rejected before broadcast.",
		},
		[]string{"event", "code"},
	)
	pushFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_push_failures_total",
			Help: "Push delegations that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		busPublishedTotal,
		busPublishErrorsTotal,
		busDroppedTotal,
		busReceivedTotal,
		dispatchDeliveriesTotal,
		slowConsumersTotal,
		membershipFailuresTotal,
		ingestRejectionsTotal,
		pushFailuresTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(namespace string) {
	wsActiveConnections.WithLabelValues(namespace).Inc()
}

func DecWSActive(namespace string) {
	wsActiveConnections.WithLabelValues(namespace).Dec()
}

func IncWSEvent(namespace, event string) {
	wsEventsTotal.WithLabelValues(namespace, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncBusPublished(topic string) {
	busPublishedTotal.WithLabelValues(topic).Inc()
}

func IncBusPublishError(topic string) {
	busPublishErrorsTotal.WithLabelValues(topic).Inc()
}

func IncBusDropped(reason string) {
	busDroppedTotal.WithLabelValues(reason).Inc()
}

func IncBusReceived(topic string) {
	busReceivedTotal.WithLabelValues(topic).Inc()
}

func AddDispatchDeliveries(namespace, topic string, n int) {
	dispatchDeliveriesTotal.WithLabelValues(namespace, topic).Add(float64(n))
}

func IncSlowConsumer() {
	slowConsumersTotal.Inc()
}

func IncMembershipFailure() {
	membershipFailuresTotal.Inc()
}

func IncIngestRejection(event, code string) {
	ingestRejectionsTotal.WithLabelValues(event, code).Inc()
}

func IncPushFailure() {
	pushFailuresTotal.Inc()
}
