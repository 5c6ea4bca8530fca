package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alecgard/saasboard/internal/auth"
)

// Metrics holds all Prometheus metric collectors for the dashboard server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization pipeline.
	AuthResolutionsTotal *prometheus.CounterVec
	RoleDenialsTotal     prometheus.Counter
	PlanDenialsTotal     *prometheus.CounterVec

	// Login rate limiting.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Activity sink.
	ActivityBufferSize   prometheus.Gauge
	ActivityFlushesTotal *prometheus.CounterVec
	ActivityEventsTotal  prometheus.Counter
	ActivityDroppedTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saasboard_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"kind", "method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saasboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "saasboard_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"kind", "method", "path_pattern"}),

		AuthResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saasboard_auth_resolutions_total",
			Help: "Tenant context resolutions by outcome and reason.",
		}, []string{"outcome", "reason"}),

		RoleDenialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saasboard_role_denials_total",
			Help: "Requests rejected by the owner role gate.",
		}),

		PlanDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saasboard_plan_denials_total",
			Help: "Requests rejected by the plan gate, by reason.",
		}, []string{"reason"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saasboard_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		ActivityBufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "saasboard_activity_buffer_size",
			Help: "Current number of buffered activity events.",
		}),

		ActivityFlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saasboard_activity_flushes_total",
			Help: "Total number of activity flushes.",
		}, []string{"status"}),

		ActivityEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saasboard_activity_events_total",
			Help: "Total number of activity events written.",
		}),

		ActivityDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saasboard_activity_dropped_total",
			Help: "Activity events dropped because the buffer was full.",
		}, []string{"event"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "saasboard_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthResolutionsTotal,
		m.RoleDenialsTotal,
		m.PlanDenialsTotal,
		m.RateLimitRejectionsTotal,
		m.ActivityBufferSize,
		m.ActivityFlushesTotal,
		m.ActivityEventsTotal,
		m.ActivityDroppedTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveResolution implements auth.Observer.
func (m *Metrics) ObserveResolution(res auth.Resolution) {
	if res.Authenticated() {
		m.AuthResolutionsTotal.WithLabelValues("authenticated", "").Inc()
		return
	}
	m.AuthResolutionsTotal.WithLabelValues("unauthenticated", string(res.Reason)).Inc()
}

// ObservePlanDenial implements plan.DenialObserver.
func (m *Metrics) ObservePlanDenial(reason string) {
	m.PlanDenialsTotal.WithLabelValues(reason).Inc()
}

// IncRoleDenial increments the owner gate rejection counter.
func (m *Metrics) IncRoleDenial() {
	m.RoleDenialsTotal.Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

// ObserveActivityFlush records the outcome of an activity collector flush.
func (m *Metrics) ObserveActivityFlush(n int, err error) {
	if err != nil {
		m.ActivityFlushesTotal.WithLabelValues("error").Inc()
		return
	}
	m.ActivityFlushesTotal.WithLabelValues("ok").Inc()
	m.ActivityEventsTotal.Add(float64(n))
}

// IncActivityDropped counts an event discarded by the activity collector.
func (m *Metrics) IncActivityDropped(event string) {
	m.ActivityDroppedTotal.WithLabelValues(event).Inc()
}

// SetActivityBuffer sets the current activity buffer gauge.
func (m *Metrics) SetActivityBuffer(n int) {
	m.ActivityBufferSize.Set(float64(n))
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(kind, method, pattern string, status, bytes int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(kind, method, pattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(kind, method, pattern).Observe(d.Seconds())
	m.HTTPResponseSize.WithLabelValues(kind, method, pattern).Observe(float64(bytes))
}
