package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for /metrics/summary.
type Summary struct {
	Pages     httpSummary   `json:"pages"`
	API       httpSummary   `json:"api"`
	Auth      authInfo      `json:"auth"`
	Gates     gateInfo      `json:"gates"`
	RateLimit rateLimitInfo `json:"rateLimit"`
	Activity  activityInfo  `json:"activity"`
	DB        dbInfo        `json:"db"`
	Server    serverInfo    `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type authInfo struct {
	Authenticated   float64            `json:"authenticated"`
	Unauthenticated map[string]float64 `json:"unauthenticated"`
}

type gateInfo struct {
	RoleDenials float64            `json:"roleDenials"`
	PlanDenials map[string]float64 `json:"planDenials"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type activityInfo struct {
	BufferSize  float64 `json:"bufferSize"`
	Flushes     float64 `json:"flushes"`
	FlushErrors float64 `json:"flushErrors"`
	Events      float64 `json:"events"`
	Dropped     float64 `json:"dropped"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
	MaxConns      float64 `json:"maxConns"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// PrometheusHandler serves the private registry in the exposition format.
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Handler returns an http.HandlerFunc that serves a JSON summary.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry and condenses it into a Summary.
func (m *Metrics) Summarize() (*Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	start := gaugeValue(fam["saasboard_server_start_time_seconds"])
	return &Summary{
		Pages: httpFor(fam, "page"),
		API:   httpFor(fam, "api"),
		Auth: authInfo{
			Authenticated:   sumCounterWithLabel(fam["saasboard_auth_resolutions_total"], "outcome", "authenticated"),
			Unauthenticated: byLabel(fam["saasboard_auth_resolutions_total"], "reason", "outcome", "unauthenticated"),
		},
		Gates: gateInfo{
			RoleDenials: sumCounter(fam["saasboard_role_denials_total"]),
			PlanDenials: byLabel(fam["saasboard_plan_denials_total"], "reason", "", ""),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["saasboard_ratelimit_rejections_total"]),
		},
		Activity: activityInfo{
			BufferSize:  gaugeValue(fam["saasboard_activity_buffer_size"]),
			Flushes:     sumCounter(fam["saasboard_activity_flushes_total"]),
			FlushErrors: sumCounterWithLabel(fam["saasboard_activity_flushes_total"], "status", "error"),
			Events:      sumCounter(fam["saasboard_activity_events_total"]),
			Dropped:     sumCounter(fam["saasboard_activity_dropped_total"]),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["saasboard_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["saasboard_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["saasboard_db_pool_acquired_conns"]),
			MaxConns:      gaugeValue(fam["saasboard_db_pool_max_conns"]),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

func httpFor(fam map[string]*dto.MetricFamily, kind string) httpSummary {
	reqs := fam["saasboard_http_requests_total"]
	dur := fam["saasboard_http_request_duration_seconds"]
	return httpSummary{
		TotalRequests: sumCounterWithLabel(reqs, "kind", kind),
		ErrorRate:     errorRateWithLabel(reqs, "kind", kind),
		P50Latency:    histogramPercentile(dur, 0.50, "kind", kind),
		P95Latency:    histogramPercentile(dur, 0.95, "kind", kind),
		P99Latency:    histogramPercentile(dur, 0.99, "kind", kind),
	}
}

// --- Prometheus metric helpers ---

// hasLabel reports whether m carries name=value. An empty name matches all.
func hasLabel(m *dto.Metric, name, value string) bool {
	if name == "" {
		return true
	}
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func sumCounter(f *dto.MetricFamily) float64 {
	return sumCounterWithLabel(f, "", "")
}

func sumCounterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if hasLabel(m, labelName, labelValue) && m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// byLabel sums counters grouped by the value of key, optionally restricted
// to series carrying filterName=filterValue.
func byLabel(f *dto.MetricFamily, key, filterName, filterValue string) map[string]float64 {
	out := map[string]float64{}
	if f == nil {
		return out
	}
	for _, m := range f.GetMetric() {
		if !hasLabel(m, filterName, filterValue) || m.GetCounter() == nil {
			continue
		}
		out[labelValue(m, key)] += m.GetCounter().GetValue()
	}
	return out
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

func errorRateWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if !hasLabel(m, labelName, labelValue) || m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile computes a percentile from the aggregated buckets of
// every series matching labelName=labelValue, using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}

	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		if !hasLabel(m, labelName, labelValue) {
			continue
		}
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	// Fall back to the last finite bucket upper bound.
	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}
