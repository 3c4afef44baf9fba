package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPCollector exposes Prometheus metrics for inbound HTTP requests and the
// domain-level scrape/dedup/summary pipeline.
type HTTPCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	scrapeDuration   *prometheus.HistogramVec
	scrapeNewTweets  *prometheus.CounterVec
	dedupGroupsTotal *prometheus.CounterVec
	llmCostTotal     *prometheus.CounterVec
	llmCacheHits     prometheus.Counter
	llmCacheMisses   prometheus.Counter
}

// NewHTTPCollector constructs a collector with default histograms/counters.
func NewHTTPCollector() (*HTTPCollector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xfeed",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xfeed",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	scrapeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "xfeed",
		Subsystem: "scraper",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a scrape coordinator run.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	scrapeNewTweets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xfeed",
		Subsystem: "scraper",
		Name:      "new_tweets_total",
		Help:      "Total number of newly persisted tweets by username.",
	}, []string{"username"})

	dedupGroupsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xfeed",
		Subsystem: "dedup",
		Name:      "groups_total",
		Help:      "Total number of dedup groups created, by type.",
	}, []string{"dedup_type"})

	llmCostTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xfeed",
		Subsystem: "llm",
		Name:      "cost_usd_total",
		Help:      "Accumulated LLM spend in USD, by provider.",
	}, []string{"provider"})

	llmCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "xfeed",
		Subsystem: "llm",
		Name:      "cache_hits_total",
		Help:      "Total number of summarisation cache hits.",
	})

	llmCacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "xfeed",
		Subsystem: "llm",
		Name:      "cache_misses_total",
		Help:      "Total number of summarisation cache misses.",
	})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal,
		scrapeDuration, scrapeNewTweets,
		dedupGroupsTotal, llmCostTotal,
		llmCacheHits, llmCacheMisses,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &HTTPCollector{
		registry:         registry,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		scrapeDuration:   scrapeDuration,
		scrapeNewTweets:  scrapeNewTweets,
		dedupGroupsTotal: dedupGroupsTotal,
		llmCostTotal:     llmCostTotal,
		llmCacheHits:     llmCacheHits,
		llmCacheMisses:   llmCacheMisses,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveScrapeRun records the duration of one coordinator run.
func (c *HTTPCollector) ObserveScrapeRun(outcome string, duration time.Duration) {
	c.scrapeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// AddNewTweets increments the per-username new-tweet counter.
func (c *HTTPCollector) AddNewTweets(username string, n int) {
	if n <= 0 {
		return
	}
	c.scrapeNewTweets.WithLabelValues(username).Add(float64(n))
}

// AddDedupGroup increments the dedup-group counter for the given type.
func (c *HTTPCollector) AddDedupGroup(dedupType string) {
	c.dedupGroupsTotal.WithLabelValues(dedupType).Inc()
}

// AddLLMCost accumulates spend for a provider.
func (c *HTTPCollector) AddLLMCost(provider string, costUSD float64) {
	if costUSD <= 0 {
		return
	}
	c.llmCostTotal.WithLabelValues(provider).Add(costUSD)
}

// RecordCacheHit increments the summarisation cache-hit counter.
func (c *HTTPCollector) RecordCacheHit() {
	c.llmCacheHits.Inc()
}

// RecordCacheMiss increments the summarisation cache-miss counter.
func (c *HTTPCollector) RecordCacheMiss() {
	c.llmCacheMisses.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
