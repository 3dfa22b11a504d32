package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/fieldservice-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	slotsGenerated     prometheus.Counter
	conflictsDetected  *prometheus.CounterVec
	eventsMaterialized prometheus.Counter
	bookings           *prometheus.CounterVec
	providerCalls      *prometheus.CounterVec
	autoAssignments    *prometheus.CounterVec
	regenerationJobs   *prometheus.CounterVec

	cacheHitCount         uint64
	cacheMissCount        uint64
	requestCount          uint64
	requestDurationTotal  uint64
	slotCount             uint64
	materializedCount     uint64
	bookingConflictsCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	slotsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_slots_generated_total",
		Help: "Open appointment slots returned to callers",
	})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_conflicts_detected_total",
		Help: "Scheduling conflicts found by type",
	}, []string{"type"})

	eventsMaterialized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_events_materialized_total",
		Help: "Events created from recurring schedules",
	})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maps_provider_calls_total",
		Help: "Distance provider calls by operation and status",
	}, []string{"operation", "status"})

	autoAssignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_auto_assign_total",
		Help: "Auto-assign requests by outcome",
	}, []string{"outcome"})

	regenerationJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_regeneration_jobs_total",
		Help: "Recurring schedule regeneration jobs by status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		slotsGenerated, conflictsDetected, eventsMaterialized, bookings, providerCalls, autoAssignments, regenerationJobs, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		slotsGenerated:     slotsGenerated,
		conflictsDetected:  conflictsDetected,
		eventsMaterialized: eventsMaterialized,
		bookings:           bookings,
		providerCalls:      providerCalls,
		autoAssignments:    autoAssignments,
		regenerationJobs:   regenerationJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// AddSlotsGenerated counts slots handed out by the slot generator.
func (m *MetricsService) AddSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
	atomic.AddUint64(&m.slotCount, uint64(n))
}

// RecordConflicts counts detected conflicts per type.
func (m *MetricsService) RecordConflicts(conflicts []models.Conflict) {
	if m == nil {
		return
	}
	for _, conflict := range conflicts {
		m.conflictsDetected.WithLabelValues(string(conflict.Type)).Inc()
	}
}

// AddEventsMaterialized counts events created from recurring schedules.
func (m *MetricsService) AddEventsMaterialized(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsMaterialized.Add(float64(n))
	atomic.AddUint64(&m.materializedCount, uint64(n))
}

// RecordBooking counts a booking attempt by outcome.
func (m *MetricsService) RecordBooking(status models.BookingStatus) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(string(status)).Inc()
	if status == models.BookingStatusConflict {
		atomic.AddUint64(&m.bookingConflictsCount, 1)
	}
}

// RecordProviderCall counts a distance provider call.
func (m *MetricsService) RecordProviderCall(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerCalls.WithLabelValues(operation, status).Inc()
}

// RecordAutoAssign counts an auto-assign outcome.
func (m *MetricsService) RecordAutoAssign(assigned bool) {
	if m == nil {
		return
	}
	outcome := "unassigned"
	if assigned {
		outcome = "assigned"
	}
	m.autoAssignments.WithLabelValues(outcome).Inc()
}

// RecordRegenerationJob counts a finished regeneration job.
func (m *MetricsService) RecordRegenerationJob(err error) {
	if m == nil {
		return
	}
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	m.regenerationJobs.WithLabelValues(status).Inc()
}

// Snapshot returns aggregated metrics for the status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SlotsGenerated:           atomic.LoadUint64(&m.slotCount),
		EventsMaterialized:       atomic.LoadUint64(&m.materializedCount),
		BookingConflicts:         atomic.LoadUint64(&m.bookingConflictsCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
