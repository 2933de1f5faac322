package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	redeliveryCounter     *prometheus.CounterVec
	idempotencyCounter    *prometheus.CounterVec
	fraudFlagCounter      *prometheus.CounterVec
	notificationCounter   *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
	laneDepthGauge        *prometheus.GaugeVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_outcomes_total",
			Help: "Settlement worker outcomes per transaction kind",
		}, []string{"kind", "outcome"})

		redeliveryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envelope_redeliveries_total",
			Help: "Envelopes reclaimed after an unacknowledged delivery",
		}, []string{"lane"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency guard outcomes",
		}, []string{"outcome"})

		fraudFlagCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraud_flags_total",
			Help: "Accounts flagged by the fraud threshold monitor",
		}, []string{"country"})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_events_total",
			Help: "Notification fan-out outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		laneDepthGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "settlement_lane_depth",
			Help: "Entries currently in each lane's stream",
		}, []string{"lane"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			redeliveryCounter,
			idempotencyCounter,
			fraudFlagCounter,
			notificationCounter,
			workerRunCounter,
			laneDepthGauge,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementSettlement(kind, outcome string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(kind, outcome).Inc()
}

func IncrementRedelivery(lane int) {
	if redeliveryCounter == nil {
		return
	}
	redeliveryCounter.WithLabelValues(strconv.Itoa(lane)).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementFraudFlag(country string) {
	if fraudFlagCounter == nil {
		return
	}
	fraudFlagCounter.WithLabelValues(country).Inc()
}

func IncrementNotification(outcome string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func SetLaneDepth(lane int, depth int64) {
	if laneDepthGauge == nil {
		return
	}
	laneDepthGauge.WithLabelValues(strconv.Itoa(lane)).Set(float64(depth))
}
