package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "instancegen_"

var blocksClaimedCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "blocks_claimed_total",
		Help: "Number of block locks acquired by this worker",
	},
)

var lockContentionCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "lock_contention_total",
		Help: "Number of block lock attempts that found the block already locked",
	},
)

var instancesGeneratedCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "instances_generated_total",
		Help: "Number of instance/evaluation pairs written to the store by this worker",
	},
)

var generationOutcomeCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "configuration_outcomes_total",
		Help: "Outcome of each configuration visited by a sweep",
	},
	[]string{"outcome"},
)

var errorsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "errors_total",
		Help: "Errors seen while processing configurations, by kind",
	},
	[]string{"kind"},
)

var passesCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "passes_total",
		Help: "Number of full sweeps over the configuration catalog",
	},
)

var batchDurationHist = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    MetricPrefix + "batch_duration_seconds",
		Help:    "Wall time of one generator invocation",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	},
)

const (
	ErrorKindTransient         = "transient"
	ErrorKindProtocolViolation = "protocol_violation"
	ErrorKindFatal             = "fatal"
)

type Metrics struct{}

var m = &Metrics{}

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordBlockClaimed() {
	blocksClaimedCounter.Inc()
}

func (m *Metrics) RecordLockContention() {
	lockContentionCounter.Inc()
}

func (m *Metrics) RecordInstanceGenerated() {
	instancesGeneratedCounter.Inc()
}

func (m *Metrics) RecordOutcome(outcome string) {
	generationOutcomeCounter.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordError(kind string) {
	errorsCounter.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordPass() {
	passesCounter.Inc()
}

func (m *Metrics) RecordBatchDuration(d time.Duration) {
	batchDurationHist.Observe(d.Seconds())
}
