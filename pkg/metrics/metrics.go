// Package metrics provides Prometheus instrumentation for coreworks components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless Config overrides it.
const DefaultNamespace = "coreworks"

// Registry holds all metric instances for coreworks components.
type Registry struct {
	// Command Pool Metrics
	CommandsSubmitted *prometheus.CounterVec
	CommandsRejected  *prometheus.CounterVec
	PartsEnqueued     *prometheus.CounterVec
	PartsExecuted     *prometheus.CounterVec
	PartsFailed       *prometheus.CounterVec
	PartsInline       *prometheus.CounterVec
	PartDuration      *prometheus.HistogramVec
	PendingParts      *prometheus.GaugeVec
	PoolWorkers       *prometheus.GaugeVec
	QueueDepth        *prometheus.GaugeVec

	// Schedule Metrics
	ScheduleTicks    *prometheus.CounterVec
	ScheduleFailures *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry bound to prometheus.DefaultRegisterer,
// creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

// New creates a registry from cfg. It returns nil when metrics are disabled.
func New(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Registry == nil {
		return Default()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return newRegistry(cfg.Registry, ns, cfg.Labels)
}

func newRegistry(reg prometheus.Registerer, ns string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		CommandsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "commands_submitted_total",
				Help:        "Total number of commands accepted for execution",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		CommandsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "commands_rejected_total",
				Help:        "Total number of commands no worker subscription accepted",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PartsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "parts_enqueued_total",
				Help:        "Total number of command clones placed on worker queues",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PartsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "parts_executed_total",
				Help:        "Total number of command clones executed",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PartsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "parts_failed_total",
				Help:        "Total number of command clones that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PartsInline: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "parts_inline_total",
				Help:        "Total number of clones run by the submitter because the target queue was full",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PartDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "part_duration_seconds",
				Help:        "Time spent executing command clones",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PendingParts: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "pending_parts",
				Help:        "Command clones enqueued but not yet completed",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		PoolWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "workers",
				Help:        "Number of worker slots in the pool",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "pool",
				Name:        "queue_depth",
				Help:        "Commands waiting on a worker slot's queue",
				ConstLabels: labels,
			},
			[]string{"pool_name", "slot"},
		),

		ScheduleTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "schedule",
				Name:        "ticks_total",
				Help:        "Total number of periodic submissions attempted",
				ConstLabels: labels,
			},
			[]string{"entry"},
		),

		ScheduleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "schedule",
				Name:        "failures_total",
				Help:        "Total number of periodic submissions that were rejected or failed",
				ConstLabels: labels,
			},
			[]string{"entry"},
		),
	}
}
