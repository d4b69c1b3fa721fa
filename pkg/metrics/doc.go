/*
Package metrics provides Prometheus instrumentation for coreworks.

A Registry groups every collector the engine exports. Pools and schedules take
a *Registry (nil disables instrumentation) and label series by pool or entry
name:

	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.Config{Enabled: true, Registry: reg})

	p := pool.New(pool.Config{Name: "render", Metrics: m})
	defer p.Close()

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

Exported series (namespace "coreworks" unless overridden):

	pool_commands_submitted_total{pool_name}
	pool_commands_rejected_total{pool_name}
	pool_parts_enqueued_total{pool_name}
	pool_parts_executed_total{pool_name}
	pool_parts_failed_total{pool_name}
	pool_parts_inline_total{pool_name}
	pool_part_duration_seconds{pool_name}
	pool_pending_parts{pool_name}
	pool_workers{pool_name}
	pool_queue_depth{pool_name,slot}
	schedule_ticks_total{entry}
	schedule_failures_total{entry}
*/
package metrics
