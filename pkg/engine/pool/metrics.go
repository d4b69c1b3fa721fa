package pool

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/coreworks/pkg/metrics"
)

// instruments caches the labeled collectors of one pool. A nil *instruments
// records nothing.
type instruments struct {
	submittedC prometheus.Counter
	rejectedC  prometheus.Counter
	enqueuedC  prometheus.Counter
	executedC  prometheus.Counter
	failedC    prometheus.Counter
	inlineC    prometheus.Counter
	duration   prometheus.Observer
	pending    prometheus.Gauge
	depth      []prometheus.Gauge
}

func newInstruments(reg *metrics.Registry, name string, slots int) *instruments {
	if reg == nil {
		return nil
	}

	inst := &instruments{
		submittedC: reg.CommandsSubmitted.WithLabelValues(name),
		rejectedC:  reg.CommandsRejected.WithLabelValues(name),
		enqueuedC:  reg.PartsEnqueued.WithLabelValues(name),
		executedC:  reg.PartsExecuted.WithLabelValues(name),
		failedC:    reg.PartsFailed.WithLabelValues(name),
		inlineC:    reg.PartsInline.WithLabelValues(name),
		duration:   reg.PartDuration.WithLabelValues(name),
		pending:    reg.PendingParts.WithLabelValues(name),
		depth:      make([]prometheus.Gauge, slots),
	}
	for slot := range inst.depth {
		inst.depth[slot] = reg.QueueDepth.WithLabelValues(name, strconv.Itoa(slot))
	}
	reg.PoolWorkers.WithLabelValues(name).Set(float64(slots))
	return inst
}

func (i *instruments) submitted(parts int) {
	if i == nil {
		return
	}
	i.submittedC.Inc()
	i.enqueuedC.Add(float64(parts))
}

func (i *instruments) rejected() {
	if i == nil {
		return
	}
	i.rejectedC.Inc()
}

func (i *instruments) inline() {
	if i == nil {
		return
	}
	i.inlineC.Inc()
}

func (i *instruments) executed(res Result) {
	if i == nil {
		return
	}
	i.executedC.Inc()
	i.duration.Observe(res.Duration.Seconds())
	if res.Error != nil {
		i.failedC.Inc()
	}
}

func (i *instruments) enqueued() {
	if i == nil {
		return
	}
	i.pending.Inc()
}

func (i *instruments) retired() {
	if i == nil {
		return
	}
	i.pending.Dec()
}

func (i *instruments) setDepth(slot, n int) {
	if i == nil {
		return
	}
	i.depth[slot].Set(float64(n))
}
