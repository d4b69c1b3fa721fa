package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	cwerrors "github.com/vnykmshr/coreworks/pkg/common/errors"
	"github.com/vnykmshr/coreworks/pkg/common/validation"
	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/metrics"
)

// Factory builds the command submitted on one tick. A fresh command is built
// per tick because the pool partitions and clones whatever it is given.
type Factory func() command.Command

// Entry describes one registered periodic submission.
type Entry struct {
	ID   cron.EntryID
	Name string
	Spec string
	Prev time.Time
	Next time.Time
}

// Option configures a Feeder.
type Option func(*Feeder)

// WithLogger sets the logger for tick failures and lifecycle events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Feeder) {
		f.log = log
	}
}

// WithMetrics records ticks and failures in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(f *Feeder) {
		f.metrics = reg
	}
}

// WithLocation evaluates schedules in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(f *Feeder) {
		f.location = loc
	}
}

// WithSeconds accepts a leading seconds field in schedule specs.
func WithSeconds() Option {
	return func(f *Feeder) {
		f.parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
}

// SkipIfStillRunning drops a tick while the previous submission of the same
// entry is still in Submit, which only happens when the pool is blocking on
// a full queue.
func SkipIfStillRunning() Option {
	return func(f *Feeder) {
		f.skip = true
	}
}

// Feeder submits commands to a pool on cron schedules.
type Feeder struct {
	submitter command.Submitter
	log       logrus.FieldLogger
	metrics   *metrics.Registry
	location  *time.Location
	parser    cron.Parser
	skip      bool

	cron *cron.Cron

	mu      sync.Mutex
	entries map[cron.EntryID]registration
}

type registration struct {
	name string
	spec string
}

// New creates a Feeder submitting into submitter. It does not start ticking
// until Start is called.
func New(submitter command.Submitter, opts ...Option) *Feeder {
	if err := validation.ValidateNotNil("schedule", "submitter", submitter); err != nil {
		panic(err)
	}

	f := &Feeder{
		submitter: submitter,
		log:       logrus.StandardLogger(),
		location:  time.Local,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries:   make(map[cron.EntryID]registration),
	}
	for _, opt := range opts {
		opt(f)
	}

	logger := cronLogger{log: f.log.WithField("component", "schedule")}
	wrappers := []cron.JobWrapper{cron.Recover(logger)}
	if f.skip {
		wrappers = append(wrappers, cron.SkipIfStillRunning(logger))
	}

	f.cron = cron.New(
		cron.WithParser(f.parser),
		cron.WithLocation(f.location),
		cron.WithLogger(logger),
		cron.WithChain(wrappers...),
	)
	return f
}

// Add registers factory to be submitted on every tick of spec. The name
// labels logs and metrics.
func (f *Feeder) Add(spec, name string, factory Factory) (cron.EntryID, error) {
	if spec == "" {
		return 0, cwerrors.NewValidationError("schedule", "spec", spec, "cannot be empty").
			WithHint("use a cron expression such as \"*/5 * * * *\" or \"@every 1m\"")
	}
	if err := validation.ValidateNotEmpty("schedule", "name", name); err != nil {
		return 0, err
	}
	if factory == nil {
		return 0, cwerrors.NewValidationError("schedule", "factory", nil, "cannot be nil")
	}

	sched, err := f.parser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	id := f.cron.Schedule(sched, cron.FuncJob(func() { f.tick(name, factory) }))

	f.mu.Lock()
	f.entries[id] = registration{name: name, spec: spec}
	f.mu.Unlock()

	f.log.WithFields(logrus.Fields{"entry": name, "spec": spec}).Debug("periodic submission added")
	return id, nil
}

// Remove unregisters an entry. Ticks already running are not interrupted.
func (f *Feeder) Remove(id cron.EntryID) {
	f.cron.Remove(id)

	f.mu.Lock()
	delete(f.entries, id)
	f.mu.Unlock()
}

// tick builds and submits one command.
func (f *Feeder) tick(name string, factory Factory) {
	if f.metrics != nil {
		f.metrics.ScheduleTicks.WithLabelValues(name).Inc()
	}

	err := f.submitter.Submit(factory())
	if err == nil {
		return
	}

	if f.metrics != nil {
		f.metrics.ScheduleFailures.WithLabelValues(name).Inc()
	}
	f.log.WithField("entry", name).WithError(err).Warn("periodic submission failed")
}

// Entries returns the registered entries ordered by their next run.
func (f *Feeder) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Entry
	for _, e := range f.cron.Entries() {
		reg, ok := f.entries[e.ID]
		if !ok {
			continue
		}
		out = append(out, Entry{
			ID:   e.ID,
			Name: reg.name,
			Spec: reg.spec,
			Prev: e.Prev,
			Next: e.Next,
		})
	}
	return out
}

// Start begins ticking in the background. It is a no-op if already started.
func (f *Feeder) Start() {
	f.cron.Start()
}

// Stop halts ticking. The returned context is done once every tick that was
// in progress has returned.
func (f *Feeder) Stop() context.Context {
	return f.cron.Stop()
}

// cronLogger adapts a logrus logger to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	out := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out[key] = keysAndValues[i+1]
	}
	return out
}
