package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/vnykmshr/coreworks/internal/testutil"
	cwerrors "github.com/vnykmshr/coreworks/pkg/common/errors"
	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/engine/pool"
	"github.com/vnykmshr/coreworks/pkg/metrics"
)

// recordingSubmitter keeps every submitted command and fails on demand.
type recordingSubmitter struct {
	mu       sync.Mutex
	commands []command.Command
	err      error
}

func (r *recordingSubmitter) Submit(cmd command.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.commands = append(r.commands, cmd)
	return nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

func noop() command.Command {
	return command.Func(command.Point(0), func(context.Context, *command.FuncCommand) error { return nil })
}

func quietLogger() *logrus.Logger {
	log, _ := logtest.NewNullLogger()
	return log
}

func TestNewPanicsWithoutSubmitter(t *testing.T) {
	defer func() {
		err, ok := recover().(error)
		if !ok {
			t.Fatal("expected New(nil) to panic with an error")
		}
		testutil.AssertEqual(t, cwerrors.IsValidationError(err), true)
	}()
	New(nil)
}

func TestAddValidation(t *testing.T) {
	f := New(&recordingSubmitter{}, WithLogger(quietLogger()))

	tests := []struct {
		name    string
		spec    string
		entry   string
		factory Factory
	}{
		{"empty spec", "", "job", noop},
		{"empty name", "@every 1m", "", noop},
		{"nil factory", "@every 1m", "job", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Add(tt.spec, tt.entry, tt.factory)
			testutil.AssertError(t, err)
			if !errors.Is(err, cwerrors.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}

	t.Run("malformed spec", func(t *testing.T) {
		_, err := f.Add("not a schedule", "job", noop)
		testutil.AssertError(t, err)
	})

	testutil.AssertEqual(t, len(f.Entries()), 0)
}

func TestSecondsField(t *testing.T) {
	f := New(&recordingSubmitter{}, WithLogger(quietLogger()))
	if _, err := f.Add("*/5 * * * * *", "job", noop); err == nil {
		t.Error("expected six-field spec to be rejected without WithSeconds")
	}

	f = New(&recordingSubmitter{}, WithLogger(quietLogger()), WithSeconds())
	_, err := f.Add("*/5 * * * * *", "job", noop)
	testutil.AssertNoError(t, err)
}

func TestTickSubmitsFreshCommand(t *testing.T) {
	sub := &recordingSubmitter{}
	f := New(sub, WithLogger(quietLogger()))

	var built atomic.Int64
	id, err := f.Add("@every 1h", "job", func() command.Command {
		built.Add(1)
		return noop()
	})
	testutil.AssertNoError(t, err)

	job := f.cron.Entry(id).WrappedJob
	job.Run()
	job.Run()

	testutil.AssertEqual(t, built.Load(), int64(2))
	testutil.AssertEqual(t, sub.count(), 2)
	if sub.commands[0] == sub.commands[1] {
		t.Error("expected a new command per tick")
	}
}

func TestTickFailureIsLoggedAndCounted(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	log, hook := logtest.NewNullLogger()

	sub := &recordingSubmitter{err: cwerrors.ErrClosed}
	f := New(sub, WithLogger(log), WithMetrics(reg))

	id, err := f.Add("@every 1h", "nightly", noop)
	testutil.AssertNoError(t, err)

	f.cron.Entry(id).WrappedJob.Run()

	testutil.AssertEqual(t, promtest.ToFloat64(reg.ScheduleTicks.WithLabelValues("nightly")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(reg.ScheduleFailures.WithLabelValues("nightly")), 1.0)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry for the failed tick")
	}
	testutil.AssertEqual(t, entry.Level, logrus.WarnLevel)
	testutil.AssertEqual(t, entry.Data["entry"], interface{}("nightly"))
}

func TestPanickingFactoryIsRecovered(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	f := New(&recordingSubmitter{}, WithLogger(log))

	id, err := f.Add("@every 1h", "broken", func() command.Command {
		panic("factory exploded")
	})
	testutil.AssertNoError(t, err)

	f.cron.Entry(id).WrappedJob.Run()

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected the recovered panic to be logged")
	}
	testutil.AssertEqual(t, entry.Level, logrus.ErrorLevel)
}

func TestEntriesAndRemove(t *testing.T) {
	f := New(&recordingSubmitter{}, WithLogger(quietLogger()))

	hourly, err := f.Add("@hourly", "hourly", noop)
	testutil.AssertNoError(t, err)
	_, err = f.Add("@daily", "daily", noop)
	testutil.AssertNoError(t, err)

	entries := f.Entries()
	testutil.AssertEqual(t, len(entries), 2)

	names := map[string]string{}
	for _, e := range entries {
		names[e.Name] = e.Spec
	}
	testutil.AssertEqual(t, names["hourly"], "@hourly")
	testutil.AssertEqual(t, names["daily"], "@daily")

	f.Remove(hourly)
	entries = f.Entries()
	testutil.AssertEqual(t, len(entries), 1)
	testutil.AssertEqual(t, entries[0].Name, "daily")
}

func TestPeriodicSubmissionsExecute(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}

	p := pool.New(pool.Config{Workers: 2, Logger: quietLogger()})
	defer p.Close()

	var units atomic.Int64
	f := New(p, WithLogger(quietLogger()))
	_, err := f.Add("@every 1s", "sum", func() command.Command {
		return command.Each(command.Span(0, 100, 0), func(context.Context, uint64) error {
			units.Add(1)
			return nil
		})
	})
	testutil.AssertNoError(t, err)

	f.Start()
	testutil.Eventually(t, func() bool { return units.Load() >= 100 }, 5*time.Second, 10*time.Millisecond)

	<-f.Stop().Done()
	p.WaitUntilDone()

	if units.Load()%100 != 0 {
		t.Errorf("expected whole submissions, got %d units", units.Load())
	}
}
