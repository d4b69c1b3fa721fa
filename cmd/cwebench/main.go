// cwebench runs a parallel summation through a coreworks command pool and
// reports its throughput.
//
// Settings come from an optional YAML file (--config) and are overridden by
// flags. With --schedule the workload is resubmitted on a cron schedule until
// the process is interrupted; otherwise it runs --rounds times and exits.
// --metrics-addr serves /metrics and /healthz while the benchmark runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	cwcontext "github.com/vnykmshr/coreworks/pkg/common/context"
	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/engine/pool"
	"github.com/vnykmshr/coreworks/pkg/engine/schedule"
	"github.com/vnykmshr/coreworks/pkg/metrics"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags that do not live in Config.
type options struct {
	configPath  string
	metricsAddr string
	logLevel    string
	schedule    string
	timeout     time.Duration
}

func parseFlags(args []string) (Config, options, error) {
	var opts options
	defaults := DefaultConfig()

	fs := pflag.NewFlagSet("cwebench", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.schedule, "schedule", "", "resubmit the workload on this cron schedule until interrupted")
	fs.DurationVar(&opts.timeout, "timeout", 0, "give up waiting after this long (0 waits forever)")

	workers := fs.IntP("workers", "w", defaults.Workers, "worker slots (0 uses every CPU)")
	mainAsWorker := fs.Bool("main-as-worker", defaults.MainAsWorker, "drain slot 0 on the waiting goroutine")
	fullQueue := fs.String("full-queue", defaults.FullQueue, "full queue policy (block, caller-runs)")
	pin := fs.Bool("pin", defaults.PinWorkers, "pin workers to CPUs")
	size := fs.Uint64P("size", "n", defaults.Workload.Size, "elements summed per round")
	minSize := fs.Uint64("min-size", defaults.Workload.MinSize, "minimum part size (0 splits evenly)")
	rounds := fs.IntP("rounds", "r", defaults.Workload.Rounds, "rounds to run")
	mode := fs.String("mode", defaults.Workload.Mode, "workload mode (split, divide)")
	leaf := fs.Uint64("leaf", defaults.Workload.Leaf, "leaf size in divide mode")

	if err := fs.Parse(args); err != nil {
		return Config{}, opts, err
	}

	cfg := defaults
	if opts.configPath != "" {
		loaded, err := LoadConfig(opts.configPath)
		if err != nil {
			return Config{}, opts, err
		}
		cfg = loaded
	}

	if fs.Changed("workers") {
		cfg.Workers = *workers
	}
	if fs.Changed("main-as-worker") {
		cfg.MainAsWorker = *mainAsWorker
	}
	if fs.Changed("full-queue") {
		cfg.FullQueue = *fullQueue
	}
	if fs.Changed("pin") {
		cfg.PinWorkers = *pin
	}
	if fs.Changed("size") {
		cfg.Workload.Size = *size
	}
	if fs.Changed("min-size") {
		cfg.Workload.MinSize = *minSize
	}
	if fs.Changed("rounds") {
		cfg.Workload.Rounds = *rounds
	}
	if fs.Changed("mode") {
		cfg.Workload.Mode = *mode
	}
	if fs.Changed("leaf") {
		cfg.Workload.Leaf = *leaf
	}

	return cfg, opts, cfg.Validate()
}

func run(args []string) error {
	cfg, opts, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	instruments := metrics.New(metrics.Config{Enabled: true, Registry: reg, Namespace: metrics.DefaultNamespace})

	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return err
	}
	poolCfg.Logger = log
	poolCfg.Metrics = instruments

	p, err := pool.NewSafe(poolCfg)
	if err != nil {
		return err
	}
	defer p.Close()

	requires, err := cfg.Requirement()
	if err != nil {
		return err
	}
	w := Workload{
		Size:     cfg.Workload.Size,
		MinSize:  cfg.Workload.MinSize,
		Mode:     cfg.Workload.Mode,
		Leaf:     cfg.Workload.Leaf,
		Requires: requires,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		go func() {
			if err := serve(ctx, opts.metricsAddr, newRouter(p, reg), log); err != nil {
				log.WithError(err).Error("metrics endpoint failed")
			}
		}()
	}

	if opts.schedule != "" {
		return runScheduled(ctx, p, w, opts.schedule, cfg.MainAsWorker, instruments, log)
	}

	waitCtx, cancel := cwcontext.WithTimeoutOrCancel(ctx, opts.timeout)
	defer cancel()

	report, err := Run(waitCtx, p, w, cfg.Workload.Rounds, log)
	if err != nil {
		if cwcontext.IsTimedOut(waitCtx) {
			return fmt.Errorf("benchmark timed out after %s: %w", opts.timeout, err)
		}
		return err
	}

	log.WithFields(logrus.Fields{
		"workers":    p.Size(),
		"mode":       w.Mode,
		"size":       w.Size,
		"rounds":     report.Rounds,
		"elapsed":    report.Elapsed,
		"best":       report.Best,
		"parts":      report.Executed,
		"elements/s": fmt.Sprintf("%.3g", report.Throughput(w.Size)),
	}).Info("benchmark finished")
	return nil
}

// drainInterval is how often a main-as-worker scheduled run drains slot 0.
const drainInterval = 10 * time.Millisecond

// runScheduled submits the workload on spec until ctx ends. With
// mainAsWorker no background goroutine serves slot 0, so this goroutine
// drains it between ticks.
func runScheduled(ctx context.Context, p *pool.Pool, w Workload, spec string, mainAsWorker bool,
	reg *metrics.Registry, log logrus.FieldLogger) error {
	f := schedule.New(p, schedule.WithLogger(log), schedule.WithMetrics(reg), schedule.SkipIfStillRunning())

	var total atomic.Uint64
	if _, err := f.Add(spec, "cwebench", func() command.Command {
		return w.Command(&total)
	}); err != nil {
		return err
	}

	f.Start()
	log.WithField("schedule", spec).Info("periodic benchmark started")
	if mainAsWorker {
		drain(ctx, p)
	} else {
		<-ctx.Done()
	}

	<-f.Stop().Done()
	p.WaitUntilDone()
	log.WithField("sum", total.Load()).Info("periodic benchmark stopped")
	return nil
}

// drain runs slot 0's queue on the calling goroutine until ctx ends.
func drain(ctx context.Context, p *pool.Pool) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Wait only fails once ctx ends, which the next select observes.
			_ = p.Wait(ctx)
		}
	}
}
