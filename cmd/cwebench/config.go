package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	cwerrors "github.com/vnykmshr/coreworks/pkg/common/errors"
	"github.com/vnykmshr/coreworks/pkg/common/validation"
	"github.com/vnykmshr/coreworks/pkg/engine/pool"
	"github.com/vnykmshr/coreworks/pkg/engine/subscription"
)

// Config is the benchmark configuration, loaded from YAML and overridden by
// flags.
type Config struct {
	// Name labels logs and metrics.
	Name string `yaml:"name"`

	// Workers is the number of worker slots. Zero uses every CPU.
	Workers int `yaml:"workers"`

	// MainAsWorker makes the waiting goroutine drain slot 0.
	MainAsWorker bool `yaml:"main_as_worker"`

	// QueueCapacity bounds each slot queue.
	QueueCapacity int `yaml:"queue_capacity"`

	// FullQueue is "block" or "caller-runs".
	FullQueue string `yaml:"full_queue"`

	// PinWorkers pins each background worker to a CPU.
	PinWorkers bool `yaml:"pin_workers"`

	// IdleBackoff is a duration such as "50us". Negative values only yield.
	IdleBackoff string `yaml:"idle_backoff"`

	// SubscriptionWidth is the number of capability groups.
	SubscriptionWidth int `yaml:"subscription_width"`

	// Slots lists the capability groups of each worker slot by index.
	Slots []SlotConfig `yaml:"slots"`

	// Workload describes what each round submits.
	Workload WorkloadConfig `yaml:"workload"`
}

// SlotConfig configures one worker slot.
type SlotConfig struct {
	Groups []int `yaml:"groups"`
}

// WorkloadConfig describes the benchmark workload.
type WorkloadConfig struct {
	// Size is the number of elements summed per round.
	Size uint64 `yaml:"size"`

	// MinSize is the minimum part size. Zero splits evenly.
	MinSize uint64 `yaml:"min_size"`

	// Rounds is the number of times the workload runs.
	Rounds int `yaml:"rounds"`

	// Mode is "split" for one partitioned range or "divide" for recursive
	// divide and conquer.
	Mode string `yaml:"mode"`

	// Leaf is the range size below which "divide" stops splitting.
	Leaf uint64 `yaml:"leaf"`

	// Groups are the capability groups each submitted command requires.
	Groups []int `yaml:"groups"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Name:      "cwebench",
		FullQueue: "block",
		Workload: WorkloadConfig{
			Size:   1 << 22,
			Rounds: 10,
			Mode:   "split",
			Leaf:   1 << 14,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that the pool does not validate itself.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("cwebench", "workload.rounds", c.Workload.Rounds); err != nil {
		return err
	}
	switch c.Workload.Mode {
	case "split", "divide":
	default:
		return cwerrors.NewValidationError("cwebench", "workload.mode", c.Workload.Mode, "unknown mode").
			WithHint("use split or divide")
	}
	if c.Workload.Mode == "divide" && c.Workload.Leaf == 0 {
		return cwerrors.NewValidationError("cwebench", "workload.leaf", 0, "must be positive in divide mode")
	}
	if _, err := c.fullQueue(); err != nil {
		return err
	}
	if _, err := c.idleBackoff(); err != nil {
		return err
	}
	return nil
}

func (c Config) fullQueue() (pool.FullQueuePolicy, error) {
	switch c.FullQueue {
	case "", "block":
		return pool.FullQueueBlock, nil
	case "caller-runs":
		return pool.FullQueueCallerRuns, nil
	default:
		return 0, cwerrors.NewValidationError("cwebench", "full_queue", c.FullQueue, "unknown policy").
			WithHint("use block or caller-runs")
	}
}

func (c Config) idleBackoff() (time.Duration, error) {
	if c.IdleBackoff == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.IdleBackoff)
	if err != nil {
		return 0, cwerrors.NewValidationError("cwebench", "idle_backoff", c.IdleBackoff, err.Error()).
			WithHint("use a Go duration such as 50us")
	}
	return d, nil
}

func (c Config) width() int {
	if c.SubscriptionWidth == 0 {
		return subscription.DefaultWidth
	}
	return c.SubscriptionWidth
}

// PoolConfig converts c into a pool configuration. Logger and metrics are
// left for the caller to set.
func (c Config) PoolConfig() (pool.Config, error) {
	policy, err := c.fullQueue()
	if err != nil {
		return pool.Config{}, err
	}
	backoff, err := c.idleBackoff()
	if err != nil {
		return pool.Config{}, err
	}

	subs := make([]subscription.Subscription, len(c.Slots))
	for i, slot := range c.Slots {
		if err := c.checkGroups(fmt.Sprintf("slots[%d].groups", i), slot.Groups); err != nil {
			return pool.Config{}, err
		}
		subs[i] = subscription.Groups(c.width(), slot.Groups...)
	}

	return pool.Config{
		Name:              c.Name,
		Workers:           c.Workers,
		MainAsWorker:      c.MainAsWorker,
		QueueCapacity:     c.QueueCapacity,
		FullQueue:         policy,
		PinWorkers:        c.PinWorkers,
		IdleBackoff:       backoff,
		SubscriptionWidth: c.SubscriptionWidth,
		Subscriptions:     subs,
	}, nil
}

// Requirement returns the subscription the workload's commands require.
func (c Config) Requirement() (subscription.Subscription, error) {
	if err := c.checkGroups("workload.groups", c.Workload.Groups); err != nil {
		return subscription.Subscription{}, err
	}
	return subscription.Groups(c.width(), c.Workload.Groups...), nil
}

func (c Config) checkGroups(field string, groups []int) error {
	for _, g := range groups {
		if err := validation.ValidateRange("cwebench", field, g, 0, c.width()-1); err != nil {
			return err
		}
	}
	return nil
}
