package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	cwerrors "github.com/vnykmshr/coreworks/pkg/common/errors"
	"github.com/vnykmshr/coreworks/pkg/common/validation"
	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/engine/partition"
	"github.com/vnykmshr/coreworks/pkg/engine/queue"
	"github.com/vnykmshr/coreworks/pkg/engine/subscription"
	"github.com/vnykmshr/coreworks/pkg/metrics"
)

// FullQueuePolicy decides what Submit does when a target worker queue is full.
type FullQueuePolicy int

const (
	// FullQueueBlock waits for space in the target queue.
	FullQueueBlock FullQueuePolicy = iota

	// FullQueueCallerRuns executes the clone on the submitting goroutine
	// when the target queue is full.
	FullQueueCallerRuns
)

func (p FullQueuePolicy) String() string {
	switch p {
	case FullQueueBlock:
		return "block"
	case FullQueueCallerRuns:
		return "caller-runs"
	default:
		return "unknown"
	}
}

// DefaultIdleBackoff is how long an idle worker sleeps between polls once
// yielding alone has not produced work.
const DefaultIdleBackoff = 50 * time.Microsecond

// Result describes one executed command clone.
type Result struct {
	// Command is the clone that ran, with its partitioned range.
	Command command.Command

	// Slot is the worker slot the clone was assigned to.
	Slot int

	// Error is the error returned by Execute, or the recovered panic.
	Error error

	// Duration is how long Execute took.
	Duration time.Duration

	// Inline is true when the submitter ran the clone because the queue was full.
	Inline bool
}

// Config holds configuration options for creating a command pool.
type Config struct {
	// Workers is the number of worker slots. Zero uses runtime.NumCPU().
	Workers int

	// MainAsWorker reserves slot 0 for the goroutine calling WaitUntilDone
	// instead of starting a background worker for it.
	MainAsWorker bool

	// Steal is reserved for work stealing between slots. It has no effect.
	Steal bool

	// Partitioner splits ranges across eligible slots.
	// Defaults to partition.NewEven().
	Partitioner partition.Partitioner

	// NewQueue builds each slot's queue. Defaults to a bounded MPMC queue
	// holding QueueCapacity commands.
	NewQueue queue.Factory[command.Command]

	// QueueCapacity is the capacity of the default queues.
	// Zero uses queue.DefaultCapacity.
	QueueCapacity int

	// SubscriptionWidth is the number of capability groups per slot.
	// Zero uses subscription.DefaultWidth.
	SubscriptionWidth int

	// Subscriptions holds the capability set of each slot, by index.
	// Slots without an entry are unrestricted (all-zero).
	Subscriptions []subscription.Subscription

	// FullQueue selects the behavior when a target queue is full.
	FullQueue FullQueuePolicy

	// PinWorkers locks each background worker to an OS thread pinned to a CPU.
	PinWorkers bool

	// IdleBackoff is the sleep between polls of an idle worker.
	// Zero uses DefaultIdleBackoff; a negative value only yields.
	IdleBackoff time.Duration

	// Name labels log entries and metrics. Defaults to "default".
	Name string

	// Logger receives lifecycle and failure logs.
	// Defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger

	// Metrics receives pool instrumentation. Nil disables it.
	Metrics *metrics.Registry

	// PanicHandler is called when Execute panics.
	// If nil, panics are recovered and reported as errors.
	PanicHandler func(cmd command.Command, recovered interface{})

	// OnWorkerStart is called when a background worker starts.
	OnWorkerStart func(slot int)

	// OnWorkerStop is called when a background worker stops.
	OnWorkerStop func(slot int)

	// OnCommandComplete is called after each clone finishes, before the
	// pending counter is decremented.
	OnCommandComplete func(result Result)
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Partitioner == nil {
		c.Partitioner = partition.NewEven()
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = queue.DefaultCapacity
	}
	if c.NewQueue == nil {
		c.NewQueue = queue.MPMCFactory[command.Command](c.QueueCapacity)
	}
	if c.SubscriptionWidth == 0 {
		c.SubscriptionWidth = subscription.DefaultWidth
	}
	if c.IdleBackoff == 0 {
		c.IdleBackoff = DefaultIdleBackoff
	}
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

func (c Config) validate() error {
	if err := validation.ValidateNonNegative("pool", "workers", c.Workers); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pool", "queue_capacity", c.QueueCapacity); err != nil {
		return err
	}
	if c.SubscriptionWidth != 0 {
		if err := validation.ValidateRange("pool", "subscription_width", c.SubscriptionWidth, 1, subscription.MaxWidth); err != nil {
			return err
		}
	}
	if c.FullQueue != FullQueueBlock && c.FullQueue != FullQueueCallerRuns {
		return cwerrors.NewValidationError("pool", "full_queue", int(c.FullQueue), "unknown policy").
			WithHint("use FullQueueBlock or FullQueueCallerRuns")
	}
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if len(c.Subscriptions) > workers {
		return cwerrors.NewValidationError("pool", "subscriptions", len(c.Subscriptions), "more entries than worker slots").
			WithHint("provide at most one subscription per worker")
	}
	width := c.SubscriptionWidth
	if width == 0 {
		width = subscription.DefaultWidth
	}
	for slot, s := range c.Subscriptions {
		if err := checkWidth(slot, s, width); err != nil {
			return err
		}
	}
	return nil
}

func checkWidth(slot int, s subscription.Subscription, width int) error {
	if s.Width() != width {
		return cwerrors.NewValidationError("pool", "subscription_width", s.Width(),
			fmt.Sprintf("slot %d subscription does not match pool width %d", slot, width)).
			WithHint("build slot subscriptions with the pool's SubscriptionWidth")
	}
	return nil
}

// Pool is a fixed set of worker slots, each with its own queue and
// capability subscription. Submitted commands are filtered by subscription,
// partitioned across the accepting slots and executed as clones.
type Pool struct {
	config Config
	size   int
	log    logrus.FieldLogger
	inst   *instruments

	queues []queue.Adapter[command.Command]
	stop   []atomic.Bool

	// subs is written only before the pool is sealed by its first submission.
	mu     sync.Mutex
	subs   []subscription.Subscription
	sealed atomic.Bool
	routes sync.Map // subscription.Subscription -> []int

	pending atomic.Int64
	running atomic.Int32

	totalSubmitted atomic.Int64
	totalRejected  atomic.Int64
	totalExecuted  atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	started   sync.WaitGroup
	workerWg  sync.WaitGroup
}

// New creates a command pool with the specified configuration.
// It panics if the configuration is invalid; use NewSafe to get an error.
func New(config Config) *Pool {
	p, err := NewSafe(config)
	if err != nil {
		panic(err)
	}
	return p
}

// NewSafe creates a command pool, returning a validation error for an
// invalid configuration. It returns once every background worker is running.
func NewSafe(config Config) (*Pool, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	n := config.Workers
	p := &Pool{
		config: config,
		size:   n,
		log:    config.Logger.WithField("pool", config.Name),
		inst:   newInstruments(config.Metrics, config.Name, n),
		queues: make([]queue.Adapter[command.Command], n),
		stop:   make([]atomic.Bool, n),
		subs:   make([]subscription.Subscription, n),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	for slot := 0; slot < n; slot++ {
		p.queues[slot] = config.NewQueue()
		if slot < len(config.Subscriptions) {
			p.subs[slot] = config.Subscriptions[slot]
		} else {
			p.subs[slot] = subscription.New(config.SubscriptionWidth)
		}
	}

	if config.Steal {
		p.log.Debug("work stealing requested; slots still only drain their own queue")
	}

	first := 0
	if config.MainAsWorker {
		first = 1
	}
	for slot := first; slot < n; slot++ {
		p.started.Add(1)
		p.workerWg.Add(1)
		go p.work(slot)
	}
	p.started.Wait()

	p.log.WithFields(logrus.Fields{
		"workers":        n,
		"main_as_worker": config.MainAsWorker,
		"full_queue":     config.FullQueue.String(),
	}).Debug("command pool started")

	return p, nil
}

// SetSubscription replaces the capability set of a slot. The subscription
// must have the pool's SubscriptionWidth. It must be called before the first
// submission; afterwards it returns errors.ErrSealed.
func (p *Pool) SetSubscription(slot int, s subscription.Subscription) error {
	if err := p.checkSlot(slot); err != nil {
		return err
	}
	if err := checkWidth(slot, s, p.config.SubscriptionWidth); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed.Load() {
		return cwerrors.NewOperationError("pool", "SetSubscription", cwerrors.ErrSealed).
			WithContext("subscriptions are fixed once commands have been submitted")
	}
	p.subs[slot] = s
	return nil
}

// Subscription returns the capability set of a slot.
func (p *Pool) Subscription(slot int) (subscription.Subscription, error) {
	if err := p.checkSlot(slot); err != nil {
		return subscription.Subscription{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs[slot], nil
}

func (p *Pool) checkSlot(slot int) error {
	if slot < 0 || slot >= p.size {
		return cwerrors.NewValidationError("pool", "slot", slot, "no such worker slot").
			WithHint("use a slot between 0 and Size()-1")
	}
	return nil
}

// seal freezes the slot subscriptions.
func (p *Pool) seal() {
	if p.sealed.Load() {
		return
	}
	p.mu.Lock()
	p.sealed.Store(true)
	p.mu.Unlock()
}

// eligible returns the slots whose subscription accepts required, in slot order.
func (p *Pool) eligible(required subscription.Subscription) []int {
	if cached, ok := p.routes.Load(required); ok {
		return cached.([]int)
	}

	var slots []int
	for slot, s := range p.subs {
		if s.Accepts(required) {
			slots = append(slots, slot)
		}
	}
	p.routes.Store(required, slots)
	return slots
}

// Size returns the number of worker slots in the pool.
func (p *Pool) Size() int {
	return p.size
}

// QueueLen returns the number of commands waiting on a slot's queue.
func (p *Pool) QueueLen(slot int) int {
	return p.queues[slot].Len()
}

// Pending returns the number of clones enqueued but not yet completed.
func (p *Pool) Pending() int64 {
	return p.pending.Load()
}

// IsDone reports whether every submitted clone has completed.
func (p *Pool) IsDone() bool {
	return p.pending.Load() == 0
}

// TotalSubmitted returns the number of commands accepted by Submit.
func (p *Pool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalRejected returns the number of commands no slot accepted.
func (p *Pool) TotalRejected() int64 {
	return p.totalRejected.Load()
}

// TotalExecuted returns the number of clones that finished executing.
func (p *Pool) TotalExecuted() int64 {
	return p.totalExecuted.Load()
}
