package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/vnykmshr/coreworks/pkg/engine/command"
	"github.com/vnykmshr/coreworks/pkg/engine/queue"
)

// BenchmarkPointCommands measures submission and execution overhead of
// single-unit commands.
func BenchmarkPointCommands(b *testing.B) {
	p := New(Config{Workers: 4, Logger: quietLogger()})
	defer p.Close()

	var counter atomic.Int64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Submit(&countCommand{Range: command.Point(uint64(i)), counter: &counter})
	}
	p.WaitUntilDone()
}

// BenchmarkRangeSplit measures splitting one large range across workers.
func BenchmarkRangeSplit(b *testing.B) {
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			p := New(Config{Workers: workers, MainAsWorker: true, Logger: quietLogger()})
			defer p.Close()

			data := make([]float64, 1<<16)
			for i := range data {
				data[i] = float64(i)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				cmd := command.Each(command.Span(0, uint64(len(data)), 0), func(_ context.Context, j uint64) error {
					data[j] *= 1.0000001
					return nil
				})
				_ = p.Submit(cmd)
				p.WaitUntilDone()
			}
		})
	}
}

// BenchmarkQueues compares the bounded and unbounded queue adapters under
// recursive fan-out.
func BenchmarkQueues(b *testing.B) {
	factories := map[string]queue.Factory[command.Command]{
		"mpmc":      queue.MPMCFactory[command.Command](queue.DefaultCapacity),
		"unbounded": queue.UnboundedFactory[command.Command](),
	}

	for name, factory := range factories {
		b.Run(name, func(b *testing.B) {
			p := New(Config{Workers: 4, NewQueue: factory, Logger: quietLogger()})
			defer p.Close()

			var counter atomic.Int64
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = p.Submit(&spawnCommand{Range: command.Span(0, 64, 1), counter: &counter})
				p.WaitUntilDone()
			}
		})
	}
}
