package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ProcessorFunc adapts a function to ports.EventProcessor.
type ProcessorFunc func(ctx context.Context, evt domain.Event) error

func (f ProcessorFunc) Process(ctx context.Context, evt domain.Event) error {
	return f(ctx, evt)
}

// Dispatcher routes SSE events to a fixed set of workers using consistent
// hashing on the event's correlation key, preserving per-correlation order.
type Dispatcher struct {
	workers   []chan domain.Event
	processor ports.EventProcessor
	log       zerolog.Logger

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, processor ports.EventProcessor, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.Event, numWorkers),
		processor: processor,
		log:       log,
		done:      make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Event, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		d.once.Do(func() { close(d.done) })
	}()
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue sends an event to the worker responsible for its key. It blocks
// while that worker's buffer is full and drops the event once the
// dispatcher is stopped.
func (d *Dispatcher) Enqueue(evt domain.Event) {
	select {
	case d.workers[d.shardIndex(ShardKey(evt))] <- evt:
	case <-d.done:
		d.log.Debug().Str("kind", evt.Kind.Short()).Msg("dispatcher stopped, event dropped")
	}
}

// ShardKey picks the ordering key of an event: correlation id, then tracking
// number, then business.
func ShardKey(evt domain.Event) string {
	switch {
	case evt.CorrelationID != "":
		return "c:" + evt.CorrelationID
	case evt.TrackingNumber != "":
		return "t:" + evt.TrackingNumber
	default:
		return "b:" + strconv.FormatUint(uint64(evt.BusinessID), 10)
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Event) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			if err := d.processor.Process(ctx, evt); err != nil {
				d.log.Error().Err(err).
					Str("kind", evt.Kind.Short()).
					Str("correlation_id", evt.CorrelationID).
					Int("worker_id", id).
					Msg("event processing failed")
			}
		}
	}
}
