package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message is fully processed and
// its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const workerBackoff = 200 * time.Millisecond

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start reads until the context is cancelled, fanning messages out to a
// worker pool and committing offsets only after the handler succeeds. A
// failed handler reports through onErr and the worker backs off before
// taking its next message; the uncommitted offset makes the broker
// redeliver. The reader closes only after every worker has drained.
func (c *Consumer) Start(ctx context.Context, h Handler, onErr func(error)) error {
	if onErr == nil {
		onErr = func(error) {}
	}

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					onErr(err)
					sleepCtx(ctx, workerBackoff)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					onErr(err)
				}
			}
		}()
	}

	var readErr error
loop:
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				readErr = err
			}
			break
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			break loop
		}
	}

	close(jobs)
	wg.Wait()
	if err := c.r.Close(); err != nil && readErr == nil {
		readErr = err
	}
	return readErr
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
