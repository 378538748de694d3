package worker

import (
	"context"
	"sync"
)

// Runner drives the producer and consumer roles concurrently against one
// queue. The roles share only the transport handles, which are safe for
// concurrent use, so no coordination beyond the final join is needed.
type Runner struct {
	producer *Producer
	consumer *Consumer
}

func NewRunner(producer *Producer, consumer *Consumer) *Runner {
	return &Runner{producer: producer, consumer: consumer}
}

func (r *Runner) Run(ctx context.Context, sessionCount int, messagesPerSession int) error {
	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- r.producer.SendSessionMessages(ctx, sessionCount, messagesPerSession)
	}()
	go func() {
		defer wg.Done()
		errCh <- r.consumer.ReceiveSessionMessages(ctx, sessionCount, messagesPerSession)
	}()

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
