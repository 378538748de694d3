package worker_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zlnvch/sessionq/mq"
	"github.com/zlnvch/sessionq/worker"
)

// memoryQueue is an in-memory session queue for end-to-end tests: sequence
// numbers are assigned per session on send, receives move messages in flight
// and Complete drops them by lock token (idempotently, like the real service).
type memoryQueue struct {
	mu        sync.Mutex
	pending   map[string][]mq.Message
	inflight  map[string]mq.Message
	nextSeq   map[string]int64
	delivered []string
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{
		pending:  make(map[string][]mq.Message),
		inflight: make(map[string]mq.Message),
		nextSeq:  make(map[string]int64),
	}
}

func (q *memoryQueue) Send(ctx context.Context, sessionID string, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSeq[sessionID]++
	seq := q.nextSeq[sessionID]
	q.pending[sessionID] = append(q.pending[sessionID], mq.Message{
		Body:      body,
		SessionID: sessionID,
		SeqNum:    seq,
		LockToken: sessionID + "#" + strconv.FormatInt(seq, 10),
	})
	return nil
}

func (q *memoryQueue) AcceptSession(ctx context.Context, sessionID string) (mq.SessionReceiver, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending[sessionID]) == 0 {
		return nil, mq.ErrNoSession
	}
	return &memoryReceiver{queue: q, sessionID: sessionID}, nil
}

func (q *memoryQueue) Close(ctx context.Context) error { return nil }

func (q *memoryQueue) residual() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.inflight)
	for _, msgs := range q.pending {
		n += len(msgs)
	}
	return n
}

type memoryReceiver struct {
	queue     *memoryQueue
	sessionID string
}

func (r *memoryReceiver) SessionID() string { return r.sessionID }

func (r *memoryReceiver) Receive(ctx context.Context, maxMessages int32) ([]mq.Message, error) {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()

	msgs := r.queue.pending[r.sessionID]
	n := len(msgs)
	if int32(n) > maxMessages {
		n = int(maxMessages)
	}

	batch := msgs[:n]
	r.queue.pending[r.sessionID] = msgs[n:]
	for _, m := range batch {
		r.queue.inflight[m.LockToken] = m
		r.queue.delivered = append(r.queue.delivered, m.Body)
	}
	return batch, nil
}

func (r *memoryReceiver) Complete(ctx context.Context, lockTokens []string) error {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()

	for _, token := range lockTokens {
		delete(r.queue.inflight, token)
	}
	return nil
}

func (r *memoryReceiver) Close(ctx context.Context) error { return nil }

func TestProducerConsumer_EndToEnd(t *testing.T) {
	queue := newMemoryQueue()
	ctx := context.Background()

	producer := worker.NewProducer(queue, "session-prefix", 0)
	consumer := worker.NewConsumer(queue, nil, nil, "session-prefix", time.Second)

	assert.NoError(t, producer.SendSessionMessages(ctx, 1, 3))
	assert.NoError(t, consumer.ReceiveSessionMessages(ctx, 1, 3))

	// Bodies observed in order, session fully drained, nothing left behind
	assert.Equal(t, []string{"test0", "test1", "test2"}, queue.delivered)
	assert.Equal(t, 0, queue.residual())
}

func TestProducerConsumer_ReverseSendOrderKeepsPerSessionOrder(t *testing.T) {
	queue := newMemoryQueue()
	ctx := context.Background()

	producer := worker.NewProducer(queue, "session-prefix", 0)
	consumer := worker.NewConsumer(queue, nil, nil, "session-prefix", time.Second)

	// Producer iterates sessions in reverse; each session must still drain
	// its own messages in body order
	assert.NoError(t, producer.SendSessionMessages(ctx, 3, 2))
	assert.NoError(t, consumer.ReceiveSessionMessages(ctx, 3, 2))

	assert.Equal(t, []string{
		"test0", "test1", // session-prefix0
		"test0", "test1", // session-prefix1
		"test0", "test1", // session-prefix2
	}, queue.delivered)
	assert.Equal(t, 0, queue.residual())
}

func TestRunner_JoinsBothRoles(t *testing.T) {
	queue := newMemoryQueue()
	ctx := context.Background()

	producer := worker.NewProducer(queue, "session-prefix", 0)
	consumer := worker.NewConsumer(queue, nil, nil, "session-prefix", time.Second)

	// Roles tolerate arbitrary interleaving: the consumer may find a session
	// before or after its messages land, and simply skips when it is early.
	err := worker.NewRunner(producer, consumer).Run(ctx, 2, 2)
	assert.NoError(t, err)
}
