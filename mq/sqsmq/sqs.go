package sqsmq

import (
	"context"
	"fmt"
	"strings"

	"github.com/zlnvch/sessionq/mq"
)

// SQSSessionQueue implements the session contract on an SQS FIFO queue.
// Session id maps to MessageGroupId, the sequence number is the
// service-assigned FIFO SequenceNumber and the lock token is the
// ReceiptHandle. The session lease is FIFO in-flight group exclusivity:
// while a group has messages in flight under visibility timeout, no other
// consumer is served that group.
type SQSSessionQueue struct {
	client   sqsClient
	queueURL string
}

func NewSQSSessionQueue(ctx context.Context, devMode bool, sqsEndpoint string, queueName string) (*SQSSessionQueue, error) {
	client, err := newSQSClient(context.Background(), devMode, sqsEndpoint)
	if err != nil {
		return nil, err
	}

	queues, err := getQueues(client, ctx)
	if err != nil {
		return nil, err
	}

	var queueURL string
	foundQueue := false
	for _, q := range queues {
		if strings.HasSuffix(q, "/"+queueName) {
			foundQueue = true
			queueURL = q
			break
		}
	}
	if !foundQueue {
		return nil, fmt.Errorf("given queue name '%s' not found in SQS", queueName)
	}

	return &SQSSessionQueue{client, queueURL}, nil
}

func (q *SQSSessionQueue) Send(ctx context.Context, sessionID string, body string) error {
	return sendMessage(q, ctx, sessionID, body)
}

// AcceptSession probes the queue once for pending messages of the session.
// Messages of other sessions picked up by the probe are made visible again
// immediately; if nothing is pending for this session, ErrNoSession.
func (q *SQSSessionQueue) AcceptSession(ctx context.Context, sessionID string) (mq.SessionReceiver, error) {
	buffered, err := receiveSessionBatch(q, ctx, sessionID, maxReceiveBatch, acceptWaitSeconds)
	if err != nil {
		return nil, err
	}
	if len(buffered) == 0 {
		return nil, mq.ErrNoSession
	}

	return &sqsSessionReceiver{queue: q, sessionID: sessionID, buffered: buffered}, nil
}

func (q *SQSSessionQueue) Close(ctx context.Context) error {
	// The SDK client holds no server-side state; the sender handle just goes away.
	return nil
}

type sqsSessionReceiver struct {
	queue     *SQSSessionQueue
	sessionID string
	buffered  []mq.Message
}

func (r *sqsSessionReceiver) SessionID() string {
	return r.sessionID
}

func (r *sqsSessionReceiver) Receive(ctx context.Context, maxMessages int32) ([]mq.Message, error) {
	if len(r.buffered) > 0 {
		n := len(r.buffered)
		if int32(n) > maxMessages {
			n = int(maxMessages)
		}
		batch := r.buffered[:n]
		r.buffered = r.buffered[n:]
		return batch, nil
	}

	return receiveSessionBatch(r.queue, ctx, r.sessionID, maxMessages, receiveWaitSeconds)
}

func (r *sqsSessionReceiver) Complete(ctx context.Context, lockTokens []string) error {
	return completeMessages(r.queue, ctx, lockTokens)
}

// Close releases the lease: any buffered undelivered messages go back to the
// queue; in-flight delivered-but-uncompleted ones return on visibility expiry.
func (r *sqsSessionReceiver) Close(ctx context.Context) error {
	if len(r.buffered) == 0 {
		return nil
	}

	lockTokens := make([]string, 0, len(r.buffered))
	for _, m := range r.buffered {
		lockTokens = append(lockTokens, m.LockToken)
	}
	r.buffered = nil

	return releaseMessages(r.queue, ctx, lockTokens)
}
