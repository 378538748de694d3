package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zlnvch/sessionq/cache"
	"github.com/zlnvch/sessionq/mq"
	"github.com/zlnvch/sessionq/store"
)

// DefaultDrainTimeout bounds how long a session drain may wait for the
// expected message count before giving up.
const DefaultDrainTimeout = time.Minute

// receiveBatchSize is the contract's per-fetch bound; the transport may
// clamp it to the service maximum.
const receiveBatchSize = 100

// emptyBatchDelay paces the drain loop when the transport returns empty
// without waiting (a no-wait backend or a test double).
const emptyBatchDelay = 50 * time.Millisecond

// SessionIncompleteError reports a session drain that hit its deadline
// before reaching the expected message count.
type SessionIncompleteError struct {
	SessionID string
	Received  int
	Expected  int
}

func (e *SessionIncompleteError) Error() string {
	return fmt.Sprintf("session %s incomplete: received %d of %d before deadline", e.SessionID, e.Received, e.Expected)
}

type Consumer struct {
	queue        mq.MessageQueue
	seqCache     cache.SequenceCache
	results      store.RunStore
	prefix       string
	drainTimeout time.Duration
	logger       zerolog.Logger
}

// NewConsumer builds a consumer over the given queue. seqCache and results
// may be nil, in which case redelivery detection and result persistence are
// disabled.
func NewConsumer(queue mq.MessageQueue, seqCache cache.SequenceCache, results store.RunStore, prefix string, drainTimeout time.Duration) *Consumer {
	if prefix == "" {
		prefix = SessionPrefix
	}
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	if seqCache == nil {
		seqCache = cache.Noop{}
	}
	if results == nil {
		results = store.Noop{}
	}

	return &Consumer{
		queue:        queue,
		seqCache:     seqCache,
		results:      results,
		prefix:       prefix,
		drainTimeout: drainTimeout,
		logger:       log.With().Str("component", "consumer").Logger(),
	}
}

// ReceiveSessionMessages leases each session in ascending index order and
// drains messagesPerSession messages from it. A session with nothing pending
// is skipped; a session that cannot reach the expected count within the drain
// timeout surfaces a SessionIncompleteError.
func (c *Consumer) ReceiveSessionMessages(ctx context.Context, sessionCount int, messagesPerSession int) error {
	for i := 0; i < sessionCount; i++ {
		sessionID := c.prefix + strconv.Itoa(i)

		receiver, err := c.queue.AcceptSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, mq.ErrNoSession) {
				c.logger.Info().Str("session", sessionID).Msg("no session available, skipping")
				continue
			}
			return fmt.Errorf("accept session %s: %w", sessionID, err)
		}

		if err := c.drainSession(ctx, receiver, messagesPerSession); err != nil {
			_ = receiver.Close(context.Background())
			return err
		}

		if err := receiver.Close(ctx); err != nil {
			return fmt.Errorf("close session %s: %w", sessionID, err)
		}
	}

	return nil
}

func (c *Consumer) drainSession(ctx context.Context, receiver mq.SessionReceiver, expected int) error {
	sessionID := receiver.SessionID()

	lastCompleted, haveCompleted, err := c.seqCache.LastCompleted(ctx, sessionID)
	if err != nil {
		c.logger.Warn().Err(err).Str("session", sessionID).Msg("sequence cache unavailable")
	}

	drainCtx, cancel := context.WithTimeout(ctx, c.drainTimeout)
	defer cancel()

	var (
		received  int
		anomalies int
		firstSeq  int64
		lastSeen  int64
	)

	for received < expected {
		batch, err := receiver.Receive(drainCtx, receiveBatchSize)
		if err != nil {
			if drainCtx.Err() != nil && ctx.Err() == nil {
				return &SessionIncompleteError{SessionID: sessionID, Received: received, Expected: expected}
			}
			return fmt.Errorf("receive from session %s: %w", sessionID, err)
		}
		if len(batch) == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if drainCtx.Err() != nil {
				return &SessionIncompleteError{SessionID: sessionID, Received: received, Expected: expected}
			}
			select {
			case <-drainCtx.Done():
			case <-time.After(emptyBatchDelay):
			}
			continue
		}

		// Batch arrival order is not guaranteed to match sequence order.
		sort.Slice(batch, func(a, b int) bool { return batch[a].SeqNum < batch[b].SeqNum })

		lockTokens := make([]string, 0, len(batch))
		for _, msg := range batch {
			// Anomaly detector, not a correctness gate: warn and go on.
			if received > 0 && msg.SeqNum != lastSeen+1 {
				anomalies++
				c.logger.Warn().
					Str("session", sessionID).
					Int64("seq", msg.SeqNum).
					Int64("last_seen", lastSeen).
					Msg("sequence gap detected")
			}
			if haveCompleted && msg.SeqNum <= lastCompleted {
				c.logger.Warn().
					Str("session", sessionID).
					Int64("seq", msg.SeqNum).
					Int64("last_completed", lastCompleted).
					Msg("possible redelivery of a completed message")
			}

			if received == 0 {
				firstSeq = msg.SeqNum
			}
			lastSeen = msg.SeqNum
			received++
			lockTokens = append(lockTokens, msg.LockToken)

			c.logger.Debug().Str("session", sessionID).Int64("seq", msg.SeqNum).Str("body", msg.Body).Msg("message received")
		}

		// Completing only after the whole batch is processed bounds
		// redelivery on crash to at most one batch.
		if err := receiver.Complete(drainCtx, lockTokens); err != nil {
			return fmt.Errorf("complete batch for session %s: %w", sessionID, err)
		}

		if err := c.seqCache.SetLastCompleted(ctx, sessionID, lastSeen); err != nil {
			c.logger.Warn().Err(err).Str("session", sessionID).Msg("failed to record completed sequence")
		}
		lastCompleted, haveCompleted = lastSeen, true
	}

	c.logger.Info().
		Str("session", sessionID).
		Int("received", received).
		Int("anomalies", anomalies).
		Msg("session drained")

	result := store.SessionResult{
		SessionID: sessionID,
		Expected:  expected,
		Received:  received,
		Anomalies: anomalies,
		FirstSeq:  firstSeq,
		LastSeq:   lastSeen,
		Completed: time.Now().Unix(),
	}
	if err := c.results.RecordSessionResult(ctx, result); err != nil {
		c.logger.Warn().Err(err).Str("session", sessionID).Msg("failed to record session result")
	}

	return nil
}
