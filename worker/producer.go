package worker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/zlnvch/sessionq/mq"
)

// SessionPrefix is the default name prefix for demo sessions; session i is
// named SessionPrefix + i.
const SessionPrefix = "session-prefix"

type Producer struct {
	queue   mq.MessageQueue
	limiter *rate.Limiter
	prefix  string
	logger  zerolog.Logger
}

// NewProducer builds a producer over the given queue. sendsPerSecond <= 0
// disables rate limiting.
func NewProducer(queue mq.MessageQueue, prefix string, sendsPerSecond int) *Producer {
	if prefix == "" {
		prefix = SessionPrefix
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if sendsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(sendsPerSecond), 1)
	}

	return &Producer{
		queue:   queue,
		limiter: limiter,
		prefix:  prefix,
		logger:  log.With().Str("component", "producer").Logger(),
	}
}

// SendSessionMessages sends messagesPerSession messages into each of
// sessionCount sessions. Sessions go out in reverse index order; delivery
// order within a session must not depend on send order across sessions.
// Zero for either count is a successful no-op. The first transport error
// aborts and propagates; retries are the transport's business.
func (p *Producer) SendSessionMessages(ctx context.Context, sessionCount int, messagesPerSession int) error {
	if sessionCount <= 0 || messagesPerSession <= 0 {
		return nil
	}

	for i := sessionCount - 1; i >= 0; i-- {
		sessionID := p.prefix + strconv.Itoa(i)

		for j := 0; j < messagesPerSession; j++ {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}

			body := "test" + strconv.Itoa(j)
			if err := p.queue.Send(ctx, sessionID, body); err != nil {
				return fmt.Errorf("send %q to session %s: %w", body, sessionID, err)
			}

			p.logger.Debug().Str("session", sessionID).Str("body", body).Msg("message sent")
		}

		p.logger.Info().Str("session", sessionID).Int("count", messagesPerSession).Msg("session messages sent")
	}

	return nil
}
