package cache

import "context"

// SequenceCache remembers the last completed sequence number per session so
// a later drain can flag redelivery of messages that were already
// acknowledged. Best-effort: entries expire and misses are normal.
type SequenceCache interface {
	LastCompleted(ctx context.Context, sessionID string) (int64, bool, error)
	SetLastCompleted(ctx context.Context, sessionID string, seq int64) error
}

// Noop satisfies SequenceCache when no cache backend is configured.
type Noop struct{}

func (Noop) LastCompleted(ctx context.Context, sessionID string) (int64, bool, error) {
	return 0, false, nil
}

func (Noop) SetLastCompleted(ctx context.Context, sessionID string, seq int64) error {
	return nil
}
