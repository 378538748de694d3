package store

import (
	"context"
	"errors"
)

// SessionResult is the audit record of one drained session.
type SessionResult struct {
	SessionID string
	Expected  int
	Received  int
	Anomalies int
	FirstSeq  int64
	LastSeq   int64
	Completed int64
}

type RunStore interface {
	RecordSessionResult(ctx context.Context, result SessionResult) error
	GetSessionResult(ctx context.Context, sessionID string) (SessionResult, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound = errors.New("item does not exist")
)

// Noop satisfies RunStore when no results table is configured.
type Noop struct{}

func (Noop) RecordSessionResult(ctx context.Context, result SessionResult) error {
	return nil
}

func (Noop) GetSessionResult(ctx context.Context, sessionID string) (SessionResult, error) {
	return SessionResult{}, ErrItemNotFound
}
