package mq

import (
	"context"
	"errors"
)

// ErrNoSession is returned by AcceptSession when the session has no pending
// messages to lease.
var ErrNoSession = errors.New("no session available")

// Message is one unit of session-ordered delivery. SeqNum and LockToken are
// assigned by the queue service and populated only on receive.
type Message struct {
	Body      string
	SessionID string
	SeqNum    int64
	LockToken string
}

type MessageQueue interface {
	Send(ctx context.Context, sessionID string, body string) error
	AcceptSession(ctx context.Context, sessionID string) (SessionReceiver, error)
	Close(ctx context.Context) error
}

// SessionReceiver is an exclusive lease on one session. At most one receiver
// holds a given session at a time; Close releases the lease.
type SessionReceiver interface {
	SessionID() string
	Receive(ctx context.Context, maxMessages int32) ([]Message, error)
	Complete(ctx context.Context, lockTokens []string) error
	Close(ctx context.Context) error
}
