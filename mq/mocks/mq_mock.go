package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/sessionq/mq"
)

type MockMQ struct {
	mock.Mock
}

func (m *MockMQ) Send(ctx context.Context, sessionID string, body string) error {
	args := m.Called(ctx, sessionID, body)
	return args.Error(0)
}

func (m *MockMQ) AcceptSession(ctx context.Context, sessionID string) (mq.SessionReceiver, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(mq.SessionReceiver), args.Error(1)
}

func (m *MockMQ) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockSessionReceiver struct {
	mock.Mock
}

func (m *MockSessionReceiver) SessionID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSessionReceiver) Receive(ctx context.Context, maxMessages int32) ([]mq.Message, error) {
	args := m.Called(ctx, maxMessages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mq.Message), args.Error(1)
}

func (m *MockSessionReceiver) Complete(ctx context.Context, lockTokens []string) error {
	args := m.Called(ctx, lockTokens)
	return args.Error(0)
}

func (m *MockSessionReceiver) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
