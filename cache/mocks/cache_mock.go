package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSequenceCache struct {
	mock.Mock
}

func (m *MockSequenceCache) LastCompleted(ctx context.Context, sessionID string) (int64, bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockSequenceCache) SetLastCompleted(ctx context.Context, sessionID string, seq int64) error {
	args := m.Called(ctx, sessionID, seq)
	return args.Error(0)
}
