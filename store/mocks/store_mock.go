package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/sessionq/store"
)

type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) RecordSessionResult(ctx context.Context, result store.SessionResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockRunStore) GetSessionResult(ctx context.Context, sessionID string) (store.SessionResult, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(store.SessionResult), args.Error(1)
}
