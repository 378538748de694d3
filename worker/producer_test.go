package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zlnvch/sessionq/mq/mocks"
	"github.com/zlnvch/sessionq/worker"
)

func TestSendSessionMessages_ReverseSessionOrder(t *testing.T) {
	mockQueue := new(mocks.MockMQ)
	ctx := context.Background()

	// Record every send as "session/body" in call order
	var sent []string
	mockQueue.On("Send", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = append(sent, args.String(1)+"/"+args.String(2))
	}).Return(nil)

	producer := worker.NewProducer(mockQueue, "session-prefix", 0)
	err := producer.SendSessionMessages(ctx, 2, 2)
	assert.NoError(t, err)

	// Sessions in reverse index order, message bodies ascending within each
	assert.Equal(t, []string{
		"session-prefix1/test0",
		"session-prefix1/test1",
		"session-prefix0/test0",
		"session-prefix0/test1",
	}, sent)
}

func TestSendSessionMessages_ZeroCountsAreNoOps(t *testing.T) {
	mockQueue := new(mocks.MockMQ)
	ctx := context.Background()

	producer := worker.NewProducer(mockQueue, "", 0)
	assert.NoError(t, producer.SendSessionMessages(ctx, 0, 5))
	assert.NoError(t, producer.SendSessionMessages(ctx, 5, 0))

	mockQueue.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendSessionMessages_TransportErrorPropagates(t *testing.T) {
	mockQueue := new(mocks.MockMQ)
	ctx := context.Background()

	transportErr := errors.New("request throttled")
	mockQueue.On("Send", ctx, mock.Anything, mock.Anything).Return(transportErr)

	producer := worker.NewProducer(mockQueue, "", 0)
	err := producer.SendSessionMessages(ctx, 1, 3)
	assert.ErrorIs(t, err, transportErr)

	// No retry in this layer: the first failure aborts the run
	mockQueue.AssertNumberOfCalls(t, "Send", 1)
}

func TestSendSessionMessages_DefaultPrefix(t *testing.T) {
	mockQueue := new(mocks.MockMQ)
	ctx := context.Background()

	mockQueue.On("Send", ctx, worker.SessionPrefix+"0", "test0").Return(nil)

	producer := worker.NewProducer(mockQueue, "", 0)
	assert.NoError(t, producer.SendSessionMessages(ctx, 1, 1))
	mockQueue.AssertExpectations(t)
}
