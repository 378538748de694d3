package sqsmq

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"

	"github.com/zlnvch/sessionq/mq"
)

// sqsClient covers the SQS calls the adapter makes; *sqs.Client satisfies it.
type sqsClient interface {
	ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	ChangeMessageVisibilityBatch(ctx context.Context, params *sqs.ChangeMessageVisibilityBatchInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityBatchOutput, error)
}

const (
	// SQS serves at most 10 messages per receive and 10 entries per batch call
	maxReceiveBatch = 10
	maxBatchEntries = 10

	// Session lease length: a message group stays exclusive while its
	// delivered messages are within this window.
	visibilityTimeout = 60

	acceptWaitSeconds  = 1
	receiveWaitSeconds = 5
)

func newSQSClient(ctx context.Context, devMode bool, sqsEndpoint string) (*sqs.Client, error) {
	var cfg aws.Config
	var err error

	if devMode {
		// Load config with dummy credentials and region for local/dev
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		// Override endpoint for SQS locally
		return sqs.New(sqs.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: sqs.EndpointResolverFromURL(sqsEndpoint),
		}), nil
	}

	// Production: default config (uses ambient role and AWS endpoints)
	cfg, err = config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return sqs.NewFromConfig(cfg), nil
}

func getQueues(client sqsClient, ctx context.Context) ([]string, error) {
	output, err := client.ListQueues(ctx, &sqs.ListQueuesInput{})
	if err != nil {
		return nil, err
	}

	// ListQueuesOutput.QueueUrls can be nil if no queues exist
	if output.QueueUrls == nil {
		return []string{}, nil
	}

	return output.QueueUrls, nil
}

func sendMessage(q *SQSSessionQueue, ctx context.Context, sessionID string, body string) error {
	// FIFO queues require a deduplication id when content-based dedup is off
	dedupId, err := uuid.NewV4()
	if err != nil {
		return err
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.queueURL),
		MessageBody:            aws.String(body),
		MessageGroupId:         aws.String(sessionID),
		MessageDeduplicationId: aws.String(dedupId.String()),
	})
	return err
}

// receiveSessionBatch fetches pending messages for one session. A FIFO
// receive can hand back messages of several groups; foreign groups are
// released right away so their own consumers can lease them.
func receiveSessionBatch(q *SQSSessionQueue, ctx context.Context, sessionID string, maxMessages int32, waitSeconds int32) ([]mq.Message, error) {
	if maxMessages > maxReceiveBatch {
		maxMessages = maxReceiveBatch
	}
	if maxMessages < 1 {
		maxMessages = 1
	}

	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
		VisibilityTimeout:   visibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameMessageGroupId,
			types.MessageSystemAttributeNameSequenceNumber,
		},
	})
	if err != nil {
		return nil, err
	}

	var session []mq.Message
	var foreign []string
	for _, m := range resp.Messages {
		if m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)] == sessionID {
			session = append(session, messageFromSQS(sessionID, m))
		} else {
			foreign = append(foreign, aws.ToString(m.ReceiptHandle))
		}
	}

	if err := releaseMessages(q, ctx, foreign); err != nil {
		return nil, err
	}

	return session, nil
}

func messageFromSQS(sessionID string, m types.Message) mq.Message {
	return mq.Message{
		Body:      aws.ToString(m.Body),
		SessionID: sessionID,
		SeqNum:    parseSequenceNumber(m.Attributes[string(types.MessageSystemAttributeNameSequenceNumber)]),
		LockToken: aws.ToString(m.ReceiptHandle),
	}
}

// parseSequenceNumber normalizes the 128-bit decimal SequenceNumber to int64.
// Only the low 18 digits are kept; these stay increasing within a message
// group for any realistic run, which is all the ordering check needs.
func parseSequenceNumber(s string) int64 {
	if len(s) > 18 {
		s = s[len(s)-18:]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// completeMessages acknowledges delivered messages by receipt handle.
// Per-entry failures are tolerated: a handle that was already completed or
// has expired only warns, so redelivered batches can be completed again.
func completeMessages(q *SQSSessionQueue, ctx context.Context, lockTokens []string) error {
	for start := 0; start < len(lockTokens); start += maxBatchEntries {
		end := start + maxBatchEntries
		if end > len(lockTokens) {
			end = len(lockTokens)
		}

		entries := make([]types.DeleteMessageBatchRequestEntry, 0, end-start)
		for i, token := range lockTokens[start:end] {
			entries = append(entries, types.DeleteMessageBatchRequestEntry{
				Id:            aws.String(strconv.Itoa(i)),
				ReceiptHandle: aws.String(token),
			})
		}

		resp, err := q.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(q.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return err
		}

		for _, f := range resp.Failed {
			log.Warn().
				Str("code", aws.ToString(f.Code)).
				Str("message", aws.ToString(f.Message)).
				Msg("complete rejected for one lock token")
		}
	}

	return nil
}

// releaseMessages makes in-flight messages immediately visible again.
func releaseMessages(q *SQSSessionQueue, ctx context.Context, lockTokens []string) error {
	for start := 0; start < len(lockTokens); start += maxBatchEntries {
		end := start + maxBatchEntries
		if end > len(lockTokens) {
			end = len(lockTokens)
		}

		entries := make([]types.ChangeMessageVisibilityBatchRequestEntry, 0, end-start)
		for i, token := range lockTokens[start:end] {
			entries = append(entries, types.ChangeMessageVisibilityBatchRequestEntry{
				Id:                aws.String(strconv.Itoa(i)),
				ReceiptHandle:     aws.String(token),
				VisibilityTimeout: 0,
			})
		}

		resp, err := q.client.ChangeMessageVisibilityBatch(ctx, &sqs.ChangeMessageVisibilityBatchInput{
			QueueUrl: aws.String(q.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return err
		}

		for _, f := range resp.Failed {
			log.Warn().
				Str("code", aws.ToString(f.Code)).
				Str("message", aws.ToString(f.Message)).
				Msg("release rejected for one lock token")
		}
	}

	return nil
}
