package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/zlnvch/sessionq/cache"
	rediscache "github.com/zlnvch/sessionq/cache/redis"
	"github.com/zlnvch/sessionq/mq/sqsmq"
	"github.com/zlnvch/sessionq/store"
	"github.com/zlnvch/sessionq/store/dynamo"
	"github.com/zlnvch/sessionq/worker"
)

const defaultQueueName = "SessionMessagesQueue.fifo"

type flags struct {
	queueName        string
	sqsEndpoint      string
	redisEndpoint    string
	dynamodbEndpoint string
	resultsTable     string
	sessionPrefix    string
	drainTimeout     string
	logLevel         string
	sessions         int64
	messages         int64
	sendRate         int64
	devMode          bool
}

func main() {
	f := &flags{}

	app := &cli.Command{
		Name:      "sessionq",
		Usage:     "Session-ordered send/receive demo against an SQS FIFO queue",
		UsageText: "sessionq [global options] [send|receive|fork]",
		Description: `Sends a fixed number of messages into each of several sessions (FIFO
message groups), then leases each session and drains it in sequence order,
reporting ordering anomalies along the way.

With no subcommand both roles run concurrently in one process. The send and
receive subcommands run one role each, so the two halves can live in separate
processes talking only through the queue; fork spawns both as children.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "queue",
				Usage:       "name of the SQS FIFO queue",
				Sources:     cli.EnvVars("SESSIONQ_QUEUE"),
				Value:       defaultQueueName,
				Destination: &f.queueName,
			},
			&cli.StringFlag{
				Name:        "sqs-endpoint",
				Usage:       "SQS endpoint override for dev mode",
				Sources:     cli.EnvVars("SQS_ENDPOINT"),
				Destination: &f.sqsEndpoint,
			},
			&cli.StringFlag{
				Name:        "redis-endpoint",
				Usage:       "redis endpoint for the sequence cache (optional)",
				Sources:     cli.EnvVars("REDIS_ENDPOINT"),
				Destination: &f.redisEndpoint,
			},
			&cli.StringFlag{
				Name:        "dynamodb-endpoint",
				Usage:       "DynamoDB endpoint override for dev mode",
				Sources:     cli.EnvVars("DYNAMODB_ENDPOINT"),
				Destination: &f.dynamodbEndpoint,
			},
			&cli.StringFlag{
				Name:        "results-table",
				Usage:       "DynamoDB table for per-session results (optional)",
				Sources:     cli.EnvVars("SESSIONQ_RESULTS_TABLE"),
				Destination: &f.resultsTable,
			},
			&cli.StringFlag{
				Name:        "session-prefix",
				Usage:       "name prefix for demo sessions",
				Sources:     cli.EnvVars("SESSIONQ_PREFIX"),
				Value:       worker.SessionPrefix,
				Destination: &f.sessionPrefix,
			},
			&cli.IntFlag{
				Name:        "sessions",
				Usage:       "number of sessions",
				Sources:     cli.EnvVars("SESSIONQ_SESSIONS"),
				Value:       4,
				Destination: &f.sessions,
			},
			&cli.IntFlag{
				Name:        "messages",
				Usage:       "messages per session",
				Sources:     cli.EnvVars("SESSIONQ_MESSAGES"),
				Value:       3,
				Destination: &f.messages,
			},
			&cli.IntFlag{
				Name:        "send-rate",
				Usage:       "max sends per second, 0 for unlimited",
				Sources:     cli.EnvVars("SESSIONQ_SEND_RATE"),
				Destination: &f.sendRate,
			},
			&cli.StringFlag{
				Name:        "drain-timeout",
				Usage:       "max wait per session drain (e.g., 30s, 2m)",
				Sources:     cli.EnvVars("SESSIONQ_DRAIN_TIMEOUT"),
				Value:       "60s",
				Destination: &f.drainTimeout,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("SESSIONQ_LOG_LEVEL"),
				Value:       "info",
				Destination: &f.logLevel,
			},
			&cli.BoolFlag{
				Name:        "dev",
				Usage:       "use dummy credentials and endpoint overrides",
				Sources:     cli.EnvVars("DEV_MODE"),
				Destination: &f.devMode,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			return ctx, setupLogger(f.logLevel)
		},
		Commands: []*cli.Command{
			{
				Name:  "send",
				Usage: "run the producer role only",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runSend(ctx, f)
				},
			},
			{
				Name:  "receive",
				Usage: "run the consumer role only",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runReceive(ctx, f)
				},
			},
			{
				Name:  "fork",
				Usage: "spawn send and receive as child processes and wait for both",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runFork(ctx, f)
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unknown command %q. Run 'sessionq --help' for usage", c.Args().First())
			}
			return runBoth(ctx, f)
		},
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := app.Run(shutdownCtx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
}

func setupLogger(level string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(parsedLevel)
	return nil
}

func newSessionQueue(ctx context.Context, f *flags) (*sqsmq.SQSSessionQueue, error) {
	queue, err := sqsmq.NewSQSSessionQueue(ctx, f.devMode, f.sqsEndpoint, f.queueName)
	if err != nil {
		return nil, fmt.Errorf("create SQS session queue: %w", err)
	}
	return queue, nil
}

// newConsumer wires the consumer and returns a cleanup releasing any cache
// client it opened; callers defer the cleanup at shutdown.
func newConsumer(ctx context.Context, f *flags, queue *sqsmq.SQSSessionQueue) (*worker.Consumer, func(), error) {
	cleanup := func() {}

	drainTimeout, err := time.ParseDuration(f.drainTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("parse drain timeout: %w", err)
	}

	var seqCache cache.SequenceCache = cache.Noop{}
	if f.redisEndpoint != "" {
		redisCache, err := rediscache.NewRedisSequenceCache(ctx, f.devMode, f.redisEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis sequence cache: %w", err)
		}
		seqCache = redisCache
		cleanup = func() {
			if err := redisCache.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close redis client")
			}
		}
	}

	var results store.RunStore = store.Noop{}
	if f.resultsTable != "" {
		results, err = dynamo.NewDynamoRunStore(ctx, f.devMode, f.dynamodbEndpoint, f.resultsTable)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create dynamodb run store: %w", err)
		}
	}

	return worker.NewConsumer(queue, seqCache, results, f.sessionPrefix, drainTimeout), cleanup, nil
}

func runSend(ctx context.Context, f *flags) error {
	queue, err := newSessionQueue(ctx, f)
	if err != nil {
		return err
	}
	defer queue.Close(context.Background())

	producer := worker.NewProducer(queue, f.sessionPrefix, int(f.sendRate))
	return producer.SendSessionMessages(ctx, int(f.sessions), int(f.messages))
}

func runReceive(ctx context.Context, f *flags) error {
	queue, err := newSessionQueue(ctx, f)
	if err != nil {
		return err
	}
	defer queue.Close(context.Background())

	consumer, cleanup, err := newConsumer(ctx, f, queue)
	if err != nil {
		return err
	}
	defer cleanup()

	return consumer.ReceiveSessionMessages(ctx, int(f.sessions), int(f.messages))
}

func runBoth(ctx context.Context, f *flags) error {
	queue, err := newSessionQueue(ctx, f)
	if err != nil {
		return err
	}
	defer queue.Close(context.Background())

	consumer, cleanup, err := newConsumer(ctx, f, queue)
	if err != nil {
		return err
	}
	defer cleanup()

	producer := worker.NewProducer(queue, f.sessionPrefix, int(f.sendRate))

	return worker.NewRunner(producer, consumer).Run(ctx, int(f.sessions), int(f.messages))
}

// runFork re-execs this binary as one send and one receive child, with the
// resolved configuration handed down through the environment. Pure process
// glue; the children talk only through the queue.
func runFork(ctx context.Context, f *flags) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}

	env := append(os.Environ(),
		"SESSIONQ_QUEUE="+f.queueName,
		"SQS_ENDPOINT="+f.sqsEndpoint,
		"REDIS_ENDPOINT="+f.redisEndpoint,
		"DYNAMODB_ENDPOINT="+f.dynamodbEndpoint,
		"SESSIONQ_RESULTS_TABLE="+f.resultsTable,
		"SESSIONQ_PREFIX="+f.sessionPrefix,
		"SESSIONQ_SESSIONS="+strconv.FormatInt(f.sessions, 10),
		"SESSIONQ_MESSAGES="+strconv.FormatInt(f.messages, 10),
		"SESSIONQ_SEND_RATE="+strconv.FormatInt(f.sendRate, 10),
		"SESSIONQ_DRAIN_TIMEOUT="+f.drainTimeout,
		"SESSIONQ_LOG_LEVEL="+f.logLevel,
		"DEV_MODE="+strconv.FormatBool(f.devMode),
	)

	children := make([]*exec.Cmd, 0, 2)
	for _, mode := range []string{"send", "receive"} {
		child := exec.CommandContext(ctx, self, mode)
		child.Env = env
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			return fmt.Errorf("start %s child: %w", mode, err)
		}
		log.Info().Str("mode", mode).Int("pid", child.Process.Pid).Msg("child started")
		children = append(children, child)
	}

	var firstErr error
	for _, child := range children {
		if err := child.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
