package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"newsradar/internal/core"
	"newsradar/internal/logger"
)

// Config mirrors config.Queue; kept separate so this package doesn't import
// internal/config.
type Config struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectPrefix string
	MaxRedeliver  int
}

// NatsQueue is a JetStream-backed Publisher+Consumer: a durable stream with
// a pull consumer, manual ack, and capped redelivery before a message is
// routed to a dead-letter subject.
type NatsQueue struct {
	cfg    Config
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	cons   jetstream.Consumer
}

// Connect dials the NATS server, ensures the durable stream and pull
// consumer exist, and returns a ready-to-use queue.
func Connect(ctx context.Context, cfg Config) (*NatsQueue, error) {
	if cfg.StreamName == "" {
		cfg.StreamName = "ARTICLES"
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "ingestion-worker"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "articles.new"
	}
	if cfg.MaxRedeliver <= 0 {
		cfg.MaxRedeliver = 5
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("newsradar"), nats.RetryOnFailedConnect(true))
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: jetstream: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.SubjectPrefix + ".>", deadLetterSubject(cfg.SubjectPrefix)},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: create stream: %w", err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    cfg.MaxRedeliver,
		FilterSubject: cfg.SubjectPrefix + ".ingest",
		AckWait:       30 * time.Second,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: create consumer: %w", err)
	}

	return &NatsQueue{cfg: cfg, conn: nc, js: js, stream: stream, cons: cons}, nil
}

func deadLetterSubject(prefix string) string {
	return prefix + ".dead-letter"
}

// Publish marshals msg as JSON and publishes it to the ingest subject,
// waiting for the broker's persistence ack.
func (q *NatsQueue) Publish(ctx context.Context, msg core.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: marshal: %w", err)
	}
	_, err = q.js.Publish(ctx, q.cfg.SubjectPrefix+".ingest", data)
	if err != nil {
		return fmt.Errorf("queue: publish: %w", err)
	}
	return nil
}

// Fetch pulls up to max pending messages, waiting for the context's
// deadline if none are immediately available.
func (q *NatsQueue) Fetch(ctx context.Context, max int) ([]Delivery, error) {
	batch, err := q.cons.Fetch(max, jetstream.FetchMaxWait(fetchWait(ctx)))
	if err != nil {
		return nil, fmt.Errorf("queue: fetch: %w", err)
	}

	var out []Delivery
	for msg := range batch.Messages() {
		msg := msg
		var decoded core.QueueMessage
		if err := json.Unmarshal(msg.Data(), &decoded); err != nil {
			logger.Component("queue").Warn("dropping malformed message", "error", err.Error())
			_ = msg.Ack()
			continue
		}

		meta, metaErr := msg.Metadata()
		attempt := 1
		if metaErr == nil {
			attempt = int(meta.NumDelivered)
		}

		out = append(out, Delivery{
			Message: decoded,
			Attempt: attempt,
			Ack:     msg.Ack,
			Nack: func() error {
				if attempt >= q.cfg.MaxRedeliver {
					return q.routeToDeadLetter(context.Background(), msg)
				}
				return msg.Nak()
			},
		})
	}
	if err := batch.Error(); err != nil {
		return out, fmt.Errorf("queue: batch: %w", err)
	}
	return out, nil
}

// routeToDeadLetter republishes the message's payload to the dead-letter
// subject and acks the original so it is not redelivered again.
func (q *NatsQueue) routeToDeadLetter(ctx context.Context, msg jetstream.Msg) error {
	if _, err := q.js.Publish(ctx, deadLetterSubject(q.cfg.SubjectPrefix), msg.Data()); err != nil {
		return fmt.Errorf("queue: dead-letter publish: %w", err)
	}
	return msg.Ack()
}

func fetchWait(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

// Close drains the underlying connection.
func (q *NatsQueue) Close() error {
	return q.conn.Drain()
}
