package events

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	handleAttempts = 3
	retryBackoff   = 200 * time.Millisecond
	readBackoff    = time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type handlerFunc func(ctx context.Context, m kafka.Message) error

// consumer is the fetch/handle/commit loop shared by the topic consumers.
// A message is committed once it is handled or judged unprocessable, so a
// crash between the two replays it.
type consumer struct {
	name   string
	reader messageReader
	handle handlerFunc
	log    *zap.Logger
}

func newReader(topic, groupID string, brokers []string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func (c *consumer) Run(ctx context.Context) {
	c.log.Info("consumer started", zap.String("consumer", c.name))
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.processMessage(ctx) {
			return
		}
	}
}

func (c *consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.String("consumer", c.name), zap.Error(err))
	}
}

// processMessage reports false once the reader can no longer deliver.
func (c *consumer) processMessage(ctx context.Context) bool {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, io.EOF) {
			return false
		}
		c.log.Warn("error reading message", zap.String("consumer", c.name), zap.Error(err))
		return sleep(ctx, readBackoff)
	}

	log := c.log.With(
		zap.String("consumer", c.name),
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset))

	var handleErr error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		handleErr = c.handle(ctx, m)
		if handleErr == nil || !retryable(handleErr) {
			break
		}
		log.Warn("handler failed, retrying", zap.Int("attempt", attempt), zap.Error(handleErr))
		if !sleep(ctx, retryBackoff*time.Duration(attempt)) {
			return false
		}
	}
	if handleErr != nil {
		log.Error("dropping message", zap.Error(handleErr))
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Warn("commit failed", zap.Error(err))
	}
	return true
}

// retryable is false for errors another delivery cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrInvalidArgument) &&
		!errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrInvalidState)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
