package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/fjod/go_cart/cart-service/internal/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Reader is the slice of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartEngine receives the decoded events.
type CartEngine interface {
	ReconcileOnCatalogUpdate(ctx context.Context, productID string, price decimal.Decimal, inventory int) error
	ReconcileOnCatalogDeletion(ctx context.Context, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

type Topics struct {
	ProductUpdated string
	ProductDeleted string
	Checkout       string
}

func (t Topics) list() []string {
	topics := []string{}
	for _, topic := range []string{t.ProductUpdated, t.ProductDeleted, t.Checkout} {
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

type Consumer struct {
	reader  Reader
	engine  CartEngine
	topics  Topics
	log     *logger.Logger
	metrics *metrics.Metrics

	// fetchBackOff spaces out fetches after the reader fails.
	fetchBackOff backoff.BackOff
}

// NewReader joins groupID on every configured topic.
func NewReader(brokers []string, groupID string, topics Topics) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics.list(),
		MaxBytes:    10e6, // 10MB
	})
}

func New(reader Reader, engine CartEngine, topics Topics, log *logger.Logger, m *metrics.Metrics) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		reader:  reader,
		engine:  engine,
		topics:  topics,
		log:     log,
		metrics: m,

		fetchBackOff: newFetchBackOff(),
	}
}

func newFetchBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// Run consumes until ctx is cancelled. Every message is committed once it
// has been handled, whatever the outcome; events are never redelivered.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := c.reader.FetchMessage(ctx)
		if errors.Is(err, io.EOF) {
			return // reader closed
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error(ctx, "error reading message", err)
			if !c.wait(ctx, c.fetchBackOff.NextBackOff()) {
				return
			}
			continue
		}
		c.fetchBackOff.Reset()

		c.Handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error(ctx, "error committing message", err)
		}
	}
}

// wait sleeps for d unless ctx ends first.
func (c *Consumer) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error(context.Background(), "error closing reader", err)
	}
}

// Handle routes one message by topic. Malformed payloads are logged and
// dropped.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	ctx = c.log.WithFields(ctx, map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	err := c.dispatch(ctx, msg)
	switch {
	case err == nil:
		c.metrics.CatalogEvent(msg.Topic, metrics.EventProcessed)
	case errors.Is(err, domain.ErrMalformedEvent):
		c.metrics.CatalogEvent(msg.Topic, metrics.EventMalformed)
		c.log.Warn(ctx, fmt.Sprintf("dropping malformed event: %v", err))
	default:
		c.metrics.CatalogEvent(msg.Topic, metrics.EventFailed)
		c.log.Error(ctx, "failed to apply event", err)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case c.topics.ProductUpdated:
		e, err := parseProductUpdated(msg.Value)
		if err != nil {
			return err
		}
		c.log.Info(c.log.WithField(ctx, "product_id", e.ID), "consumed product update")
		return c.engine.ReconcileOnCatalogUpdate(ctx, e.ID, *e.Price, *e.Inventory)
	case c.topics.ProductDeleted:
		e, err := parseProductDeleted(msg.Value)
		if err != nil {
			return err
		}
		c.log.Info(c.log.WithField(ctx, "product_id", e.ProductID), "consumed product deletion")
		return c.engine.ReconcileOnCatalogDeletion(ctx, e.ProductID)
	case c.topics.Checkout:
		e, err := parseCheckoutCompleted(msg.Value)
		if err != nil {
			return err
		}
		err = c.engine.ClearCart(ctx, e.UserID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: unexpected topic %q", domain.ErrMalformedEvent, msg.Topic)
}
