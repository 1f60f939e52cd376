package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/publisher"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Resolver interface {
	Resolve(ctx context.Context, flag *domain.ReconciliationFlag) (uuid.UUID, error)
}

// Consumer retries order creation for flagged payments.
type Consumer struct {
	repo     repository.FlagRepository
	resolver Resolver
	reader   *kafka.Reader
	log      *zap.Logger
}

// NewHandler builds a consumer without a Kafka reader; use Handle directly.
func NewHandler(repo repository.FlagRepository, resolver Resolver, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{repo: repo, resolver: resolver, log: log}
}

func NewConsumer(repo repository.FlagRepository, resolver Resolver, log *zap.Logger, brokers ...string) *Consumer {
	c := NewHandler(repo, resolver, log)
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.Topic,
		GroupID:  "storefront-reconciler",
		MaxBytes: 10e6, // 10MB
	})
	return c
}

func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if c.reader == nil {
		return
	}
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("error reading message", zap.Error(err))
		return
	}

	var ev publisher.FlagEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.log.Error("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	if err := c.Handle(ctx, ev); err != nil {
		c.log.Error("reconciliation retry failed",
			zap.Int64("flag_id", ev.FlagID),
			zap.String("token", ev.Token),
			zap.String("method", ev.Method),
			zap.String("stage", "resolve"),
			zap.Error(err))
	}
}

// Handle resolves one flag. Already resolved flags are skipped.
func (c *Consumer) Handle(ctx context.Context, ev publisher.FlagEvent) error {
	flag, err := c.repo.GetFlag(ctx, ev.FlagID)
	if err != nil {
		return fmt.Errorf("load flag %d: %w", ev.FlagID, err)
	}
	if flag.Status == domain.FlagResolved {
		c.log.Info("flag already resolved, skipping", zap.Int64("flag_id", flag.ID))
		return nil
	}

	orderID, err := c.resolver.Resolve(ctx, flag)
	if err != nil {
		return err
	}
	c.log.Info("order created for flagged payment",
		zap.Int64("flag_id", flag.ID),
		zap.String("token", flag.Token.String()),
		zap.String("order_id", orderID.String()))
	return nil
}
