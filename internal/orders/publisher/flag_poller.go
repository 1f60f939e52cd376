package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/repository"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const Topic = "payment-reconciliation"

// FlagEvent is the queue message for one reconciliation flag.
type FlagEvent struct {
	FlagID          int64     `json:"flag_id"`
	Token           string    `json:"token"`
	ConfirmationRef string    `json:"confirmation_ref"`
	Method          string    `json:"method"`
	Reason          string    `json:"reason"`
	FlaggedAt       time.Time `json:"flagged_at"`
}

func NewFlagEvent(f *domain.ReconciliationFlag) FlagEvent {
	return FlagEvent{
		FlagID:          f.ID,
		Token:           f.Token.String(),
		ConfirmationRef: f.ConfirmationRef,
		Method:          f.Method,
		Reason:          f.Reason,
		FlaggedAt:       f.CreatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev FlagEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev FlagEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal flag event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Token),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("reconciliation.flagged")},
			{Key: "flag_id", Value: []byte(strconv.FormatInt(ev.FlagID, 10))},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// HandlerPublisher hands events straight to an in-process handler when no
// broker is configured.
type HandlerPublisher struct {
	handle func(ctx context.Context, ev FlagEvent) error
}

func NewHandlerPublisher(handle func(ctx context.Context, ev FlagEvent) error) *HandlerPublisher {
	return &HandlerPublisher{handle: handle}
}

func (p *HandlerPublisher) Publish(ctx context.Context, ev FlagEvent) error {
	return p.handle(ctx, ev)
}

func (p *HandlerPublisher) Close() error {
	return nil
}

// FlagPoller moves pending reconciliation flags onto the queue and
// republishes flags that stayed unresolved for longer than staleAfter.
type FlagPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	staleAfter   time.Duration
	batch        int
	repo         repository.FlagRepository
	pub          Publisher
	metrics      *metrics.Metrics
	log          *zap.Logger
}

func NewFlagPoller(repo repository.FlagRepository, pub Publisher, m *metrics.Metrics, log *zap.Logger) *FlagPoller {
	if log == nil {
		log = zap.NewNop()
	}
	return &FlagPoller{
		eventTick:    time.Second,
		recoveryTick: 30 * time.Second,
		staleAfter:   5 * time.Minute,
		batch:        100,
		repo:         repo,
		pub:          pub,
		metrics:      m,
		log:          log,
	}
}

func (p *FlagPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processPendingFlags(ctx)
		case <-recoveryTicker.C:
			p.republishStaleFlags(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *FlagPoller) processPendingFlags(ctx context.Context) {
	flags, err := p.repo.GetPendingFlags(ctx, p.batch)
	if err != nil {
		p.log.Error("failed to fetch pending flags", zap.Error(err))
		return
	}
	p.publish(ctx, flags)
}

func (p *FlagPoller) republishStaleFlags(ctx context.Context) {
	flags, err := p.repo.GetStaleFlags(ctx, time.Now().Add(-p.staleAfter), p.batch)
	if err != nil {
		p.log.Error("failed to fetch stale flags", zap.Error(err))
		return
	}
	for _, f := range flags {
		p.log.Warn("republishing unresolved flag", zap.Int64("flag_id", f.ID), zap.String("token", f.Token.String()))
	}
	p.publish(ctx, flags)
}

func (p *FlagPoller) publish(ctx context.Context, flags []*domain.ReconciliationFlag) {
	for _, f := range flags {
		// Marked first so a synchronous handler that resolves the flag
		// is not overwritten afterwards.
		if err := p.repo.MarkFlagPublished(ctx, f.ID); err != nil {
			p.log.Error("failed to mark flag as published", zap.Int64("flag_id", f.ID), zap.Error(err))
			continue
		}
		if err := p.pub.Publish(ctx, NewFlagEvent(f)); err != nil {
			// Stays published and is picked up again once stale.
			p.log.Error("failed to publish flag",
				zap.Int64("flag_id", f.ID),
				zap.String("token", f.Token.String()),
				zap.Error(err))
			continue
		}
		p.metrics.FlagPublished()
	}
}
