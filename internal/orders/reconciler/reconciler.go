package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	checkoutdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/checkout/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/repository"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/circuitbreaker"
	"github.com/BetterLogicTeam/falcoP-shop-sub000/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/reconciler"

// Request is a provider-confirmed payment and the snapshot it was charged for.
type Request struct {
	Token           uuid.UUID
	ConfirmationRef string
	Method          string
	UserID          string
	AmountMinor     int64
	Snapshot        checkoutdomain.CartSnapshot
}

// Result is never an error for the caller. Flagged means the payment is
// captured but the order is left to out-of-band reconciliation.
type Result struct {
	OrderID   string
	Duplicate bool
	Flagged   bool
	Reason    string
}

type Option func(*Reconciler)

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(r *Reconciler) { r.breaker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

type Reconciler struct {
	repo    repository.Repository
	breaker *circuitbreaker.Breaker
	metrics *metrics.Metrics
	log     *zap.Logger
	tracer  trace.Tracer
	timeout time.Duration
}

func New(repo repository.Repository, log *zap.Logger, opts ...Option) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reconciler{
		repo:    repo,
		log:     log,
		tracer:  otel.Tracer(tracerName),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAnswer reports errors that say nothing about the order store's health.
func IsAnswer(err error) bool {
	return err == nil || errors.Is(err, domain.ErrInvalidOrder)
}

// Reconcile creates the order for a confirmed payment, idempotently by token.
// Any failure records a ReconciliationFlag instead of surfacing an error.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) Result {
	// The money is already taken; the shopper leaving must not stop this.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "orders.Reconcile", trace.WithAttributes(
		attribute.String("token", req.Token.String()),
		attribute.String("method", req.Method),
	))
	defer span.End()

	log := r.log.With(
		zap.String("token", req.Token.String()),
		zap.String("method", req.Method),
		zap.String("confirmation_ref", req.ConfirmationRef),
	)

	order := BuildOrder(req, uuid.New())
	if err := order.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid order")
		return r.flag(ctx, log, req, order, "validation", err)
	}

	got, duplicate, err := r.create(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		return r.flag(ctx, log, req, order, "create_order", err)
	}

	if duplicate {
		r.metrics.Reconciliation("duplicate")
		log.Info("order already exists for token", zap.String("order_id", got.ID.String()))
	} else {
		r.metrics.Reconciliation("created")
		log.Info("order created", zap.String("order_id", got.ID.String()))
	}
	span.SetAttributes(attribute.String("order_id", got.ID.String()))
	return Result{OrderID: got.ID.String(), Duplicate: duplicate}
}

type created struct {
	order     *domain.Order
	duplicate bool
}

func (r *Reconciler) create(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	res, err := circuitbreaker.Execute(r.breaker, func() (created, error) {
		err := r.repo.CreateOrder(ctx, order)
		if err == nil {
			return created{order: order}, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return created{}, err
		}
		existing, lookupErr := r.repo.GetOrderByToken(ctx, order.IdempotencyToken)
		if lookupErr != nil {
			return created{}, fmt.Errorf("lookup existing order: %w", lookupErr)
		}
		return created{order: existing, duplicate: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.order, res.duplicate, nil
}

func (r *Reconciler) flag(ctx context.Context, log *zap.Logger, req Request, order *domain.Order, stage string, cause error) Result {
	reason := cause.Error()
	r.metrics.Reconciliation("flagged")
	log.Error("payment captured without order, flagging for reconciliation",
		zap.String("stage", stage),
		zap.Error(cause))

	payload, err := json.Marshal(order)
	if err != nil {
		log.Error("failed to encode order for reconciliation flag", zap.Error(err))
		return Result{Flagged: true, Reason: reason}
	}

	flag := &domain.ReconciliationFlag{
		Token:           req.Token,
		ConfirmationRef: req.ConfirmationRef,
		Method:          req.Method,
		Payload:         payload,
		Reason:          reason,
	}
	if err := r.repo.RecordFlag(ctx, flag); err != nil {
		// Last resort: the log line carries the whole order.
		log.Error("failed to record reconciliation flag",
			zap.String("stage", "record_flag"),
			zap.ByteString("order", payload),
			zap.Error(err))
	}
	return Result{Flagged: true, Reason: reason}
}

// Resolve retries order creation for a flag and marks it resolved. A
// duplicate token counts as success.
func (r *Reconciler) Resolve(ctx context.Context, flag *domain.ReconciliationFlag) (uuid.UUID, error) {
	ctx, span := r.tracer.Start(ctx, "orders.Resolve", trace.WithAttributes(
		attribute.String("token", flag.Token.String()),
		attribute.Int64("flag_id", flag.ID),
	))
	defer span.End()

	if flag.Status == domain.FlagResolved && flag.OrderID != nil {
		return *flag.OrderID, nil
	}

	var order domain.Order
	if err := json.Unmarshal(flag.Payload, &order); err != nil {
		return uuid.Nil, fmt.Errorf("decode flag payload: %w", err)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	got, _, err := r.create(ctx, &order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retry failed")
		return uuid.Nil, fmt.Errorf("retry order creation: %w", err)
	}

	if err := r.repo.ResolveFlag(ctx, flag.ID, got.ID); err != nil {
		return got.ID, fmt.Errorf("resolve flag: %w", err)
	}
	r.metrics.FlagResolved()
	r.log.Info("reconciliation flag resolved",
		zap.Int64("flag_id", flag.ID),
		zap.String("token", flag.Token.String()),
		zap.String("order_id", got.ID.String()))
	return got.ID, nil
}

// BuildOrder maps a confirmed payment onto the order record.
func BuildOrder(req Request, id uuid.UUID) *domain.Order {
	s := req.Snapshot
	items := make([]domain.OrderItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Size:        it.Size,
			Color:       it.Color,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return &domain.Order{
		ID:               id,
		IdempotencyToken: req.Token,
		ConfirmationRef:  req.ConfirmationRef,
		Method:           req.Method,
		UserID:           req.UserID,
		Email:            s.Contact.Email,
		FullName:         s.Contact.FullName,
		Phone:            s.Contact.Phone,
		Shipping: domain.Address{
			Line1:      s.Shipping.Line1,
			Line2:      s.Shipping.Line2,
			City:       s.Shipping.City,
			Region:     s.Shipping.Region,
			PostalCode: s.Shipping.PostalCode,
			Country:    s.Shipping.Country,
		},
		Items:       items,
		TotalAmount: s.TotalAmount,
		AmountMinor: req.AmountMinor,
		Currency:    s.Currency,
		Status:      domain.OrderStatusConfirmed,
	}
}
