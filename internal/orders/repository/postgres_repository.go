package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/orders/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPostgresRepository(cred *Credentials, log *zap.Logger) (*PostgresRepository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	log.Info("connected to postgres", zap.String("host", cred.Host), zap.String("db", cred.DBName))
	return &PostgresRepository{db: db, log: log}, nil
}

func (r *PostgresRepository) RunMigrations() error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping: %w", err)
	}

	query := `INSERT INTO orders (id, idempotency_token, confirmation_ref, method, user_id, email, full_name, phone,
	                              shipping, items, total_amount, amount_minor, currency, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	          RETURNING created_at, updated_at`

	insertErr := r.db.QueryRowContext(ctx, query,
		order.ID,
		order.IdempotencyToken,
		order.ConfirmationRef,
		order.Method,
		order.UserID,
		order.Email,
		order.FullName,
		order.Phone,
		shippingJSON,
		itemsJSON,
		order.TotalAmount.String(),
		order.AmountMinor,
		order.Currency,
		order.Status).Scan(&order.CreatedAt, &order.UpdatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

const orderColumns = `id, idempotency_token, confirmation_ref, method, user_id, email, full_name, phone,
	                     shipping, items, total_amount, amount_minor, currency, status, created_at, updated_at`

func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *PostgresRepository) GetOrderByToken(ctx context.Context, token uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_token = $1`, token)
}

func (r *PostgresRepository) getOrder(ctx context.Context, query string, arg uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// ListOrdersByUser returns the user's orders, newest first.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON, shippingJSON []byte
	var total string
	err := row.Scan(
		&order.ID,
		&order.IdempotencyToken,
		&order.ConfirmationRef,
		&order.Method,
		&order.UserID,
		&order.Email,
		&order.FullName,
		&order.Phone,
		&shippingJSON,
		&itemsJSON,
		&total,
		&order.AmountMinor,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &order.Shipping); err != nil {
		return nil, fmt.Errorf("unmarshal shipping: %w", err)
	}
	if err := order.TotalAmount.Scan(total); err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}

	return &order, nil
}

func (r *PostgresRepository) RecordFlag(ctx context.Context, flag *domain.ReconciliationFlag) error {
	query := `INSERT INTO reconciliation_flags (token, confirmation_ref, method, payload, reason, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	flag.Status = domain.FlagPending
	err := r.db.QueryRowContext(ctx, query,
		flag.Token,
		flag.ConfirmationRef,
		flag.Method,
		flag.Payload,
		flag.Reason,
		flag.Status).Scan(&flag.ID, &flag.CreatedAt, &flag.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reconciliation flag: %w", err)
	}
	return nil
}

const flagColumns = `id, token, confirmation_ref, method, payload, reason, status, order_id, created_at, updated_at`

func scanFlag(row interface{ Scan(...any) error }) (*domain.ReconciliationFlag, error) {
	var f domain.ReconciliationFlag
	var orderID uuid.NullUUID
	if err := row.Scan(
		&f.ID,
		&f.Token,
		&f.ConfirmationRef,
		&f.Method,
		&f.Payload,
		&f.Reason,
		&f.Status,
		&orderID,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if orderID.Valid {
		id := orderID.UUID
		f.OrderID = &id
	}
	return &f, nil
}

// GetPendingFlags returns flags not yet handed to the queue, oldest first.
func (r *PostgresRepository) GetPendingFlags(ctx context.Context, limit int) ([]*domain.ReconciliationFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM reconciliation_flags
	          WHERE status = $1 ORDER BY created_at LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, domain.FlagPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending flags: %w", err)
	}
	return collectFlags(rows)
}

func collectFlags(rows *sql.Rows) ([]*domain.ReconciliationFlag, error) {
	defer rows.Close()

	var flags []*domain.ReconciliationFlag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flag row: %w", err)
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return flags, nil
}

// GetStaleFlags returns published flags whose last publish is older than
// publishedBefore.
func (r *PostgresRepository) GetStaleFlags(ctx context.Context, publishedBefore time.Time, limit int) ([]*domain.ReconciliationFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM reconciliation_flags
	          WHERE status = $1 AND updated_at < $2 ORDER BY created_at LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, domain.FlagPublished, publishedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale flags: %w", err)
	}
	return collectFlags(rows)
}

func (r *PostgresRepository) GetFlag(ctx context.Context, id int64) (*domain.ReconciliationFlag, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+flagColumns+` FROM reconciliation_flags WHERE id = $1`, id)
	f, err := scanFlag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query flag: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) MarkFlagPublished(ctx context.Context, id int64) error {
	return r.updateFlag(ctx,
		`UPDATE reconciliation_flags SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> $3`,
		domain.FlagPublished, id, domain.FlagResolved)
}

func (r *PostgresRepository) ResolveFlag(ctx context.Context, id int64, orderID uuid.UUID) error {
	return r.updateFlag(ctx,
		`UPDATE reconciliation_flags SET status = $1, order_id = $2, updated_at = NOW() WHERE id = $3`,
		domain.FlagResolved, orderID, id)
}

func (r *PostgresRepository) updateFlag(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update flag: %w", err)
	}
	if n == 0 {
		return ErrFlagNotFound
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
