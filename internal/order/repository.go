package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vox-be/internal/apperr"
	"vox-be/internal/db"
	"vox-be/internal/logger"
	"vox-be/internal/sequence"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// CreateOrder allocates the sequential id and inserts the order in one
	// transaction. A second order for the same payment id yields
	// ErrDuplicatePayment.
	CreateOrder(ctx context.Context, o *Order) error
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	GetBySequentialID(ctx context.Context, sequentialID int64) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)

	// MarkPaid and MarkFailed are conditional; changed is false when the order
	// is missing or already in a state the transition does not apply to.
	MarkPaid(ctx context.Context, intentID, paymentID string) (o *Order, changed bool, err error)
	MarkFailed(ctx context.Context, intentID string) (o *Order, changed bool, err error)
}

type repository struct {
	db  *sql.DB
	seq sequence.Allocator
}

func NewRepository(db *sql.DB, seq sequence.Allocator) Repository {
	return &repository{db: db, seq: seq}
}

const orderColumns = `
	id, sequential_id, user_id, address, items,
	payment_method, amount, currency,
	razorpay_order_id, razorpay_payment_id, razorpay_signature,
	status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var (
		o            Order
		userID       sql.NullString
		addr, items  []byte
		rzpOrder     sql.NullString
		rzpPayment   sql.NullString
		rzpSignature sql.NullString
	)

	if err := row.Scan(
		&o.ID, &o.SequentialID, &userID, &addr, &items,
		&o.PaymentMethod, &o.Amount, &o.Currency,
		&rzpOrder, &rzpPayment, &rzpSignature,
		&o.Status, &o.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(addr, &o.Address); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	o.UserID = nullable(userID)
	o.RazorpayOrderID = nullable(rzpOrder)
	o.RazorpayPaymentID = nullable(rzpPayment)
	o.RazorpaySignature = nullable(rzpSignature)

	return &o, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "CreateOrder"),
	)

	addr, err := json.Marshal(o.Address)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create order", "encode address", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create order", "encode items", err)
	}

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. Allocate the human-facing number on the same transaction
		seq, err := r.seq.Next(ctx, tx)
		if err != nil {
			return err
		}

		// 2. Insert order
		const q = `
			INSERT INTO orders (
				id, sequential_id, user_id, address, items,
				payment_method, amount, currency,
				razorpay_order_id, razorpay_payment_id, razorpay_signature,
				status
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			RETURNING created_at
		`
		if err := tx.QueryRowContext(ctx, q,
			o.ID, seq, o.UserID, addr, items,
			o.PaymentMethod, o.Amount, o.Currency,
			o.RazorpayOrderID, o.RazorpayPaymentID, o.RazorpaySignature,
			o.Status,
		).Scan(&o.CreatedAt); err != nil {
			return err
		}

		o.SequentialID = seq
		return nil
	})

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == paymentIDConstraint {
			log.Info("order already exists for payment")
			return ErrDuplicatePayment
		}
		if apperr.KindOf(err) == apperr.KindStorage {
			return err
		}
		log.Error("create order failed", zap.Error(err))
		return apperr.Storage("create order", err)
	}

	return nil
}

func (r *repository) getOne(ctx context.Context, op, where string, arg any) (*Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	o, err := scanOrder(r.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("query failed",
			zap.String("repo", "Order"),
			zap.String("method", op),
			zap.Error(err),
		)
		return nil, apperr.Storage(op, err)
	}
	return o, nil
}

func (r *repository) GetByPaymentID(ctx context.Context, paymentID string) (*Order, error) {
	return r.getOne(ctx, "get order by payment id", "razorpay_payment_id = $1", paymentID)
}

func (r *repository) GetBySequentialID(ctx context.Context, sequentialID int64) (*Order, error) {
	return r.getOne(ctx, "get order by sequential id", "sequential_id = $1", sequentialID)
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	q := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	defer rows.Close()

	var res []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperr.Storage("scan order", err)
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate orders", err)
	}
	return res, nil
}

func (r *repository) MarkPaid(ctx context.Context, intentID, paymentID string) (*Order, bool, error) {
	q := `
		UPDATE orders
		SET status = $3,
			razorpay_payment_id = COALESCE(razorpay_payment_id, $2),
			updated_at = now()
		WHERE razorpay_order_id = $1 AND status <> $3
		RETURNING ` + orderColumns

	return r.transition(ctx, "mark order paid", q, intentID, paymentID, StatusPaid)
}

func (r *repository) MarkFailed(ctx context.Context, intentID string) (*Order, bool, error) {
	q := `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE razorpay_order_id = $1 AND status = $3
		RETURNING ` + orderColumns

	return r.transition(ctx, "mark order failed", q, intentID, StatusFailed, StatusPending)
}

func (r *repository) transition(ctx context.Context, op, q string, args ...any) (*Order, bool, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Storage(op, err)
	}
	return o, true, nil
}
