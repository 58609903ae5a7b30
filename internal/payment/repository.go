package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"vox-be/internal/apperr"

	"github.com/lib/pq"
)

var ErrIntentNotFound = errors.New("payment intent not found")

type Repository interface {
	SaveIntent(ctx context.Context, in *Intent) error
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	UpdateIntentStatus(ctx context.Context, intentID string, status IntentStatus) (changed bool, err error)

	SavePaymentWebhook(
		ctx context.Context,
		provider string,
		eventID string,
		eventType string,
		externalID string,
		payload json.RawMessage,
	) (webhookID int64, isDuplicate bool, err error)

	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SaveIntent(ctx context.Context, in *Intent) error {
	const q = `
	INSERT INTO payment_intents (
		intent_id,
		receipt,
		amount,
		currency,
		status,
		user_id,
		cart
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (intent_id) DO NOTHING
	RETURNING created_at;
	`

	status := in.Status
	if status == "" {
		status = IntentCreated
	}

	var cart any
	if len(in.Cart) > 0 {
		cart = []byte(in.Cart)
	}

	err := r.db.QueryRowContext(ctx, q,
		in.ID, in.Receipt, in.Amount, in.Currency, status, in.UserID, cart,
	).Scan(&in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// already recorded
		return nil
	}
	if err != nil {
		return apperr.Storage("save intent", err)
	}
	return nil
}

func (r *repository) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	const q = `
	SELECT intent_id, receipt, amount, currency, status, user_id, cart, created_at
	FROM payment_intents
	WHERE intent_id = $1;
	`

	var (
		in     Intent
		userID sql.NullString
		cart   []byte
	)
	err := r.db.QueryRowContext(ctx, q, intentID).Scan(
		&in.ID, &in.Receipt, &in.Amount, &in.Currency, &in.Status, &userID, &cart, &in.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, apperr.Storage("get intent", err)
	}
	if userID.Valid {
		in.UserID = &userID.String
	}
	if len(cart) > 0 {
		in.Cart = json.RawMessage(cart)
	}
	return &in, nil
}

// UpdateIntentStatus only moves forward: captured from created or failed (a
// new attempt on the same intent), failed only from created.
func (r *repository) UpdateIntentStatus(ctx context.Context, intentID string, status IntentStatus) (bool, error) {
	from := []string{string(IntentCreated)}
	if status == IntentCaptured {
		from = append(from, string(IntentFailed))
	}

	const q = `
	UPDATE payment_intents
	SET status = $2, updated_at = now()
	WHERE intent_id = $1 AND status = ANY($3);
	`

	res, err := r.db.ExecContext(ctx, q, intentID, status, pq.Array(from))
	if err != nil {
		return false, apperr.Storage("update intent status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("update intent status", err)
	}
	return n > 0, nil
}

// SavePaymentWebhook records a delivery. A delivery whose event was already
// processed comes back as a duplicate; one whose earlier attempt failed is
// handed out again with its attempt count bumped.
func (r *repository) SavePaymentWebhook(
	ctx context.Context,
	provider string,
	eventID string,
	eventType string,
	externalID string,
	payload json.RawMessage,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		external_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET attempts = payment_webhooks.attempts + 1
	WHERE payment_webhooks.processed_at IS NULL
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		provider,
		eventID,
		eventType,
		externalID,
		[]byte(payload),
	).Scan(&id)

	if err != nil {
		// Already processed → idempotent success
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, apperr.Storage("save webhook", err)
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(
	ctx context.Context,
	webhookID int64,
) error {

	const q = `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`

	if _, err := r.db.ExecContext(ctx, q, webhookID); err != nil {
		return apperr.Storage("mark webhook processed", err)
	}
	return nil
}

func (r *repository) MarkWebhookFailed(
	ctx context.Context,
	webhookID int64,
	reason string,
) error {

	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	if _, err := r.db.ExecContext(ctx, q, webhookID, reason); err != nil {
		return apperr.Storage("mark webhook failed", err)
	}
	return nil
}
