package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vox-be/internal/apperr"
	"vox-be/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_SaveIntent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	created := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		cart := `[{"product":"p1","quantity":2,"unitPrice":250000}]`
		in := &Intent{
			ID: "order_abc", Receipt: "rcpt_1", Amount: 500000, Currency: "INR",
			UserID: utils.StrPtr("user_1"), Cart: json.RawMessage(cart),
		}

		mock.ExpectQuery(`INSERT INTO payment_intents`).
			WithArgs("order_abc", "rcpt_1", int64(500000), "INR", IntentCreated, "user_1", []byte(cart)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

		require.NoError(t, repo.SaveIntent(context.Background(), in))
		assert.Equal(t, created, in.CreatedAt)
	})

	t.Run("Without cart", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_intents`).
			WithArgs("order_fetched", "", int64(100), "INR", IntentCreated, nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

		require.NoError(t, repo.SaveIntent(context.Background(), &Intent{ID: "order_fetched", Amount: 100, Currency: "INR"}))
	})

	t.Run("Already recorded", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_intents`).
			WillReturnError(sql.ErrNoRows)

		assert.NoError(t, repo.SaveIntent(context.Background(), &Intent{ID: "order_abc"}))
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_intents`).
			WillReturnError(errors.New("database error"))

		err := repo.SaveIntent(context.Background(), &Intent{ID: "order_abc"})
		assert.True(t, apperr.Is(err, apperr.KindStorage))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetIntent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	cols := []string{"intent_id", "receipt", "amount", "currency", "status", "user_id", "cart", "created_at"}

	t.Run("Success", func(t *testing.T) {
		cart := `[{"product":"p1","quantity":2,"unitPrice":250000}]`
		mock.ExpectQuery(`SELECT .* FROM payment_intents WHERE intent_id = \$1`).
			WithArgs("order_abc").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("order_abc", "rcpt_1", 500000, "INR", "created", nil, []byte(cart), time.Now()))

		in, err := repo.GetIntent(context.Background(), "order_abc")
		require.NoError(t, err)
		assert.Equal(t, int64(500000), in.Amount)
		assert.Equal(t, IntentCreated, in.Status)
		assert.Nil(t, in.UserID)
		assert.JSONEq(t, cart, string(in.Cart))
	})

	t.Run("No cart recorded", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM payment_intents`).
			WithArgs("order_fetched").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("order_fetched", "", 100, "INR", "created", nil, nil, time.Now()))

		in, err := repo.GetIntent(context.Background(), "order_fetched")
		require.NoError(t, err)
		assert.Empty(t, in.Cart)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM payment_intents`).
			WithArgs("order_missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetIntent(context.Background(), "order_missing")
		assert.ErrorIs(t, err, ErrIntentNotFound)
	})
}

func TestRepository_UpdateIntentStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Captured may follow a failed attempt", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_intents SET status = \$2, updated_at = now\(\) WHERE intent_id = \$1 AND status = ANY\(\$3\)`).
			WithArgs("order_abc", IntentCaptured, pq.Array([]string{"created", "failed"})).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := repo.UpdateIntentStatus(context.Background(), "order_abc", IntentCaptured)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("Failed only from created", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_intents`).
			WithArgs("order_abc", IntentFailed, pq.Array([]string{"created"})).
			WillReturnResult(sqlmock.NewResult(0, 0))

		changed, err := repo.UpdateIntentStatus(context.Background(), "order_abc", IntentFailed)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SavePaymentWebhook(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	payload := json.RawMessage(`{"event":"payment.captured"}`)

	t.Run("New event", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_webhooks .* ON CONFLICT \(provider, event_id\) DO UPDATE SET attempts = payment_webhooks.attempts \+ 1 WHERE payment_webhooks.processed_at IS NULL RETURNING id`).
			WithArgs(ProviderRazorpay, "evt_1", EventPaymentCaptured, "order_abc", []byte(payload)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

		id, dup, err := repo.SavePaymentWebhook(context.Background(), ProviderRazorpay, "evt_1", EventPaymentCaptured, "order_abc", payload)
		require.NoError(t, err)
		assert.False(t, dup)
		assert.Equal(t, int64(7), id)
	})

	t.Run("Already processed", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_webhooks`).
			WillReturnError(sql.ErrNoRows)

		id, dup, err := repo.SavePaymentWebhook(context.Background(), ProviderRazorpay, "evt_1", EventPaymentCaptured, "order_abc", payload)
		require.NoError(t, err)
		assert.True(t, dup)
		assert.Zero(t, id)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_webhooks`).
			WillReturnError(errors.New("db error"))

		_, dup, err := repo.SavePaymentWebhook(context.Background(), ProviderRazorpay, "evt_1", EventPaymentCaptured, "order_abc", payload)
		assert.False(t, dup)
		assert.True(t, apperr.Is(err, apperr.KindStorage))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkWebhook(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectExec(`UPDATE payment_webhooks SET processed_at = now\(\), process_error = NULL WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkWebhookProcessed(context.Background(), 7))

	mock.ExpectExec(`UPDATE payment_webhooks SET process_error = \$2 WHERE id = \$1`).
		WithArgs(int64(8), "order update failed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkWebhookFailed(context.Background(), 8, "order update failed"))

	mock.ExpectExec(`UPDATE payment_webhooks`).
		WillReturnError(errors.New("db error"))
	assert.True(t, apperr.Is(repo.MarkWebhookProcessed(context.Background(), 9), apperr.KindStorage))

	assert.NoError(t, mock.ExpectationsWereMet())
}
