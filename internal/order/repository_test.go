package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vox-be/internal/address"
	"vox-be/internal/apperr"
	"vox-be/internal/payment"
	"vox-be/internal/sequence"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "sequential_id", "user_id", "address", "items",
	"payment_method", "amount", "currency",
	"razorpay_order_id", "razorpay_payment_id", "razorpay_signature",
	"status", "created_at",
}

func orderRow(t *testing.T, rows *sqlmock.Rows, seq int64, status Status) *sqlmock.Rows {
	addr, err := json.Marshal(address.Address{FullName: "Asha Rao", City: "Bengaluru"})
	require.NoError(t, err)
	items, err := json.Marshal([]Item{{ProductID: "p1", Quantity: 2, UnitPrice: 250000}})
	require.NoError(t, err)

	return rows.AddRow(
		uuid.New().String(), seq, "user_1", addr, items,
		"razorpay", int64(500000), "INR",
		"order_abc", "pay_xyz", "sig",
		string(status), time.Now(),
	)
}

func newPendingOrder() *Order {
	return &Order{
		Address:       address.Address{FullName: "Asha Rao"},
		Items:         []Item{{ProductID: "p2", Quantity: 1, UnitPrice: 5000}},
		PaymentMethod: payment.MethodCOD,
		Amount:        5000,
		Currency:      "INR",
		Status:        StatusPending,
	}
}

func TestRepository_CreateOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRepository(db, sequence.NewPostgresAllocator(sequence.OrderName, sequence.DefaultBase))
		o := newPendingOrder()

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO counters`).
			WithArgs("order", int64(12999)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE counters`).
			WithArgs("order").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(13000)))
		mock.ExpectQuery(`INSERT INTO orders`).
			WithArgs(sqlmock.AnyArg(), int64(13000), nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
				"cod", int64(5000), "INR", nil, nil, nil, "Pending").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		err = repo.CreateOrder(context.Background(), o)
		require.NoError(t, err)
		assert.Equal(t, int64(13000), o.SequentialID)
		assert.NotEqual(t, uuid.Nil, o.ID)
		assert.False(t, o.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicatePayment", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRepository(db, sequence.NewPostgresAllocator(sequence.OrderName, sequence.DefaultBase))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO counters`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE counters`).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(13001)))
		mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_payment_id_key"})
		mock.ExpectRollback()

		err = repo.CreateOrder(context.Background(), newPendingOrder())
		assert.ErrorIs(t, err, ErrDuplicatePayment)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OtherUniqueViolation", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRepository(db, sequence.NewPostgresAllocator(sequence.OrderName, sequence.DefaultBase))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO counters`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE counters`).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(13001)))
		mock.ExpectQuery(`INSERT INTO orders`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "orders_sequential_id_key"})
		mock.ExpectRollback()

		err = repo.CreateOrder(context.Background(), newPendingOrder())
		assert.NotErrorIs(t, err, ErrDuplicatePayment)
		assert.True(t, apperr.Is(err, apperr.KindStorage))
	})

	t.Run("SequenceFailure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRepository(db, sequence.NewPostgresAllocator(sequence.OrderName, sequence.DefaultBase))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO counters`).WillReturnError(errors.New("conn reset"))
		mock.ExpectRollback()

		err = repo.CreateOrder(context.Background(), newPendingOrder())
		assert.True(t, apperr.Is(err, apperr.KindStorage))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_GetByPaymentID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, nil)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE razorpay_payment_id = \$1`).
			WithArgs("pay_xyz").
			WillReturnRows(orderRow(t, sqlmock.NewRows(orderCols), 13001, StatusPaid))

		o, err := repo.GetByPaymentID(context.Background(), "pay_xyz")
		require.NoError(t, err)
		assert.Equal(t, int64(13001), o.SequentialID)
		assert.Equal(t, StatusPaid, o.Status)
		assert.Equal(t, payment.MethodRazorpay, o.PaymentMethod)
		assert.Equal(t, "Asha Rao", o.Address.FullName)
		require.Len(t, o.Items, 1)
		assert.Equal(t, int64(250000), o.Items[0].UnitPrice)
		require.NotNil(t, o.RazorpayPaymentID)
		assert.Equal(t, "pay_xyz", *o.RazorpayPaymentID)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders WHERE razorpay_payment_id = \$1`).
			WithArgs("pay_none").
			WillReturnRows(sqlmock.NewRows(orderCols))

		_, err := repo.GetByPaymentID(context.Background(), "pay_none")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders`).
			WillReturnError(errors.New("db error"))

		_, err := repo.GetByPaymentID(context.Background(), "pay_xyz")
		assert.True(t, apperr.Is(err, apperr.KindStorage))
	})
}

func TestRepository_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, nil)

	rows := sqlmock.NewRows(orderCols)
	orderRow(t, rows, 13002, StatusPaid)
	orderRow(t, rows, 13001, StatusPending)

	mock.ExpectQuery(`SELECT .* FROM orders\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs("user_1").
		WillReturnRows(rows)

	orders, err := repo.ListByUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(13002), orders[0].SequentialID)
	assert.Equal(t, StatusPending, orders[1].Status)
}

func TestRepository_MarkPaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, nil)

	t.Run("Changed", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE orders\s+SET status = \$3`).
			WithArgs("order_abc", "pay_xyz", "Paid").
			WillReturnRows(orderRow(t, sqlmock.NewRows(orderCols), 13001, StatusPaid))

		o, changed, err := repo.MarkPaid(context.Background(), "order_abc", "pay_xyz")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, int64(13001), o.SequentialID)
	})

	t.Run("AlreadyPaid", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE orders`).
			WithArgs("order_abc", "pay_xyz", "Paid").
			WillReturnRows(sqlmock.NewRows(orderCols))

		o, changed, err := repo.MarkPaid(context.Background(), "order_abc", "pay_xyz")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Nil(t, o)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, nil)

	t.Run("OnlyFromPending", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE orders\s+SET status = \$2`).
			WithArgs("order_abc", "Failed", "Pending").
			WillReturnRows(orderRow(t, sqlmock.NewRows(orderCols), 13001, StatusFailed))

		o, changed, err := repo.MarkFailed(context.Background(), "order_abc")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusFailed, o.Status)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE orders`).WillReturnError(errors.New("db error"))

		_, changed, err := repo.MarkFailed(context.Background(), "order_abc")
		assert.False(t, changed)
		assert.True(t, apperr.Is(err, apperr.KindStorage))
	})
}
