package address

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"vox-be/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addressCols = []string{
	"id", "phone_number", "full_name", "email", "gstin",
	"pincode", "area", "city", "state", "created_at",
}

func TestRepository_ListByPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	phone := "+919876543210"

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(addressCols).AddRow(
			uuid.New(), phone, "Asha Rao", "asha@example.com", nil,
			"560001", "MG Road", "Bengaluru", "Karnataka", time.Now(),
		)

		mock.ExpectQuery("SELECT .* FROM addresses WHERE phone_number = \\$1").
			WithArgs(phone).
			WillReturnRows(rows)

		res, err := repo.ListByPhone(context.Background(), phone)
		assert.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "Asha Rao", res[0].FullName)
		assert.Empty(t, res[0].GSTIN)
	})

	t.Run("QueryError", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM addresses").
			WithArgs(phone).
			WillReturnError(errors.New("db error"))

		res, err := repo.ListByPhone(context.Background(), phone)
		assert.True(t, apperr.Is(err, apperr.KindStorage))
		assert.Nil(t, res)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(addressCols).AddRow(
			id, "+919876543210", "Asha Rao", "asha@example.com", "29ABCDE1234F1Z5",
			"560001", "MG Road", "Bengaluru", "Karnataka", time.Now(),
		)
		mock.ExpectQuery("SELECT .* FROM addresses WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(rows)

		res, err := repo.GetByID(context.Background(), id)
		assert.NoError(t, err)
		assert.Equal(t, id, res.ID)
		assert.Equal(t, "29ABCDE1234F1Z5", res.GSTIN)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM addresses WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		res, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrAddressNotFound)
		assert.Nil(t, res)
	})
}

func TestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	addr := validAddress()
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO addresses").
		WithArgs(sqlmock.AnyArg(), addr.PhoneNumber, addr.FullName, addr.Email, "",
			addr.Pincode, addr.Area, addr.City, addr.State).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	err = repo.Create(context.Background(), addr)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, addr.ID)
	assert.Equal(t, created, addr.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
