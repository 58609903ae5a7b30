package address

import (
	"context"
	"database/sql"
	"errors"

	"vox-be/internal/apperr"
	"vox-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrAddressNotFound = errors.New("address not found")

type Repository interface {
	ListByPhone(ctx context.Context, phone string) ([]*Address, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Address, error)
	Create(ctx context.Context, addr *Address) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const addressColumns = `
	id, phone_number, full_name, email, gstin,
	pincode, area, city, state, created_at`

func scanAddress(row interface{ Scan(...any) error }) (*Address, error) {
	var (
		a     Address
		gstin sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.PhoneNumber, &a.FullName, &a.Email, &gstin,
		&a.Pincode, &a.Area, &a.City, &a.State, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.GSTIN = gstin.String
	return &a, nil
}

func (r *repository) ListByPhone(ctx context.Context, phone string) ([]*Address, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Address"),
		zap.String("method", "ListByPhone"),
	)

	q := `SELECT ` + addressColumns + `
		FROM addresses
		WHERE phone_number = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, phone)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, apperr.Storage("list addresses", err)
	}
	defer rows.Close()

	var res []*Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			log.Error("scan failed", zap.Error(err))
			return nil, apperr.Storage("scan address", err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate addresses", err)
	}

	return res, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Address, error) {
	q := `SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = $1
		LIMIT 1`

	a, err := scanAddress(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("get address failed",
			zap.String("address_id", id.String()),
			zap.Error(err),
		)
		return nil, apperr.Storage("get address", err)
	}

	return a, nil
}

func (r *repository) Create(ctx context.Context, addr *Address) error {
	const q = `
		INSERT INTO addresses (
			id, phone_number, full_name, email, gstin,
			pincode, area, city, state
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING created_at
	`

	if addr.ID == uuid.Nil {
		addr.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, q,
		addr.ID, addr.PhoneNumber, addr.FullName, addr.Email, addr.GSTIN,
		addr.Pincode, addr.Area, addr.City, addr.State,
	).Scan(&addr.CreatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("insert address failed", zap.Error(err))
		return apperr.Storage("create address", err)
	}

	return nil
}
