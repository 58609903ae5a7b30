package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vox-be/internal/apperr"
	"vox-be/internal/logger"

	"go.uber.org/zap"
)

// Lookup resolves a product reference against current catalog state.
type Lookup interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Lookup {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	const q = `
		SELECT id, name, slug, price, COALESCE(offer_price, 0), variants
		FROM products
		WHERE id = $1
	`

	var (
		p        Product
		variants []byte
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Price, &p.OfferPrice, &variants,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("get product failed",
			zap.String("repo", "Catalog"),
			zap.String("product_id", id),
			zap.Error(err),
		)
		return nil, apperr.Storage("get product", err)
	}

	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return nil, apperr.Storage("decode variants", fmt.Errorf("product %s: %w", id, err))
		}
	}

	return &p, nil
}
