package address

import (
	"context"
	"strings"

	"vox-be/internal/apperr"
	"vox-be/internal/logger"
	"vox-be/internal/utils"

	"go.uber.org/zap"
)

// Service is the address book keyed by phone number.
type Service interface {
	ListByPhone(ctx context.Context, phone string) ([]*Address, error)
	Create(ctx context.Context, input CreateAddressInput) (*Address, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListByPhone(ctx context.Context, phone string) ([]*Address, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperr.Validation("missing phone query param")
	}

	logger.FromCtx(ctx).Info("listing addresses",
		zap.String("service", "Address"),
		zap.String("phone", utils.MaskID(phone)),
	)

	return s.repo.ListByPhone(ctx, phone)
}

func (s *service) Create(ctx context.Context, input CreateAddressInput) (*Address, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Create"),
	)

	addr := input.ToAddress()
	if err := addr.Validate(); err != nil {
		log.Warn("invalid address", zap.Error(err))
		return nil, err
	}

	if err := s.repo.Create(ctx, addr); err != nil {
		return nil, err
	}

	log.Info("address created", zap.String("address_id", addr.ID.String()))
	return addr, nil
}
