package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/repository"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

type paymentMethodRepository interface {
	Create(ctx context.Context, method *entity.PaymentMethod) error
	FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.PaymentMethod, error)
	SetDefault(ctx context.Context, userID, methodID string) error
	Delete(ctx context.Context, userID, methodID string) error
}

type PaymentMethodService struct {
	logger     *logrus.Entry
	methodRepo paymentMethodRepository
}

func NewPaymentMethodService(logger *logrus.Entry, methodRepo paymentMethodRepository) *PaymentMethodService {
	return &PaymentMethodService{logger: logger, methodRepo: methodRepo}
}

func (s *PaymentMethodService) CreatePaymentMethod(ctx context.Context, req *types.CreatePaymentMethodRequest) (*entity.PaymentMethod, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := time.Now().UTC()
	method := &entity.PaymentMethod{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Provider:  req.Provider,
		Label:     req.Label,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if method.Label == "" {
		method.Label = method.Provider.DisplayName()
	}

	switch req.Provider {
	case types.ProviderOrangeMoney, types.ProviderWave, types.ProviderFreeMoney:
		phone := req.PhoneNumber
		method.PhoneNumber = &phone
	case types.ProviderPayDunya, types.ProviderCinetPay:
		token := req.CardToken
		last4 := req.CardLast4
		method.CardToken = &token
		method.CardLast4 = &last4
	}

	if err := s.methodRepo.Create(ctx, method); err != nil {
		if errors.Is(err, repository.ErrPaymentMethodAlreadyExists) {
			return nil, ErrMethodAlreadyExists
		}
		return nil, err
	}

	if req.SetDefault {
		if err := s.methodRepo.SetDefault(ctx, method.UserID, method.ID); err != nil {
			return nil, err
		}
		method.IsDefault = true
	}

	return method, nil
}

func (s *PaymentMethodService) GetPaymentMethod(ctx context.Context, userID, methodID string) (*entity.PaymentMethod, error) {
	method, err := s.methodRepo.FindByID(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if method == nil || method.UserID != userID {
		return nil, ErrPaymentMethodNotFound
	}
	return method, nil
}

func (s *PaymentMethodService) ListPaymentMethods(ctx context.Context, userID string) ([]*entity.PaymentMethod, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	return s.methodRepo.ListByUser(ctx, userID)
}

func (s *PaymentMethodService) SetDefaultPaymentMethod(ctx context.Context, userID, methodID string) error {
	if userID == "" || methodID == "" {
		return fmt.Errorf("%w: user_id and method id are required", ErrInvalidRequest)
	}
	if err := s.methodRepo.SetDefault(ctx, userID, methodID); err != nil {
		if errors.Is(err, repository.ErrPaymentMethodNotFound) {
			return ErrPaymentMethodNotFound
		}
		return err
	}
	return nil
}

func (s *PaymentMethodService) DeletePaymentMethod(ctx context.Context, userID, methodID string) error {
	if userID == "" || methodID == "" {
		return fmt.Errorf("%w: user_id and method id are required", ErrInvalidRequest)
	}
	if err := s.methodRepo.Delete(ctx, userID, methodID); err != nil {
		if errors.Is(err, repository.ErrPaymentMethodNotFound) {
			return ErrPaymentMethodNotFound
		}
		return err
	}
	return nil
}
