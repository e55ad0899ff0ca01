package service

import (
	"context"
	"errors"
	"testing"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/repository"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

type fakeMethodStore struct {
	methods map[string]*entity.PaymentMethod
}

func newFakeMethodStore() *fakeMethodStore {
	return &fakeMethodStore{methods: map[string]*entity.PaymentMethod{}}
}

func (r *fakeMethodStore) Create(_ context.Context, method *entity.PaymentMethod) error {
	copyItem := *method
	r.methods[method.ID] = &copyItem
	return nil
}

func (r *fakeMethodStore) FindByID(_ context.Context, id string) (*entity.PaymentMethod, error) {
	item, ok := r.methods[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakeMethodStore) ListByUser(_ context.Context, userID string) ([]*entity.PaymentMethod, error) {
	items := make([]*entity.PaymentMethod, 0)
	for _, item := range r.methods {
		if item.UserID == userID {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (r *fakeMethodStore) SetDefault(_ context.Context, userID, methodID string) error {
	target, ok := r.methods[methodID]
	if !ok || target.UserID != userID {
		return repository.ErrPaymentMethodNotFound
	}
	for _, item := range r.methods {
		if item.UserID == userID {
			item.IsDefault = item.ID == methodID
		}
	}
	return nil
}

func (r *fakeMethodStore) Delete(_ context.Context, userID, methodID string) error {
	item, ok := r.methods[methodID]
	if !ok || item.UserID != userID {
		return repository.ErrPaymentMethodNotFound
	}
	delete(r.methods, methodID)
	return nil
}

func TestCreatePaymentMethodWallet(t *testing.T) {
	store := newFakeMethodStore()
	svc := NewPaymentMethodService(testLogger(), store)

	method, err := svc.CreatePaymentMethod(context.Background(), &types.CreatePaymentMethodRequest{
		UserID:      "user-1",
		Provider:    types.ProviderWave,
		PhoneNumber: "771234567",
		SetDefault:  true,
	})
	if err != nil {
		t.Fatalf("CreatePaymentMethod: %v", err)
	}
	if method.PhoneNumber == nil || *method.PhoneNumber != "771234567" {
		t.Errorf("unexpected phone number %v", method.PhoneNumber)
	}
	if method.Label != "Wave" {
		t.Errorf("expected the provider display name as the default label, got %q", method.Label)
	}
	if !method.IsDefault {
		t.Error("expected the method to be the default")
	}
}

func TestCreatePaymentMethodCardValidation(t *testing.T) {
	svc := NewPaymentMethodService(testLogger(), newFakeMethodStore())

	_, err := svc.CreatePaymentMethod(context.Background(), &types.CreatePaymentMethodRequest{
		UserID:   "user-1",
		Provider: types.ProviderPayDunya,
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest without a card token, got %v", err)
	}
}

func TestSetDefaultPaymentMethodDemotesSiblings(t *testing.T) {
	store := newFakeMethodStore()
	svc := NewPaymentMethodService(testLogger(), store)
	ctx := context.Background()

	first, err := svc.CreatePaymentMethod(ctx, &types.CreatePaymentMethodRequest{
		UserID: "user-1", Provider: types.ProviderWave, PhoneNumber: "771234567", SetDefault: true,
	})
	if err != nil {
		t.Fatalf("CreatePaymentMethod: %v", err)
	}
	second, err := svc.CreatePaymentMethod(ctx, &types.CreatePaymentMethodRequest{
		UserID: "user-1", Provider: types.ProviderOrangeMoney, PhoneNumber: "781234567",
	})
	if err != nil {
		t.Fatalf("CreatePaymentMethod: %v", err)
	}

	if err := svc.SetDefaultPaymentMethod(ctx, "user-1", second.ID); err != nil {
		t.Fatalf("SetDefaultPaymentMethod: %v", err)
	}

	defaults := 0
	for _, item := range store.methods {
		if item.IsDefault {
			defaults++
			if item.ID != second.ID {
				t.Errorf("expected %s to be the default, got %s", second.ID, item.ID)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("expected exactly one default method, got %d", defaults)
	}
	_ = first
}

func TestDeletePaymentMethodOwnership(t *testing.T) {
	store := newFakeMethodStore()
	svc := NewPaymentMethodService(testLogger(), store)
	ctx := context.Background()

	method, err := svc.CreatePaymentMethod(ctx, &types.CreatePaymentMethodRequest{
		UserID: "user-1", Provider: types.ProviderWave, PhoneNumber: "771234567",
	})
	if err != nil {
		t.Fatalf("CreatePaymentMethod: %v", err)
	}

	if err := svc.DeletePaymentMethod(ctx, "user-2", method.ID); !errors.Is(err, ErrPaymentMethodNotFound) {
		t.Fatalf("expected ErrPaymentMethodNotFound for another user, got %v", err)
	}
	if err := svc.DeletePaymentMethod(ctx, "user-1", method.ID); err != nil {
		t.Fatalf("DeletePaymentMethod: %v", err)
	}
	if _, err := svc.GetPaymentMethod(ctx, "user-1", method.ID); !errors.Is(err, ErrPaymentMethodNotFound) {
		t.Errorf("expected the method to be gone, got %v", err)
	}
}
