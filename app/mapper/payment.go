package mapper

import (
	"time"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

func TransactionToView(item *entity.Transaction) *types.Transaction {
	if item == nil {
		return nil
	}

	view := &types.Transaction{
		ID:                    item.ID,
		ProviderTransactionID: derefString(item.ProviderTransactionID),
		OrderID:               item.OrderID,
		OrderRef:              item.OrderRef,
		UserID:                item.UserID,
		PaymentMethodID:       item.PaymentMethodID,
		Provider:              item.Provider,
		ProviderName:          item.Provider.DisplayName(),
		Amount:                item.Amount,
		Currency:              item.Currency,
		Status:                item.Status,
		Message:               item.Message,
		ErrorCode:             derefString(item.ErrorCode),
		ErrorMessage:          derefString(item.ErrorMessage),
		ProviderPayload:       clonePayload(item.ProviderPayload),
		InitiatedAt:           item.InitiatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:             item.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if item.CompletedAt != nil {
		view.CompletedAt = item.CompletedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func TransactionsToView(items []*entity.Transaction) []*types.Transaction {
	result := make([]*types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToView(item))
	}
	return result
}

// TransactionToInitiateResponse shapes the synchronous initiate outcome,
// lifting the provider's presentation artifacts to top-level fields.
func TransactionToInitiateResponse(item *entity.Transaction) *types.InitiatePaymentResponse {
	if item == nil {
		return nil
	}

	resp := &types.InitiatePaymentResponse{
		Success:               !item.Status.IsTerminal() || item.Status == types.StatusCompleted,
		TransactionID:         item.ID,
		ProviderTransactionID: derefString(item.ProviderTransactionID),
		Status:                item.Status,
		Message:               item.Message,
		PaymentURL:            item.ProviderPayload[types.PayloadPaymentURL],
		QRCode:                item.ProviderPayload[types.PayloadQRCode],
		USSDCode:              item.ProviderPayload[types.PayloadUSSDCode],
		ExpiresAt:             item.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if item.Status == types.StatusFailed {
		resp.Error = &types.ErrorDetail{
			Code:    derefString(item.ErrorCode),
			Message: derefString(item.ErrorMessage),
		}
	}
	return resp
}

func PaymentMethodToView(item *entity.PaymentMethod) *types.PaymentMethod {
	if item == nil {
		return nil
	}
	return &types.PaymentMethod{
		ID:          item.ID,
		UserID:      item.UserID,
		Provider:    item.Provider,
		Label:       item.Label,
		PhoneNumber: derefString(item.PhoneNumber),
		CardLast4:   derefString(item.CardLast4),
		IsDefault:   item.IsDefault,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentMethodsToView(items []*entity.PaymentMethod) []*types.PaymentMethod {
	result := make([]*types.PaymentMethod, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentMethodToView(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func clonePayload(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
