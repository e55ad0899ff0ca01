package types

// TransactionStatus is the common lifecycle vocabulary every provider's native
// status set is mapped into.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
	StatusExpired    TransactionStatus = "EXPIRED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

type Provider string

const (
	ProviderOrangeMoney Provider = "orange_money"
	ProviderWave        Provider = "wave"
	ProviderFreeMoney   Provider = "free_money"
	ProviderPayDunya    Provider = "paydunya"
	ProviderCinetPay    Provider = "cinetpay"
	ProviderCash        Provider = "cash"
)

func (p Provider) IsValid() bool {
	switch p {
	case ProviderOrangeMoney, ProviderWave, ProviderFreeMoney, ProviderPayDunya, ProviderCinetPay, ProviderCash:
		return true
	default:
		return false
	}
}

// IsPollable reports whether the reconciliation loop should track transactions
// of this provider. Cash is settled manually outside the core.
func (p Provider) IsPollable() bool {
	return p.IsValid() && p != ProviderCash
}

func (p Provider) DisplayName() string {
	switch p {
	case ProviderOrangeMoney:
		return "Orange Money"
	case ProviderWave:
		return "Wave"
	case ProviderFreeMoney:
		return "Free Money"
	case ProviderPayDunya:
		return "PayDunya"
	case ProviderCinetPay:
		return "CinetPay"
	case ProviderCash:
		return "Cash"
	default:
		return string(p)
	}
}

// Provider payload keys. The orchestrator never interprets these values, it
// only passes them through to the caller.
const (
	PayloadPaymentURL        = "payment_url"
	PayloadQRCode            = "qr_code"
	PayloadUSSDCode          = "ussd_code"
	PayloadAuthorizationCode = "authorization_code"
)
