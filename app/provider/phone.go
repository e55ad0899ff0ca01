package provider

import (
	"strings"
)

// normalizePhone reduces a Senegalese mobile number to its local nine-digit
// form (7XXXXXXXX). It accepts +221/221/00221 prefixes and embedded spaces,
// dots, or dashes. Returns "" when the input cannot be a valid MSISDN.
func normalizePhone(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.TrimPrefix(cleaned, "00221")
	if len(cleaned) == 12 && strings.HasPrefix(cleaned, "221") {
		cleaned = cleaned[3:]
	}

	if len(cleaned) != 9 || cleaned[0] != '7' {
		return ""
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return ""
		}
	}

	switch cleaned[:2] {
	case "70", "75", "76", "77", "78":
		return cleaned
	default:
		return ""
	}
}

// validateWalletPhone normalizes and checks the number against the prefixes a
// wallet network serves. An empty prefix list accepts any Senegalese mobile.
func validateWalletPhone(raw string, prefixes ...string) (string, *Error) {
	phone := normalizePhone(raw)
	if phone == "" {
		return "", newError(FailureInvalidPhone, "phone number %q is not a valid Senegalese mobile number", raw)
	}
	if len(prefixes) == 0 {
		return phone, nil
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(phone, prefix) {
			return phone, nil
		}
	}
	return "", newError(FailureInvalidPhone, "phone number %q is not served by this wallet network", raw)
}

func validateAmount(amount int64, min, max int64) *Error {
	if amount < min {
		return newError(FailureInvalidAmount, "amount %d is below the provider minimum of %d", amount, min)
	}
	if amount > max {
		return newError(FailureInvalidAmount, "amount %d exceeds the provider maximum of %d", amount, max)
	}
	return nil
}

func validateCurrency(currency string) *Error {
	if !strings.EqualFold(currency, "XOF") {
		return newError(FailureInvalidCurrency, "currency %q is not supported, only XOF", currency)
	}
	return nil
}
