package poller

import (
	"fmt"
	"strings"
)

// Status is the value reported by the verify endpoint for a transaction.
type Status string

const (
	StatusPending          Status = "pending"
	StatusSuccess          Status = "success"
	StatusFailed           Status = "failed"
	StatusAlreadyCompleted Status = "already_completed"
)

// ParseStatus normalises a raw status string. Anything that is not a known
// terminal status is reported as pending.
func ParseStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusSuccess:
		return StatusSuccess
	case StatusFailed:
		return StatusFailed
	case StatusAlreadyCompleted:
		return StatusAlreadyCompleted
	default:
		return StatusPending
	}
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusAlreadyCompleted
}

// PaymentMethod is a mobile-money channel supported by the verification flow.
type PaymentMethod string

const (
	MethodOrangeMoney PaymentMethod = "orange_money"
	MethodMTNMoMo     PaymentMethod = "mtn_momo"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case MethodOrangeMoney, MethodMTNMoMo:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, raw)
	}
}

// DisplayName is the label shown to the payer.
func (m PaymentMethod) DisplayName() string {
	switch m {
	case MethodOrangeMoney:
		return "Orange Money"
	case MethodMTNMoMo:
		return "MTN Mobile Money"
	default:
		return string(m)
	}
}
