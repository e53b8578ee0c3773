package http

import "time"

type CreatePaymentRequest struct {
	UserMDN         string `json:"user_mdn" validate:"required,min=8,max=15"`
	UserID          string `json:"user_id" validate:"required"`
	PaymentMethod   string `json:"payment_method" validate:"required,oneof=orange_money mtn_momo"`
	Amount          uint   `json:"amount" validate:"required,min=1"`
	Currency        string `json:"currency,omitempty"`
	ItemName        string `json:"item_name" validate:"required,max=60"`
	ItemID          string `json:"item_id,omitempty"`
	NotificationURL string `json:"notification_url,omitempty" validate:"omitempty,url"`
}

type CreatePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	UserMDN       string `json:"user_mdn"`
	Amount        uint   `json:"amount"`
	Currency      string `json:"currency"`
}

// VerifyResponse is the body of GET /payments/verify/{transactionId}.
type VerifyResponse struct {
	Status string `json:"status"`
}

type StartVerificationRequest struct {
	TransactionID string  `json:"transaction_id" validate:"required"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=orange_money mtn_momo"`
	PhoneNumber   string  `json:"phone_number"`
	Amount        float64 `json:"amount" validate:"gte=0"`
}

// ProviderCallback is what a mobile-money provider posts once a
// collection settles.
type ProviderCallback struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	ReferenceID   string `json:"reference_id"`
	Status        string `json:"status" validate:"required"`
	Reason        string `json:"reason,omitempty"`
}

type VerificationSnapshot struct {
	TransactionID     string    `json:"transaction_id"`
	PaymentMethod     string    `json:"payment_method"`
	PhoneNumber       string    `json:"phone_number"`
	Amount            float64   `json:"amount"`
	State             string    `json:"state"`
	Reason            string    `json:"reason,omitempty"`
	Message           string    `json:"message"`
	LastStatus        string    `json:"last_status,omitempty"`
	PollingCount      int       `json:"polling_count"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	Degraded          bool      `json:"degraded"`
	Polling           bool      `json:"polling"`
	Navigated         bool      `json:"navigated"`
	StartedAt         time.Time `json:"started_at"`
	ElapsedSeconds    float64   `json:"elapsed_seconds"`
}
