package model

import (
	"time"
)

// Transaction status codes.
const (
	StatusCodeCompleted = 1000
	StatusCodePending   = 1001
	StatusCodeWaiting   = 1003
	StatusCodeFailed    = 1005
)

type Transactions struct {
	ID                      string     `gorm:"size:50;primaryKey" json:"u_id"`
	PaymentMethod           string     `gorm:"type:VARCHAR(50);index" json:"payment_method"`
	StatusCode              int        `gorm:"type:INTEGER;index" json:"status_code"`
	UserMDN                 string     `gorm:"type:VARCHAR(15)" json:"user_mdn"`
	UserId                  string     `gorm:"type:VARCHAR(255)" json:"user_id"`
	Amount                  uint       `gorm:"type:INTEGER" json:"amount"`
	Currency                string     `gorm:"type:VARCHAR(10)" json:"currency"`
	ItemName                string     `gorm:"type:VARCHAR(255);not null" json:"item_name"`
	ItemId                  string     `gorm:"type:VARCHAR(255)" json:"item_id"`
	ReferenceID             string     `gorm:"type:VARCHAR(255)" json:"reference_id"`
	FailReason              string     `gorm:"type:VARCHAR(255)" json:"fail_reason"`
	NotificationUrl         string     `gorm:"type:VARCHAR(255)" json:"notification_url"`
	TimestampRequestDate    *time.Time `json:"timestamp_request_date"`
	TimestampSubmitDate     *time.Time `json:"timestamp_submit_date"`
	TimestampCallbackDate   *time.Time `json:"timestamp_callback_date"`
	TimestampCallbackResult string     `gorm:"type:VARCHAR(255)" json:"timestamp_callback_result"`
	// VerifiedAt is set the first time the verify endpoint reports the
	// completed payment.
	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Status maps the status code onto the verify endpoint vocabulary.
func (t Transactions) Status() string {
	switch t.StatusCode {
	case StatusCodeCompleted:
		return "success"
	case StatusCodeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// OutcomeCallbackData is posted to the notification url once a payment
// settles.
type OutcomeCallbackData struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	StatusCode    int    `json:"status_code"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	Amount        uint   `json:"amount"`
	Currency      string `json:"currency"`
	ItemName      string `json:"item_name"`
	ItemID        string `json:"item_id"`
	ReferenceID   string `json:"reference_id"`
	FailReason    string `json:"fail_reason,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}
