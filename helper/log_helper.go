package helper

import (
	"time"
)

// PaymentHelpers provides logging helpers for payment libraries
type PaymentHelpers struct {
	PaymentMethod string
	logger        *Logger
}

// NewPaymentHelpers creates a new instance for a specific payment method
func NewPaymentHelpers(paymentMethod string) *PaymentHelpers {
	return &PaymentHelpers{
		PaymentMethod: paymentMethod,
		logger:        NewLogger("payment").WithField("payment_method", paymentMethod),
	}
}

var (
	OrangeMoneyLogger  = NewPaymentHelpers("orange_money")
	MTNMoMoLogger      = NewPaymentHelpers("mtn_momo")
	VerifyLogger       = NewPaymentHelpers("verify")
	NotificationLogger = NewPaymentHelpers("notification")
)

// PaymentLogger returns the helper for a payment method slug.
func PaymentLogger(method string) *PaymentHelpers {
	switch method {
	case "orange_money":
		return OrangeMoneyLogger
	case "mtn_momo":
		return MTNMoMoLogger
	default:
		return NewPaymentHelpers(method)
	}
}

// LogTransactionError logs transaction error - this is important
func (ph *PaymentHelpers) LogTransactionError(transactionID, errorMsg string, data map[string]interface{}) {
	ph.logger.WithFields(data).WithField("transaction_id", transactionID).Error("transaction failed: %s", errorMsg)
}

// LogAPICall logs external API calls
func (ph *PaymentHelpers) LogAPICall(endpoint, method string, duration time.Duration, statusCode int, requestData, responseData map[string]interface{}) {
	l := ph.logger.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"method":      method,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	})
	if requestData != nil {
		l = l.WithField("request", requestData)
	}
	if responseData != nil {
		l = l.WithField("response", responseData)
	}
	if statusCode >= 400 || statusCode == 0 {
		l.Warn("api call %s %s", method, endpoint)
		return
	}
	l.Debug("api call %s %s", method, endpoint)
}

// LogCallback logs callback received from payment provider - both success and failure
func (ph *PaymentHelpers) LogCallback(transactionID string, success bool, callbackData map[string]interface{}) {
	ph.logger.WithFields(callbackData).WithFields(map[string]interface{}{
		"transaction_id": transactionID,
		"success":        success,
	}).Info("callback received")
}
