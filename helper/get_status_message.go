package helper

var StatusMessages = map[string]string{
	"0000":  "Successful",
	"E0003": "Invalid body signature",
	"E0004": "Invalid Transaction ID",
	"E0005": "This payment method is under maintenance",
	"E0016": "Invalid MSISDN!",
	"E0018": "Payment provider rejected the request",
	"E0019": "Invalid Data!",
	"E0021": "Amount out of range for this payment method",
	"E4001": "Internal server error",
	"1001":  "created",
	"1003":  "waiting_for_provider_confirmation",
	"1000":  "payment_completed",
	"1005":  "failed",
}

func GetStatusMessage(code string) string {
	if message, exists := StatusMessages[code]; exists {
		return message
	}
	return "Unknown error code"
}
