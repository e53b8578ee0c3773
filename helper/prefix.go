package helper

// ValidPrefixes lists local number prefixes per operator, used when the
// payment method row carries none.
var ValidPrefixes = map[string][]string{
	"orange_money": {"655", "656", "657", "658", "659", "686", "687", "688", "689", "69"},
	"mtn_momo":     {"650", "651", "652", "653", "654", "67", "680", "681", "682", "683"},
}

func IsValidPrefix(userMDN, paymentMethod string) bool {
	if prefixes, exists := ValidPrefixes[paymentMethod]; exists {
		return ByPrefixNumber(prefixes, userMDN)
	}
	return false
}
