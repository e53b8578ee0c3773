package helper

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCurrencyXAF renders amount with space thousand separators, e.g.
// "15 000 FCFA".
func FormatCurrencyXAF(amount uint) string {
	amountStr := strconv.FormatUint(uint64(amount), 10)

	if len(amountStr) > 3 {
		reversed := reverseString(amountStr)
		var result strings.Builder
		for i, char := range reversed {
			if i > 0 && i%3 == 0 {
				result.WriteString(" ")
			}
			result.WriteRune(char)
		}
		amountStr = reverseString(result.String())
	}

	return amountStr + " FCFA"
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func ValidateCurrency(currency string) (string, error) {
	if currency == "" {
		return "XAF", nil
	}

	normalized := strings.ToUpper(strings.TrimSpace(currency))
	if normalized == "XAF" || normalized == "FCFA" {
		return "XAF", nil
	}

	return "", fmt.Errorf("unsupported currency: %s", currency)
}
