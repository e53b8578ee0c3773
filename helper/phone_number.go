package helper

import (
	"strings"
)

// CountryCode is the Cameroon dialing code.
const CountryCode = "237"

// NormalizeMSISDN strips formatting, leading zeros and the country code
// from mdn, then prefixes the country code when withCountryCode is set.
func NormalizeMSISDN(mdn string, withCountryCode bool) string {
	var b strings.Builder
	for _, r := range mdn {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	local := b.String()
	if local == "" {
		return ""
	}

	check := true
	for check {
		check = false
		if strings.HasPrefix(local, "00") {
			local = local[2:]
			check = true
		}
		if strings.HasPrefix(local, CountryCode) && len(local) > 9 {
			local = local[len(CountryCode):]
			check = true
		}
		for strings.HasPrefix(local, "0") {
			local = local[1:]
			check = true
		}
	}

	if withCountryCode {
		return CountryCode + local
	}
	return local
}

// ValidMSISDN reports whether mdn is a 9 digit Cameroon mobile number once
// normalised.
func ValidMSISDN(mdn string) bool {
	local := NormalizeMSISDN(mdn, false)
	return len(local) == 9 && local[0] == '6'
}

// ByPrefixNumber reports whether the local part of userMdn starts with one
// of prefixes.
func ByPrefixNumber(prefixes []string, userMdn string) bool {
	local := NormalizeMSISDN(userMdn, false)
	for _, prefix := range prefixes {
		if strings.HasPrefix(local, prefix) {
			return true
		}
	}
	return false
}
