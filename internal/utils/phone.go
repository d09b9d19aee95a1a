// services/rental/internal/utils/phone.go
package utils

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhoneNumber reduces a stored phone number to international digits.
// Numbers written with a trunk "0" or without a country code get
// defaultCountryCode prepended.
func NormalizePhoneNumber(phoneNumber, defaultCountryCode string) string {
	digits := nonDigits.ReplaceAllString(phoneNumber, "")
	if digits == "" {
		return ""
	}

	// International call prefix
	if strings.HasPrefix(digits, "00") {
		return strings.TrimPrefix(digits, "00")
	}

	if strings.HasPrefix(strings.TrimSpace(phoneNumber), "+") {
		return digits
	}

	if strings.HasPrefix(digits, "0") {
		return defaultCountryCode + strings.TrimLeft(digits, "0")
	}

	if defaultCountryCode != "" && !strings.HasPrefix(digits, defaultCountryCode) && len(digits) <= 9 {
		return defaultCountryCode + digits
	}

	return digits
}
