// services/rental/internal/core/contact.go
package core

import (
	"net/url"
	"strings"

	"example.com/backstage/services/rental/internal/utils"
)

// ContactLinks are the outbound deep links for reaching a person.
type ContactLinks struct {
	Phone    string `json:"phone,omitempty"`
	Tel      string `json:"tel,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Mailto   string `json:"mailto,omitempty"`
}

// BuildContactLinks derives tel:, WhatsApp and mailto: links. Empty inputs
// produce empty links.
func BuildContactLinks(phone, email, message, countryCode string) ContactLinks {
	var links ContactLinks

	if digits := utils.NormalizePhoneNumber(phone, countryCode); digits != "" {
		links.Phone = "+" + digits
		links.Tel = "tel:+" + digits
		links.WhatsApp = "https://wa.me/" + digits
		if message != "" {
			links.WhatsApp += "?text=" + encodeMessage(message)
		}
	}

	if email = strings.TrimSpace(email); email != "" {
		links.Mailto = "mailto:" + email
	}
	return links
}

// encodeMessage escapes like encodeURIComponent; WhatsApp does not read '+'
// as a space.
func encodeMessage(message string) string {
	return strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}
