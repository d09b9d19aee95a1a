package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildContactLinks(t *testing.T) {
	links := BuildContactLinks("0712 345 678", " jane@example.com ", "Hello Jane Doe", "255")

	assert.Equal(t, "+255712345678", links.Phone)
	assert.Equal(t, "tel:+255712345678", links.Tel)
	assert.Equal(t, "https://wa.me/255712345678?text=Hello%20Jane%20Doe", links.WhatsApp)
	assert.Equal(t, "mailto:jane@example.com", links.Mailto)
}

func TestBuildContactLinksEscapesMessage(t *testing.T) {
	links := BuildContactLinks("+1 555 123 4567", "", "Rent & deposit?", "255")
	assert.Equal(t, "https://wa.me/15551234567?text=Rent%20%26%20deposit%3F", links.WhatsApp)
	assert.Empty(t, links.Mailto)
}

func TestBuildContactLinksEmpty(t *testing.T) {
	assert.Equal(t, ContactLinks{}, BuildContactLinks("", "", "hi", "255"))

	noMessage := BuildContactLinks("255712345678", "", "", "255")
	assert.Equal(t, "https://wa.me/255712345678", noMessage.WhatsApp)
}
