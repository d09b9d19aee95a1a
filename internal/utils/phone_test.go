package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712 345 678", "255712345678"},
		{"712345678", "255712345678"},
		{"255712345678", "255712345678"},
		{"+1 (555) 123-4567", "15551234567"},
		{"00441234567890", "441234567890"},
		{"", ""},
		{"n/a", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhoneNumber(tt.in, "255"), tt.in)
	}
}
