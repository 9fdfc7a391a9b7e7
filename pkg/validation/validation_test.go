package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=8,alphanum"`
	Kind     string `json:"transaction_type" validate:"oneof=BUY SELL"`
	Ignored  string `json:"-"`
}

func TestMessage(t *testing.T) {
	v := New()

	testCases := []struct {
		name     string
		input    sample
		expected string
	}{
		{"required", sample{Username: "abc", Kind: "BUY"}, "email is required"},
		{"email", sample{Email: "nope", Username: "abc", Kind: "BUY"}, "email must be a valid email address"},
		{"min", sample{Email: "a@b.co", Username: "ab", Kind: "BUY"}, "username must be at least 3 characters"},
		{"max", sample{Email: "a@b.co", Username: "abcdefghi", Kind: "BUY"}, "username must be at most 8 characters"},
		{"alphanum", sample{Email: "a@b.co", Username: "ab-cd", Kind: "BUY"}, "username must contain only letters and digits"},
		{"oneof", sample{Email: "a@b.co", Username: "abc", Kind: "HOLD"}, "transaction_type must be one of BUY, SELL"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.expected, Message(err))
		})
	}
}

func TestMessage_Valid(t *testing.T) {
	assert.NoError(t, New().Struct(sample{Email: "a@b.co", Username: "abc", Kind: "SELL"}))
}

func TestMessage_NonValidationError(t *testing.T) {
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
