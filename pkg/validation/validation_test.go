package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPhone(t *testing.T) {
	valid := []string{"081234567890", "+6281234567890", "6281234567", "081234567"}
	invalid := []string{"", "0712345678", "080234567890", "+1 555 0100", "0812345", "08123456789012"}
	for _, p := range valid {
		assert.True(t, ValidPhone(p), p)
	}
	for _, p := range invalid {
		assert.False(t, ValidPhone(p), p)
	}
}

func TestRegisterOnAndMessage(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterOn(v))

	type req struct {
		Phone string `validate:"required,idphone"`
	}
	assert.NoError(t, v.Struct(req{Phone: "081234567890"}))

	err := v.Struct(req{Phone: "12345"})
	require.Error(t, err)
	assert.Equal(t, "phone must be a valid Indonesian mobile number", Message(err))

	err = v.Struct(req{})
	assert.Equal(t, "phone is required", Message(err))
}
