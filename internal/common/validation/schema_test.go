package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutRequest(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantField string
	}{
		{"valid", `{"plan":"smarter"}`, true, ""},
		{"missing plan", `{}`, false, "plan"},
		{"empty plan", `{"plan":""}`, false, "plan"},
		{"wrong type", `{"plan":5}`, false, "plan"},
		{"malformed", `{"plan":`, false, "(root)"},
		{"not an object", `[]`, false, "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckoutRequest.Validate([]byte(tt.body))
			assert.Equal(t, tt.wantValid, result.Valid)
			if !tt.wantValid {
				assert.True(t, result.HasErrors(tt.wantField), result.GetErrorMessages())
			}
		})
	}
}

func TestUserActionRequest(t *testing.T) {
	assert.True(t, UserActionRequest.Validate([]byte(`{"userId":"u1","action":"export"}`)).Valid)
	assert.True(t, UserActionRequest.Validate([]byte(`{"userId":"u1","action":"export","metadata":{"page":"pricing"}}`)).Valid)
	assert.True(t, UserActionRequest.Validate([]byte(`{"metadata":null}`)).Valid)
	assert.True(t, UserActionRequest.Validate([]byte(`{}`)).Valid)

	result := UserActionRequest.Validate([]byte(`{"userId":42,"metadata":"x"}`))
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("userId"))
	assert.True(t, result.HasErrors("metadata"))
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	require.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `{`) })
}
