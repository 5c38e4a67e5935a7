package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecipients(t *testing.T) {
	got, err := ParseRecipients("ops@example.com, owner@example.com;OPS@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com", "owner@example.com"}, got)
}

func TestParseRecipients_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"only separators", " , ;"},
		{"not an address", "ops@example.com, nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecipients(tt.raw)
			assert.Error(t, err)
		})
	}
}
