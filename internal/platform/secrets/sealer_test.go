package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s := NewSealer("passphrase")

	sealed, err := s.Seal("whsec_abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "whsec_abc")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "whsec_abc", opened)
}

func TestSealer_NoKeyPassesThrough(t *testing.T) {
	s := NewSealer("")

	sealed, err := s.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	opened, err := s.Open("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", opened)
}

func TestSealer_WrongKey(t *testing.T) {
	sealed, err := NewSealer("one").Seal("secret")
	require.NoError(t, err)

	_, err = NewSealer("two").Open(sealed)
	assert.ErrorIs(t, err, ErrUnseal)

	_, err = NewSealer("").Open(sealed)
	assert.ErrorIs(t, err, ErrUnseal)
}
