package subscribers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

func TestParseEmailAcceptsValidAddress(t *testing.T) {
	email, err := ParseEmail("  ursula@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ursula@example.com", email.String())
}

func TestParseEmailRejectsInvalidAddresses(t *testing.T) {
	for _, raw := range []string{"", "   ", "ursuladomain.com", "@domain.com", "not an email"} {
		_, err := ParseEmail(raw)
		require.Error(t, err, "expected %q to be rejected", raw)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}
