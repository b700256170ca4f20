package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgmanager/internal/common"
)

func TestCredentialService_HashIsSaltedAndVerifies(t *testing.T) {
	creds := newTestCredentials()

	first, err := creds.Hash("s3cret")
	require.NoError(t, err)
	second, err := creds.Hash("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "same password must hash differently")
	assert.NotContains(t, first, "s3cret")
	assert.True(t, creds.Verify("s3cret", first))
	assert.True(t, creds.Verify("s3cret", second))
	assert.False(t, creds.Verify("wrong", first))
}

func TestCredentialService_MalformedDigest(t *testing.T) {
	creds := newTestCredentials()

	for _, digest := range []string{"", "not-a-hash", "$2a$04$short"} {
		assert.False(t, creds.Verify("s3cret", digest), "digest %q", digest)
	}
}

func TestCredentialService_PasswordTooLong(t *testing.T) {
	_, err := newTestCredentials().Hash(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, common.ErrValidation)
}
