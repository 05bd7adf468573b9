package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAdminCredentials(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckAdminCredentials("librarian", "correct horse", "librarian", string(hash)))
	assert.False(t, CheckAdminCredentials("librarian", "wrong", "librarian", string(hash)))
	assert.False(t, CheckAdminCredentials("someone", "correct horse", "librarian", string(hash)))
	assert.False(t, CheckAdminCredentials("", "", "", ""), "unconfigured admin must never authenticate")
	assert.False(t, CheckAdminCredentials("librarian", "correct horse", "librarian", ""))
}
