package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "us***@example.com", Email("user@example.com"))
	require.Equal(t, "***@example.com", Email("ab@example.com"))
	require.Equal(t, "***@e.com", Email("a@e.com"))
	require.Equal(t, "***", Email("not-an-email"))
	require.Equal(t, "***", Email(""))
}

func TestTokenAndPassword_NeverEmpty(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Token())
	require.NotEmpty(t, Password())
	require.NotContains(t, Token(), " ")
}
