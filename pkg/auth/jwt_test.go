package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-signing-secret", "meridian", time.Hour)
	require.NoError(t, err)
	return tm
}

func TestTokenManagerRoundTrip(t *testing.T) {
	tm := newTestTokenManager(t)

	token, err := tm.Issue(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	accountID, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), accountID)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	tm, err := NewTokenManager("test-signing-secret", "meridian", time.Nanosecond)
	require.NoError(t, err)

	token, err := tm.Issue(42)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = tm.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerRejectsWrongSecret(t *testing.T) {
	tm := newTestTokenManager(t)
	other, err := NewTokenManager("different-secret", "meridian", time.Hour)
	require.NoError(t, err)

	token, err := tm.Issue(42)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerRejectsWrongIssuer(t *testing.T) {
	tm := newTestTokenManager(t)
	other, err := NewTokenManager("test-signing-secret", "other-service", time.Hour)
	require.NoError(t, err)

	token, err := tm.Issue(42)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerRejectsGarbage(t *testing.T) {
	tm := newTestTokenManager(t)

	for _, token := range []string{"", "   ", "not.a.token", "a.b"} {
		_, err := tm.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestNewTokenManagerValidation(t *testing.T) {
	_, err := NewTokenManager("", "meridian", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", "meridian", 0)
	assert.Error(t, err)
}

func TestIssueRequiresAccountID(t *testing.T) {
	tm := newTestTokenManager(t)

	_, err := tm.Issue(0)
	assert.Error(t, err)
}
