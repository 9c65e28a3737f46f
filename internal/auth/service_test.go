package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("test-secret", "portal-key", time.Hour)
}

func TestLoginAndVerify(t *testing.T) {
	service := newTestService()

	token, err := service.Login("portal-key", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestLoginRejectsWrongKey(t *testing.T) {
	service := newTestService()

	_, err := service.Login("wrong-key", "alice")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login("", "alice")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	service := newTestService()

	_, err := service.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	service := newTestService()
	other := NewService("different-secret", "portal-key", time.Hour)

	token, err := other.Login("portal-key", "alice")
	require.NoError(t, err)

	_, err = service.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	service := newTestService()

	issued := time.Now()
	service.now = func() time.Time { return issued }
	token, err := service.Login("portal-key", "alice")
	require.NoError(t, err)

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = service.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
