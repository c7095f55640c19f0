package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness-meal-planner/internal/database"
	"wellness-meal-planner/internal/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "auth.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db.SQL, logger.NewNop(), "test-secret", time.Hour)
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	id, err := s.SignUp(ctx, " Ana@Example.com ", "secret123", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.Email)
	assert.NotEmpty(t, id.UserID)

	token, signedIn, err := s.SignIn(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id.UserID, signedIn.UserID)
	assert.Equal(t, "Ana", signedIn.DisplayName)

	verified, err := s.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, verified.UserID)
	assert.Equal(t, "ana@example.com", verified.Email)
}

func TestSignUpErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.SignUp(ctx, "ana@example.com", "secret123", "Ana")
	require.NoError(t, err)

	_, err = s.SignUp(ctx, "ANA@example.com", "other-secret", "Ana")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, "This email is already registered. Please sign in instead.", UserMessage(err))

	_, err = s.SignUp(ctx, "not-an-email", "secret123", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.SignUp(ctx, "bo@example.com", "123", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSignInErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, err := s.SignUp(ctx, "ana@example.com", "secret123", "Ana")
	require.NoError(t, err)

	_, _, err = s.SignIn(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Invalid email or password. Please try again.", UserMessage(err))

	_, _, err = s.SignIn(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, err := s.SignUp(ctx, "ana@example.com", "secret123", "Ana")
	require.NoError(t, err)
	token, _, err := s.SignIn(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, s.SignOut(ctx, token))
	// Signing out twice is harmless.
	require.NoError(t, s.SignOut(ctx, token))

	_, err = s.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// A fresh sign in still works.
	fresh, _, err := s.SignIn(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	_, err = s.Verify(ctx, fresh)
	assert.NoError(t, err)
}

func TestVerifyRejects(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	_, err := s.SignUp(ctx, "ana@example.com", "secret123", "Ana")
	require.NoError(t, err)
	token, _, err := s.SignIn(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := s.Verify(ctx, "")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(s.db, logger.NewNop(), "other-secret", time.Hour)
		_, err := other.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewService(s.db, logger.NewNop(), "test-secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(errors.New("boom")))
	assert.Equal(t, "Please sign in to continue.", UserMessage(ErrUnauthenticated))
}
