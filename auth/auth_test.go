package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karat/ledger-engine/auth"
	"github.com/karat/ledger-engine/ledger"
	"github.com/karat/ledger-engine/store/memory"
)

func newAuthService(t *testing.T) (*auth.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := auth.NewService(store, auth.NewTokenIssuer("test-secret", time.Hour))
	require.NoError(t, svc.Bootstrap(context.Background(), "admin@shop.test", "correct-horse"))
	return svc, store
}

// =============================================================================
// PASSWORDS
// =============================================================================

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, auth.CheckPassword(hash, "s3cret-pass"))
	assert.False(t, auth.CheckPassword(hash, "wrong"))
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_Success(t *testing.T) {
	svc, _ := newAuthService(t)

	token, ident, err := svc.Login(context.Background(), "admin@shop.test", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "admin@shop.test", ident.Email)
	assert.True(t, ident.Admin)

	// The issued token round-trips through verification.
	verified, err := svc.Tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, ident, verified)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	// GIVEN: one known account
	// WHEN: login fails for a wrong password vs an unknown email
	// THEN: both paths return the same error

	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, _, wrongPass := svc.Login(ctx, "admin@shop.test", "nope")
	_, _, unknownUser := svc.Login(ctx, "ghost@shop.test", "nope")

	assert.ErrorIs(t, wrongPass, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, auth.ErrInvalidCredentials)
}

// =============================================================================
// TOKENS
// =============================================================================

func TestVerify_RejectsForgedAndExpiredTokens(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret-a", time.Hour)
	other := auth.NewTokenIssuer("secret-b", time.Hour)
	// A nanosecond lifetime expires before Verify runs.
	expired := auth.NewTokenIssuer("secret-a", time.Nanosecond)

	user := auth.User{Email: "admin@shop.test", Admin: true}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "wrong signing secret")

	staleToken, err := expired.Issue(user)
	require.NoError(t, err)
	_, err = issuer.Verify(staleToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "expired token")

	_, err = issuer.Verify("not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// =============================================================================
// PASSWORD CHANGE
// =============================================================================

func TestChangePassword_RequiresOldPassword(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, "admin@shop.test", "wrong-old", "brand-new-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// Old credentials still work after the failed attempt.
	_, _, err = svc.Login(ctx, "admin@shop.test", "correct-horse")
	require.NoError(t, err)
}

func TestChangePassword_Success(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.ChangePassword(ctx, "admin@shop.test", "correct-horse", "brand-new-pass"))

	_, _, err := svc.Login(ctx, "admin@shop.test", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "old password no longer valid")

	_, _, err = svc.Login(ctx, "admin@shop.test", "brand-new-pass")
	assert.NoError(t, err)
}

func TestChangePassword_EnforcesMinimumLength(t *testing.T) {
	svc, _ := newAuthService(t)

	err := svc.ChangePassword(context.Background(), "admin@shop.test", "correct-horse", "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestBootstrap_IdempotentAndOptional(t *testing.T) {
	store := memory.New()
	svc := auth.NewService(store, auth.NewTokenIssuer("test-secret", time.Hour))
	ctx := context.Background()

	// Empty credentials mean no bootstrap configured.
	require.NoError(t, svc.Bootstrap(ctx, "", ""))
	_, err := store.GetUserByEmail(ctx, "admin@shop.test")
	assert.True(t, ledger.IsNotFound(err))

	require.NoError(t, svc.Bootstrap(ctx, "admin@shop.test", "correct-horse"))

	// A second bootstrap does not overwrite the existing account.
	require.NoError(t, svc.Bootstrap(ctx, "admin@shop.test", "different-pass"))
	_, _, err = svc.Login(ctx, "admin@shop.test", "correct-horse")
	assert.NoError(t, err)
}

func TestBootstrap_RejectsShortPassword(t *testing.T) {
	svc := auth.NewService(memory.New(), auth.NewTokenIssuer("test-secret", time.Hour))

	err := svc.Bootstrap(context.Background(), "admin@shop.test", "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
