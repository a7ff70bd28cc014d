/*
Package auth manages admin accounts and session tokens.

PURPOSE:
  The ledger is admin-facing: every API call after login runs under an
  authenticated admin. This package covers the whole identity surface:
  bcrypt password hashes, HS256 JWT session tokens with an admin claim,
  login, and password change with old-password reauthentication.

SECURITY NOTES:
  - Login failures are indistinguishable for "no such user" and "wrong
    password" (both return ErrInvalidCredentials).
  - ChangePassword reauthenticates with the old password before writing
    the new hash.
  - Non-admin accounts can authenticate but are denied by the API's admin
    guard.

SEE ALSO:
  - api/middleware in api/server.go: token verification per request
  - store/memory, store/sqlite: UserStore implementations
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/karat/ledger-engine/ledger"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for expired, malformed, or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// MinPasswordLength is enforced on password change and bootstrap.
const MinPasswordLength = 8

// =============================================================================
// USERS
// =============================================================================

type User struct {
	Email        string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
}

// UserStore persists admin accounts.
type UserStore interface {
	// GetUserByEmail returns the user or a ledger.NotFoundError.
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// HashPassword hashes with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// =============================================================================
// TOKENS
// =============================================================================

// Identity is the verified content of a session token.
type Identity struct {
	Email string
	Admin bool
}

type tokenClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the user.
func (ti *TokenIssuer) Issue(user User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Admin: user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Verify parses and validates a token, returning the identity it carries.
func (ti *TokenIssuer) Verify(token string) (Identity, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Email: claims.Subject, Admin: claims.Admin}, nil
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Users  UserStore
	Tokens *TokenIssuer
}

func NewService(users UserStore, tokens *TokenIssuer) *Service {
	return &Service{Users: users, Tokens: tokens}
}

// Login verifies email+password and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Identity, error) {
	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if ledger.IsNotFound(err) {
			return "", Identity{}, ErrInvalidCredentials
		}
		return "", Identity{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return "", Identity{}, ErrInvalidCredentials
	}
	token, err := s.Tokens.Issue(user)
	if err != nil {
		return "", Identity{}, err
	}
	return token, Identity{Email: user.Email, Admin: user.Admin}, nil
}

// ChangePassword reauthenticates with the old password, then stores the
// new hash.
func (s *Service) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return &ledger.ValidationError{Field: "newPassword",
			Reason: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if ledger.IsNotFound(err) {
			return ErrInvalidCredentials
		}
		return err
	}
	if !CheckPassword(user.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Users.UpdatePassword(ctx, email, hash)
}

// Bootstrap creates the admin account if it does not exist yet. Used at
// startup with credentials from the environment.
func (s *Service) Bootstrap(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if len(password) < MinPasswordLength {
		return &ledger.ValidationError{Field: "password",
			Reason: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	if _, err := s.Users.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !ledger.IsNotFound(err) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.Users.CreateUser(ctx, User{
		Email:        email,
		PasswordHash: hash,
		Admin:        true,
		CreatedAt:    time.Now().UTC(),
	})
}
