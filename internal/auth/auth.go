// Package auth provides email/password accounts and bearer tokens. The
// rest of the service only needs to know whether a user is present and
// what their id is.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wellness-meal-planner/internal/logger"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidInput       = errors.New("invalid sign up input")
)

// Identity is the authenticated user as seen by the rest of the service.
type Identity struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Claims are the JWT claims issued on sign in.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service signs users up and in and verifies their tokens.
type Service struct {
	db     *sql.DB
	log    *logger.Logger
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a new Service.
func NewService(db *sql.DB, log *logger.Logger, jwtSecret string, ttl time.Duration) *Service {
	return &Service{
		db:     db,
		log:    log.With("service", "AuthService"),
		secret: []byte(jwtSecret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SignUp registers a new account. The email is matched case-insensitively.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := &Identity{UserID: uuid.NewString(), Email: email, DisplayName: strings.TrimSpace(displayName)}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.UserID, id.Email, string(hash), id.DisplayName, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", "user_id", id.UserID)
	return id, nil
}

// SignIn checks the password and issues a signed token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *Identity, error) {
	email = normalizeEmail(email)

	var id Identity
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name FROM users WHERE email = ?`, email,
	).Scan(&id.UserID, &id.Email, &hash, &id.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(&id)
	if err != nil {
		return "", nil, err
	}
	return token, &id, nil
}

// SignOut revokes token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT(jti) DO NOTHING`,
		claims.ID, claims.ExpiresAt.Time.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, s.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		s.log.Warn("failed to purge expired revocations", "error", err)
	}
	return nil
}

// Verify returns the identity behind a valid, unrevoked token.
func (s *Service) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM revoked_tokens WHERE jti = ?`, claims.ID).Scan(&one)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}

	return &Identity{UserID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}

func (s *Service) issueToken(id *Identity) (string, error) {
	now := s.now()
	claims := Claims{
		Email: id.Email,
		Name:  id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrUnauthenticated)
	}
	return claims, nil
}

// UserMessage maps an auth error to the text shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password. Please try again."
	case errors.Is(err, ErrAlreadyRegistered):
		return "This email is already registered. Please sign in instead."
	case errors.Is(err, ErrInvalidInput):
		return fmt.Sprintf("Please enter a valid email and a password of at least %d characters.", MinPasswordLength)
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	}
	return "Something went wrong. Please try again."
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
