package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finaccosolutions/vbastudio/internal/repository"
)

const (
	tokenIssuer       = "vbastudio"
	minPasswordLength = 6
)

// Service implements registration, login and token verification. Tokens
// are HS256 JWTs; each carries a jti backed by an auth_sessions row so
// sign-out revokes it before expiry.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	secret   []byte
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an accounts service.
func NewService(users UserRepository, sessions SessionRepository,
	tokenSecret string, tokenTTL time.Duration, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		secret:   []byte(tokenSecret),
		ttl:      tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account with an empty profile and issues its
// first session.
func (s *Service) Register(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("account registered", "user_id", user.ID)
	return s.issue(ctx, user, "")
}

// Login verifies credentials and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	key, err := s.secretKey(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, key)
}

// Logout revokes the token's session. Unknown or already revoked tokens
// fail with the token errors.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.verify(token)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info("session revoked", "user_id", claims.Subject)
	return nil
}

// Authenticate returns the user id behind a live token.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := s.verify(token)
	if err != nil {
		return "", err
	}

	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrTokenInvalid
		}
		return "", fmt.Errorf("lookup session: %w", err)
	}
	if !sess.Active(s.now().UTC()) {
		return "", ErrTokenRevoked
	}
	return sess.UserID, nil
}

// CurrentSession resolves a live token to its account and profile key.
// The token in the result is the caller's own, unchanged.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Session, error) {
	userID, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	key, err := s.secretKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		SecretKey: key,
	}, nil
}

// UpdateSecretKey writes the user's generation key. Idempotent; the
// empty string removes it.
func (s *Service) UpdateSecretKey(ctx context.Context, userID, key string) error {
	if err := s.users.UpsertSecretKey(ctx, userID, key); err != nil {
		return fmt.Errorf("upsert secret key: %w", err)
	}
	s.logger.Info("secret key updated", "user_id", userID, "provisioned", key != "")
	return nil
}

// SecretKey returns the user's generation key, empty when none is set.
func (s *Service) SecretKey(ctx context.Context, userID string) (string, error) {
	return s.secretKey(ctx, userID)
}

func (s *Service) secretKey(ctx context.Context, userID string) (string, error) {
	prof, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lookup profile: %w", err)
	}
	return prof.SecretKey, nil
}

func (s *Service) issue(ctx context.Context, user *User, secretKey string) (*Session, error) {
	now := s.now().UTC()
	sess := &AuthSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   user.ID,
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		SecretKey: secretKey,
	}, nil
}

func (s *Service) verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenRevoked
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func validateCredentials(email, password string) error {
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") || email == "" {
		return ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
