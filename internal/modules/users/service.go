package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradefolio/tracker/internal/events"
)

// TokenConfig configures access token issuance
type TokenConfig struct {
	SecretKey string
	Algorithm string // HS256, HS384 or HS512
	TTL       time.Duration
}

// Claims is the payload of an access token. Subject carries the email.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Service handles registration, login and token verification
type Service struct {
	repo     *Repository
	secret   []byte
	method   jwt.SigningMethod
	ttl      time.Duration
	hashCost int
	events   *events.Manager
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a user service. eventManager may be nil.
func NewService(repo *Repository, cfg TokenConfig, eventManager *events.Manager, log zerolog.Logger) (*Service, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key is required")
	}

	return &Service{
		repo:     repo,
		secret:   []byte(cfg.SecretKey),
		method:   method,
		ttl:      cfg.TTL,
		hashCost: bcrypt.DefaultCost,
		events:   eventManager,
		log:      log.With().Str("service", "users").Logger(),
		now:      time.Now,
	}, nil
}

// SetHashCost overrides the bcrypt cost (tests use bcrypt.MinCost)
func (s *Service) SetHashCost(cost int) {
	s.hashCost = cost
}

// Register creates an account with a zero cash balance
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, User{
		Email:          email,
		Username:       username,
		FullName:       strings.TrimSpace(in.FullName),
		HashedPassword: string(hash),
		IsActive:       true,
		CashBalance:    decimal.Zero,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	if s.events != nil {
		s.events.EmitTyped("users", &events.UserRegisteredData{UserID: user.ID, Username: user.Username})
	}
	return user, nil
}

// Login verifies credentials and returns a fresh access token
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrInactiveUser
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs an access token for user
func (s *Service) IssueToken(user *User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate resolves a bearer token to its user.
// Any parsing, signature, expiry or lookup failure is ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID returns a user by id
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
