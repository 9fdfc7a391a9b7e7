package users

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradefolio/tracker/internal/database"
	"github.com/tradefolio/tracker/internal/events"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	db := database.NewTestDB(t, "tracker")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	svc, err := NewService(repo, TokenConfig{SecretKey: "test-secret", Algorithm: "HS256", TTL: time.Hour}, nil, zerolog.Nop())
	require.NoError(t, err)
	svc.SetHashCost(bcrypt.MinCost)
	return svc, repo
}

func registerAlice(t *testing.T, svc *Service) *User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{
		Email:    "Alice@Example.com",
		Username: "alice",
		FullName: "Alice Doe",
		Password: "s3cret!",
	})
	require.NoError(t, err)
	return u
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	_, err := NewService(nil, TokenConfig{SecretKey: "x", Algorithm: "RS256"}, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewService(nil, TokenConfig{SecretKey: "x", Algorithm: "none"}, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewService(nil, TokenConfig{Algorithm: "HS256"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	svc, repo := newTestService(t)
	u := registerAlice(t, svc)

	assert.Greater(t, u.ID, int64(0))
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.True(t, u.CashBalance.IsZero())
	assert.NotEqual(t, "s3cret!", u.HashedPassword)

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", stored.FullName)
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _ := newTestService(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "alice@example.com", Username: "other", FullName: "x", Password: "pw1234",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Username: "alice", FullName: "x", Password: "pw1234",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_EmitsEvent(t *testing.T) {
	db := database.NewTestDB(t, "tracker")
	bus := events.NewBus(zerolog.Nop())
	var got *events.Event
	bus.Subscribe(events.UserRegistered, func(e *events.Event) { got = e })

	svc, err := NewService(NewRepository(db.Conn(), zerolog.Nop()),
		TokenConfig{SecretKey: "k", Algorithm: "HS256", TTL: time.Hour},
		events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	svc.SetHashCost(bcrypt.MinCost)

	registerAlice(t, svc)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Data["username"])
}

func TestLogin(t *testing.T) {
	svc, repo := newTestService(t)
	u := registerAlice(t, svc)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "alice@example.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, user.ID)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, repo.SetActive(ctx, u.ID, false))
	_, _, err = svc.Login(ctx, "alice@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	u := registerAlice(t, svc)
	ctx := context.Background()

	token, err := svc.IssueToken(u)
	require.NoError(t, err)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, u.ID, claims.UserID)
	assert.NotEmpty(t, claims.ID)

	authed, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, authed.ID)
}

func TestAuthenticate_Rejections(t *testing.T) {
	svc, _ := newTestService(t)
	u := registerAlice(t, svc)
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID: u.ID,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   u.Email,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := svc.IssueToken(u)
		svc.now = time.Now
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown subject", func(t *testing.T) {
		token, err := svc.IssueToken(&User{ID: 999, Email: "ghost@example.com"})
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID:           u.ID,
			RegisteredClaims: jwt.RegisteredClaims{Subject: u.Email},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
