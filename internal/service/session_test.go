package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialfeed/socialfeed-auth/internal/cache"
	"github.com/socialfeed/socialfeed-auth/internal/domain"
	"github.com/socialfeed/socialfeed-auth/internal/repository"
	"github.com/socialfeed/socialfeed-auth/internal/service"
	"github.com/socialfeed/socialfeed-auth/internal/token"
)

func newManager(t *testing.T) (*service.SessionManager, *memoryUserRepo, *memoryCache) {
	t.Helper()
	users := newMemoryUserRepo()
	sessions := newMemoryCache()
	codec := token.NewCodec("access-secret", 15*time.Minute, "refresh-secret", 7*24*time.Hour)
	manager := service.NewSessionManager(users, sessions, codec, 7*24*time.Hour, zap.NewNop())
	return manager, users, sessions
}

func TestSignupLoginLifecycle(t *testing.T) {
	ctx := context.Background()
	manager, _, sessions := newManager(t)

	user, tokens, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice", user.Username)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	stored, err := sessions.Get(ctx, cache.RefreshKey(user.ID))
	require.NoError(t, err)
	assert.Equal(t, tokens.RefreshToken, stored)

	_, _, err = manager.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = manager.Login(ctx, "nobody@x.com", "secret1")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	loggedIn, newTokens, err := manager.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEqual(t, tokens.AccessToken, newTokens.AccessToken)
}

func TestSignupDuplicates(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newManager(t)

	_, _, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = manager.Signup(ctx, "bob", "a@x.com", "secret1")
	require.ErrorIs(t, err, service.ErrDuplicateEmail)

	_, _, err = manager.Signup(ctx, "alice", "b@x.com", "secret1")
	require.ErrorIs(t, err, service.ErrDuplicateUsername)

	// Both taken: the email conflict wins.
	_, _, err = manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.ErrorIs(t, err, service.ErrDuplicateEmail)
}

func TestPasswordIsHashed(t *testing.T) {
	ctx := context.Background()
	manager, users, _ := newManager(t)

	_, _, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	stored, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newManager(t)

	_, tokens, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	accessToken, err := manager.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	assert.NotEqual(t, tokens.AccessToken, accessToken)

	_, err = manager.Refresh(ctx, "garbage")
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	// An access token is signed with the wrong secret for this path.
	_, err = manager.Refresh(ctx, tokens.AccessToken)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)
}

func TestSecondLoginSupersedesFirstSession(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newManager(t)

	_, first, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	_, second, err := manager.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	_, err = manager.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	manager, _, sessions := newManager(t)

	user, tokens, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(ctx, user.ID, "Bearer "+tokens.AccessToken))

	// Refresh slot is gone, so the session cannot be extended.
	_, err = manager.Refresh(ctx, tokens.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshTokenInvalid)

	// The presented access token is blacklisted for its remaining lifetime.
	value, err := sessions.Get(ctx, cache.BlacklistKey(tokens.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, cache.RevokedSentinel, value)
	ttl := sessions.ttl(cache.BlacklistKey(tokens.AccessToken))
	assert.Greater(t, ttl, 14*time.Minute)
	assert.LessOrEqual(t, ttl, 15*time.Minute)
}

func TestLogoutIsIdempotentAndBestEffort(t *testing.T) {
	ctx := context.Background()
	manager, _, sessions := newManager(t)

	user, _, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	// No bearer token at all: only the refresh slot is dropped.
	require.NoError(t, manager.Logout(ctx, user.ID, ""))
	// Malformed access token: swallowed, logout still succeeds.
	require.NoError(t, manager.Logout(ctx, user.ID, "Bearer not-a-jwt"))
	// Repeating the logout is a no-op.
	require.NoError(t, manager.Logout(ctx, user.ID, ""))

	assert.Zero(t, sessions.blacklistSize())
}

func TestCacheOutageIsNotAnAuthDecision(t *testing.T) {
	ctx := context.Background()
	users := newMemoryUserRepo()
	codec := token.NewCodec("access-secret", 15*time.Minute, "refresh-secret", 7*24*time.Hour)
	healthy := newMemoryCache()
	manager := service.NewSessionManager(users, healthy, codec, 7*24*time.Hour, zap.NewNop())

	_, tokens, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	broken := service.NewSessionManager(users, failingCache{}, codec, 7*24*time.Hour, zap.NewNop())

	_, err = broken.Refresh(ctx, tokens.RefreshToken)
	require.Error(t, err)
	var svcErr *service.Error
	require.False(t, errors.As(err, &svcErr), "infra failure must not map to a client-visible auth error")

	_, _, err = broken.Login(ctx, "a@x.com", "secret1")
	require.Error(t, err)
	require.False(t, errors.As(err, &svcErr))
}

func TestUpdateFCMToken(t *testing.T) {
	ctx := context.Background()
	manager, users, _ := newManager(t)

	user, _, err := manager.Signup(ctx, "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, manager.UpdateFCMToken(ctx, user.ID, "device-token"))
	stored, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "device-token", stored.FCMToken)

	err = manager.UpdateFCMToken(ctx, "missing-user", "device-token")
	require.ErrorIs(t, err, service.ErrUserNotFound)
}

// memoryUserRepo is an in-memory credential store.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User // by id
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]domain.User{}}
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *memoryUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) UpdateFCMToken(_ context.Context, userID, fcmToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.FCMToken = fcmToken
	m.users[userID] = user
	return nil
}

// memoryCache is an in-memory SessionCache with TTL bookkeeping.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, expires: map[string]time.Time{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok || time.Now().After(m.expires[key]) {
		return "", cache.ErrCacheMiss
	}
	return value, nil
}

func (m *memoryCache) SetWithTTL(_ context.Context, key string, ttl time.Duration, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.expires[key] = time.Now().Add(ttl)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.expires, key)
	return nil
}

func (m *memoryCache) Close() error { return nil }

func (m *memoryCache) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Until(m.expires[key])
}

func (m *memoryCache) blacklistSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.values {
		if len(key) > len("blacklist:") && key[:len("blacklist:")] == "blacklist:" {
			n++
		}
	}
	return n
}

// failingCache simulates an unreachable cache.
type failingCache struct{}

var errCacheDown = errors.New("cache unreachable")

func (failingCache) Get(context.Context, string) (string, error) { return "", errCacheDown }
func (failingCache) SetWithTTL(context.Context, string, time.Duration, string) error {
	return errCacheDown
}
func (failingCache) Delete(context.Context, string) error { return errCacheDown }
func (failingCache) Close() error                         { return nil }
