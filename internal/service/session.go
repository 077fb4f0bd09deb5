package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialfeed/socialfeed-auth/internal/cache"
	"github.com/socialfeed/socialfeed-auth/internal/domain"
	"github.com/socialfeed/socialfeed-auth/internal/repository"
	"github.com/socialfeed/socialfeed-auth/internal/token"
)

// Password hashes must stay expensive to brute-force; verify takes ~100ms at
// this work factor.
const bcryptCost = 12

const tracerName = "socialfeed-auth/session"

// SessionManager owns the session lifecycle: signup, login, refresh, logout.
// It coordinates the credential store, the session cache and the token codec.
type SessionManager struct {
	users      repository.UserRepository
	sessions   cache.SessionCache
	codec      *token.Codec
	refreshTTL time.Duration
	logger     *zap.Logger
}

func NewSessionManager(
	users repository.UserRepository,
	sessions cache.SessionCache,
	codec *token.Codec,
	refreshTTL time.Duration,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		users:      users,
		sessions:   sessions,
		codec:      codec,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Signup registers a new user and opens its first session. Duplicate email is
// reported before duplicate username.
func (s *SessionManager) Signup(ctx context.Context, username, email, password string) (domain.User, domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "SessionManager.Signup")
	defer span.End()

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.User{}, domain.TokenPair{}, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("check existing email: %w", err)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.User{}, domain.TokenPair{}, ErrDuplicateUsername
	} else if !errors.Is(err, repository.ErrNotFound) {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("check existing username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.openSession(ctx, created)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, err
	}

	s.logger.Info("user signed up", zap.String("user_id", created.ID))
	return created, pair, nil
}

// Login authenticates by email and password and opens a fresh session,
// superseding any previous one for the same user.
func (s *SessionManager) Login(ctx context.Context, email, password string) (domain.User, domain.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "SessionManager.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
		}
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, domain.TokenPair{}, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated on this path.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (string, error) {
	ctx, span := s.startSpan(ctx, "SessionManager.Refresh")
	defer span.End()

	payload, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrRefreshTokenInvalid
	}

	stored, err := s.sessions.Get(ctx, cache.RefreshKey(payload.ID))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", ErrRefreshTokenInvalid
		}
		span.RecordError(err)
		return "", fmt.Errorf("load refresh slot: %w", err)
	}
	// A value that does not match exactly belongs to a newer session.
	if stored != refreshToken {
		return "", ErrRefreshTokenInvalid
	}

	accessToken, err := s.codec.SignAccess(payload)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return accessToken, nil
}

// Logout drops the user's refresh slot and, best effort, blacklists the
// access token presented in authHeader for the rest of its lifetime. A
// malformed or missing access token never fails the logout.
func (s *SessionManager) Logout(ctx context.Context, userID, authHeader string) error {
	ctx, span := s.startSpan(ctx, "SessionManager.Logout")
	defer span.End()

	if err := s.sessions.Delete(ctx, cache.RefreshKey(userID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("drop refresh slot: %w", err)
	}

	if accessToken, ok := token.ExtractBearer(authHeader); ok {
		remaining, err := token.RemainingLifetime(accessToken)
		if err == nil && remaining > 0 {
			if err := s.sessions.SetWithTTL(ctx, cache.BlacklistKey(accessToken), remaining, cache.RevokedSentinel); err != nil {
				s.logger.Warn("failed to blacklist access token", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	s.logger.Info("user logged out", zap.String("user_id", userID))
	return nil
}

// UpdateFCMToken stores the push-delivery device token on the user profile.
func (s *SessionManager) UpdateFCMToken(ctx context.Context, userID, fcmToken string) error {
	ctx, span := s.startSpan(ctx, "SessionManager.UpdateFCMToken")
	defer span.End()

	if err := s.users.UpdateFCMToken(ctx, userID, fcmToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("update fcm token: %w", err)
	}
	return nil
}

// openSession issues a token pair and claims the user's single refresh slot,
// silently superseding whatever was there before.
func (s *SessionManager) openSession(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	payload := domain.TokenPayload{ID: user.ID, Email: user.Email, Username: user.Username}

	accessToken, err := s.codec.SignAccess(payload)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.codec.SignRefresh(payload)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.sessions.SetWithTTL(ctx, cache.RefreshKey(user.ID), s.refreshTTL, refreshToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *SessionManager) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
