package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/socialfeed/socialfeed-auth/internal/domain"
)

var (
	// ErrTokenExpired means the token was well-formed and correctly signed
	// but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers every other verification failure: bad
	// structure, bad signature, wrong algorithm.
	ErrTokenMalformed = errors.New("token invalid or malformed")
)

const bearerPrefix = "Bearer "

// Claims are the signed contents of both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Codec signs and verifies the two token kinds. Access and refresh tokens use
// distinct secrets so one kind cannot be presented as the other.
type Codec struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
}

func NewCodec(accessSecret string, accessTTL time.Duration, refreshSecret string, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		accessTTL:     accessTTL,
		refreshSecret: []byte(refreshSecret),
		refreshTTL:    refreshTTL,
	}
}

// SignAccess mints a short-lived access token for payload.
func (c *Codec) SignAccess(payload domain.TokenPayload) (string, error) {
	return sign(payload, c.accessSecret, c.accessTTL)
}

// SignRefresh mints a long-lived refresh token for payload.
func (c *Codec) SignRefresh(payload domain.TokenPayload) (string, error) {
	return sign(payload, c.refreshSecret, c.refreshTTL)
}

// VerifyAccess validates tokenString against the access secret.
func (c *Codec) VerifyAccess(tokenString string) (domain.TokenPayload, error) {
	return verify(tokenString, c.accessSecret)
}

// VerifyRefresh validates tokenString against the refresh secret.
func (c *Codec) VerifyRefresh(tokenString string) (domain.TokenPayload, error) {
	return verify(tokenString, c.refreshSecret)
}

func sign(payload domain.TokenPayload, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every minted token distinct, even two for the
			// same payload within the same second.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   payload.ID,
		Email:    payload.Email,
		Username: payload.Username,
	})
	return token.SignedString(secret)
}

func verify(tokenString string, secret []byte) (domain.TokenPayload, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TokenPayload{}, ErrTokenExpired
		}
		return domain.TokenPayload{}, ErrTokenMalformed
	}
	if !token.Valid {
		return domain.TokenPayload{}, ErrTokenMalformed
	}
	return domain.TokenPayload{ID: claims.UserID, Email: claims.Email, Username: claims.Username}, nil
}

// RemainingLifetime decodes tokenString without verifying its signature and
// returns the time left until its embedded expiry. Used by logout to size the
// blacklist TTL; a revoked token does not need to be authentic, only parsable.
func RemainingLifetime(tokenString string) (time.Duration, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return 0, ErrTokenMalformed
	}
	if claims.ExpiresAt == nil {
		return 0, ErrTokenMalformed
	}
	return time.Until(claims.ExpiresAt.Time), nil
}

// ExtractBearer parses an "Authorization: Bearer <token>" header value.
// It returns false if the header is absent or not a bearer credential.
func ExtractBearer(headerValue string) (string, bool) {
	if len(headerValue) <= len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimSpace(headerValue[len(bearerPrefix):])
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}
