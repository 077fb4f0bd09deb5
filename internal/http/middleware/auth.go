package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialfeed/socialfeed-auth/internal/cache"
	"github.com/socialfeed/socialfeed-auth/internal/domain"
	"github.com/socialfeed/socialfeed-auth/internal/http/response"
	"github.com/socialfeed/socialfeed-auth/internal/service"
	"github.com/socialfeed/socialfeed-auth/internal/token"
)

const identityKey = "authIdentity"

// Auth guards protected routes: it validates the bearer access token, checks
// the revocation blacklist and attaches the authenticated identity.
type Auth struct {
	Sessions cache.SessionCache
	Codec    *token.Codec
	Logger   *zap.Logger
}

func NewAuth(sessions cache.SessionCache, codec *token.Codec, logger *zap.Logger) *Auth {
	return &Auth{Sessions: sessions, Codec: codec, Logger: logger}
}

// RequireAuth rejects the request unless it carries a live, non-revoked
// access token. The blacklist lookup runs before signature verification so a
// revoked token is refused even while cryptographically valid.
func (m *Auth) RequireAuth(c *gin.Context) {
	accessToken, ok := token.ExtractBearer(c.GetHeader("Authorization"))
	if !ok {
		response.AbortError(c, service.ErrUnauthorized.Status, service.ErrUnauthorized.Message)
		return
	}

	_, err := m.Sessions.Get(c.Request.Context(), cache.BlacklistKey(accessToken))
	switch {
	case err == nil:
		response.AbortError(c, service.ErrSessionExpired.Status, service.ErrSessionExpired.Message)
		return
	case !errors.Is(err, cache.ErrCacheMiss):
		// A cache outage is never an authentication decision.
		m.Logger.Error("blacklist lookup failed", zap.Error(err))
		response.AbortError(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
		return
	}

	payload, err := m.Codec.VerifyAccess(accessToken)
	if err != nil {
		m.Logger.Debug("access token rejected", zap.Error(err))
		response.AbortError(c, service.ErrTokenInvalid.Status, service.ErrTokenInvalid.Message)
		return
	}

	c.Set(identityKey, payload)
	c.Next()
}

// GetIdentity returns the authenticated identity attached by RequireAuth.
func GetIdentity(c *gin.Context) (domain.TokenPayload, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return domain.TokenPayload{}, false
	}
	payload, ok := value.(domain.TokenPayload)
	return payload, ok
}
