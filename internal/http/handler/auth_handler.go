package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialfeed/socialfeed-auth/internal/domain"
	"github.com/socialfeed/socialfeed-auth/internal/http/middleware"
	"github.com/socialfeed/socialfeed-auth/internal/http/response"
	"github.com/socialfeed/socialfeed-auth/internal/service"
)

const (
	msgSignup          = "Account created successfully."
	msgLogin           = "Logged in successfully."
	msgLogout          = "Logged out successfully."
	msgTokenRefreshed  = "Access token refreshed successfully."
	msgFCMTokenUpdated = "FCM token updated successfully."
	msgInternalError   = "An unexpected error occurred. Please try again later."
)

// AuthHandler exposes the session lifecycle over HTTP.
type AuthHandler struct {
	Sessions *service.SessionManager
	Logger   *zap.Logger
}

func NewAuthHandler(sessions *service.SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Sessions: sessions, Logger: logger}
}

type signupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type fcmTokenRequest struct {
	FCMToken string `json:"fcmToken" binding:"required"`
}

type sessionResponse struct {
	User   domain.User      `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, tokens, err := h.Sessions.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, msgSignup, sessionResponse{User: user, Tokens: tokens})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, tokens, err := h.Sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, msgLogin, sessionResponse{User: user, Tokens: tokens})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	accessToken, err := h.Sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, msgTokenRefreshed, gin.H{"accessToken": accessToken})
}

// Logout handles POST /auth/logout. The route is protected, so the identity
// is always present by the time this runs.
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		response.Error(c, service.ErrUnauthorized.Status, service.ErrUnauthorized.Message, nil)
		return
	}

	if err := h.Sessions.Logout(c.Request.Context(), identity.ID, c.GetHeader("Authorization")); err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, msgLogout, nil)
}

// UpdateFCMToken handles PUT /auth/fcm-token.
func (h *AuthHandler) UpdateFCMToken(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		response.Error(c, service.ErrUnauthorized.Status, service.ErrUnauthorized.Message, nil)
		return
	}

	var req fcmTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := h.Sessions.UpdateFCMToken(c.Request.Context(), identity.ID, req.FCMToken); err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, msgFCMTokenUpdated, nil)
}

// respondError converts service errors into the envelope. Anything that is
// not a typed service error stays server-side: log the detail, answer
// generically.
func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		response.Error(c, svcErr.Status, svcErr.Message, nil)
		return
	}
	h.Logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.Error(c, http.StatusInternalServerError, msgInternalError, nil)
}
