package repository

import (
	"context"
	"errors"

	"github.com/socialfeed/socialfeed-auth/internal/domain"
)

// ErrNotFound is returned when a lookup matches no user.
var ErrNotFound = errors.New("user not found")

// UserRepository is the credential store: durable user records keyed by id,
// email and username.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdateFCMToken(ctx context.Context, userID, fcmToken string) error
}
