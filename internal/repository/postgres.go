package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialfeed/socialfeed-auth/internal/domain"
)

// Compile-time interface assertion.
var _ UserRepository = (*PostgresUserRepo)(nil)

// PostgresUserRepo implements UserRepository on a pgx connection pool.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserSQL = `SELECT id, username, email, password_hash, COALESCE(fcm_token, ''), created_at, updated_at
FROM users`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserSQL+` WHERE username = $1`, username)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, username, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id, username, email, password_hash, COALESCE(fcm_token, ''), created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := r.db.QueryRow(ctx, insertUserSQL, id, user.Username, user.Email, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) UpdateFCMToken(ctx context.Context, userID, fcmToken string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET fcm_token = $1, updated_at = now() WHERE id = $2`,
		fcmToken, userID,
	)
	if err != nil {
		return fmt.Errorf("update fcm token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update fcm token: %w", ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user      domain.User
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FCMToken, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return user, nil
}
