package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"log/slog"

	"questbot/core/logger"
	"questbot/internal/apperr"
	"questbot/internal/models"
)

// Users persists chat participants keyed by their Telegram account ID.
type Users struct {
	db *sqlx.DB
}

// NewUsers constructs the user repository.
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db}
}

// ByTelegramID returns the user with the given Telegram ID.
func (r *Users) ByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("user not registered")
		}
		return nil, fmt.Errorf("users: select by telegram id: %w", err)
	}
	return &user, nil
}

// ByID returns the user with the given primary key.
func (r *Users) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("users: select by id: %w", err)
	}
	return &user, nil
}

// GetOrCreate returns the existing user or lazily creates an unverified one.
func (r *Users) GetOrCreate(ctx context.Context, telegramID int64, name string) (*models.User, bool, error) {
	if user, err := r.ByTelegramID(ctx, telegramID); err == nil {
		return user, false, nil
	} else if !apperr.IsNotFound(err) {
		return nil, false, err
	}

	user := &models.User{
		ID:         uuid.New(),
		TelegramID: telegramID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, name, is_verified, is_route_builder, created_at)
		 VALUES ($1, $2, $3, FALSE, FALSE, $4)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		user.ID, user.TelegramID, user.Name, user.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("users: insert: %w", err)
	}

	// The insert may have lost a race with a concurrent first message.
	stored, err := r.ByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	created := stored.ID == user.ID
	if created {
		logger.Info(ctx, "service.users", "users.create",
			slog.String("status", "ok"),
			slog.Int64("user_id", telegramID),
		)
	}
	return stored, created, nil
}

// Verify stores the shared phone number and flips the verified flag.
func (r *Users) Verify(ctx context.Context, telegramID int64, phone string) (*models.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone_number = $1, is_verified = TRUE WHERE telegram_id = $2`,
		phone, telegramID)
	if err != nil {
		return nil, fmt.Errorf("users: verify: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("user not registered")
	}
	logger.Info(ctx, "service.users", "users.verify",
		slog.String("status", "ok"),
		slog.Int64("user_id", telegramID),
	)
	return r.ByTelegramID(ctx, telegramID)
}
