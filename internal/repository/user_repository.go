package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/amirk1998/daybook/internal/database"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

type UserRepository struct {
	db *sql.DB
	tm *database.TransactionManager
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, tm *database.TransactionManager) *UserRepository {
	return &UserRepository{db: db, tm: tm}
}

const userColumns = `id, username, email, password_hash, full_name, profile_icon, font_family,
        diary_pin, created_at, updated_at, last_login, is_active, failed_login_attempts, locked_until`

func scanUser(s scanner) (*models.User, error) {
	user := &models.User{}
	err := s.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.ProfileIcon,
		&user.FontFamily,
		&user.DiaryPin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
	)
	return user, err
}

// Create inserts user together with its starter categories in one
// transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, categories []models.Category) error {
	query := `
        INSERT INTO users (username, email, password_hash, full_name, profile_icon, font_family, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `

	if user.ProfileIcon == "" {
		user.ProfileIcon = "default"
	}
	if user.FontFamily == "" {
		user.FontFamily = "Inter"
	}

	now := time.Now()
	err := r.tm.Execute(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.FullName,
			user.ProfileIcon,
			user.FontFamily,
			now,
			now,
		)
		if isUniqueViolation(err) {
			return errors.ErrUserAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get user ID: %w", err)
		}
		user.ID = int(id)

		for _, c := range categories {
			category := c
			category.UserID = user.ID
			if err := insertCategory(ctx, tx, &category, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		user.ID = 0
		return err
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByEmail retrieves a user by email, compared case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = ?", strings.ToLower(email))
}

// UpdateProfile writes the editable profile columns of user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
        UPDATE users
        SET full_name = ?, email = ?, profile_icon = ?, font_family = ?, updated_at = ?
        WHERE id = ?
    `

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		user.FullName,
		user.Email,
		user.ProfileIcon,
		user.FontFamily,
		now,
		user.ID,
	)
	if isUniqueViolation(err) {
		return errors.Conflict("email is already in use")
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	user.UpdatedAt = now
	return nil
}

// UpdateProfileIcon sets only the profile icon.
func (r *UserRepository) UpdateProfileIcon(ctx context.Context, userID int, icon string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_icon = ?, updated_at = ? WHERE id = ?`,
		icon, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update profile icon: %w", err)
	}
	return requireAffected(result)
}

// UpdatePassword stores a new password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(result)
}

// SetDiaryPin stores the hash of the diary PIN.
func (r *UserRepository) SetDiaryPin(ctx context.Context, userID int, pinHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET diary_pin = ?, updated_at = ? WHERE id = ?`,
		pinHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to set diary pin: %w", err)
	}
	return requireAffected(result)
}

// UpdateLastLogin updates user's last login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int) error {
	query := `
        UPDATE users
        SET last_login = ?, failed_login_attempts = 0, locked_until = NULL
        WHERE id = ?
    `

	_, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// IncrementFailedLogins increments failed login attempts and returns the new count
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, userID int) (int, error) {
	query := `
        UPDATE users
        SET failed_login_attempts = failed_login_attempts + 1
        WHERE id = ?
    `

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return 0, fmt.Errorf("failed to increment failed logins: %w", err)
	}

	var attempts int
	err := r.db.QueryRowContext(ctx, `SELECT failed_login_attempts FROM users WHERE id = ?`, userID).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("failed to read failed logins: %w", err)
	}

	return attempts, nil
}

// LockAccount locks user account for specified duration
func (r *UserRepository) LockAccount(ctx context.Context, userID int, duration time.Duration) error {
	lockedUntil := time.Now().Add(duration)

	query := `
        UPDATE users
        SET locked_until = ?, failed_login_attempts = 0
        WHERE id = ?
    `

	_, err := r.db.ExecContext(ctx, query, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	return nil
}
