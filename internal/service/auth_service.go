package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/ratelimit"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/internal/security"
	"github.com/amirk1998/daybook/pkg/errors"
	"github.com/amirk1998/daybook/pkg/validator"
)

// LoginPolicy controls account lockout after failed logins.
type LoginPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

type AuthService struct {
	userRepo    *repository.UserRepository
	hasher      *security.SecretHasher
	validator   *validator.Validator
	rateLimiter *ratelimit.RateLimiter
	auditLogger *audit.Logger
	policy      LoginPolicy
	now         func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo *repository.UserRepository,
	hasher *security.SecretHasher,
	rateLimiter *ratelimit.RateLimiter,
	auditLogger *audit.Logger,
	policy LoginPolicy,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		hasher:      hasher,
		validator:   validator.New(),
		rateLimiter: rateLimiter,
		auditLogger: auditLogger,
		policy:      policy,
		now:         time.Now,
	}
}

// Limiter returns the limiter guarding register and login.
func (s *AuthService) Limiter() *ratelimit.RateLimiter {
	return s.rateLimiter
}

// Register creates the account and its default categories.
func (s *AuthService) Register(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	if err := s.rateLimiter.CheckLimit("register"); err != nil {
		return nil, errors.TooManyRequests("too many registrations, try again later")
	}

	req.Username = s.validator.SanitizeString(req.Username)
	req.Email = strings.ToLower(s.validator.SanitizeString(req.Email))
	req.FullName = s.validator.SanitizeString(req.FullName)

	err := validator.First(
		s.validator.ValidateUsername(req.Username),
		s.validator.ValidateEmail(req.Email),
		s.validator.ValidatePassword(req.Password),
		s.validator.MaxLength("full_name", req.FullName, maxFullNameLength),
	)
	if err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FullName:     req.FullName,
	}

	if err := s.userRepo.Create(ctx, user, models.DefaultCategories); err != nil {
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			s.auditLogger.Record(&audit.Event{
				Level:    audit.LevelWarning,
				Action:   audit.ActionRegister,
				Resource: "auth",
				Success:  false,
				Metadata: req.Username,
			})
			return nil, errors.Conflict("username or email already exists")
		}
		return nil, err
	}

	s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionRegister, "auth", true))
	return user, nil
}

// Login checks credentials. The identifier may be a username or an email.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	identifier := s.validator.SanitizeString(req.Username)
	if err := validator.First(
		s.validator.Required("username", identifier),
		s.validator.Required("password", req.Password),
	); err != nil {
		return nil, err
	}

	if err := s.rateLimiter.CheckLimit("login:" + strings.ToLower(identifier)); err != nil {
		return nil, errors.TooManyRequests("too many login attempts, try again later")
	}

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, errors.ErrUserNotFound) {
		s.hasher.Burn(req.Password)
		s.auditLogger.Record(&audit.Event{
			Level:    audit.LevelWarning,
			Action:   audit.ActionLogin,
			Resource: "auth",
			Success:  false,
			Metadata: identifier,
		})
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.LockedUntil != nil && s.now().Before(*user.LockedUntil) {
		s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionLogin, "auth", false))
		return nil, errors.NewAppError(errors.ErrAccountLocked,
			"account is temporarily locked due to too many failed login attempts", http.StatusTooManyRequests)
	}

	if !user.IsActive {
		return nil, errors.ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	if !valid {
		s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionLogin, "auth", false))

		attempts, err := s.userRepo.IncrementFailedLogins(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if attempts >= s.policy.MaxAttempts {
			if err := s.userRepo.LockAccount(ctx, user.ID, s.policy.LockDuration); err != nil {
				return nil, err
			}
			s.auditLogger.Record(&audit.Event{
				Level:    audit.LevelCritical,
				UserID:   &user.ID,
				Action:   audit.ActionAccountLocked,
				Resource: "auth",
				Success:  false,
				ErrorMsg: fmt.Sprintf("account locked after %d failed attempts", attempts),
			})
		}
		return nil, errors.ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	now := s.now()
	user.LastLogin = &now
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionLogin, "auth", true))
	return user, nil
}

// Logout only records the event; the session is dropped by the caller.
func (s *AuthService) Logout(userID int) {
	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionLogout, "auth", true))
}

func (s *AuthService) Me(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return nil, errors.ErrUnauthorized
	}
	return user, err
}

// UpdateProfile applies a sparse patch to the profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, req *models.UpdateProfileRequest) (*models.User, error) {
	if req.IsEmpty() {
		return nil, errNoFields
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := s.validator.SanitizeString(*req.FullName)
		if err := s.validator.MaxLength("full_name", name, maxFullNameLength); err != nil {
			return nil, err
		}
		user.FullName = name
	}
	if req.Email != nil {
		email := strings.ToLower(s.validator.SanitizeString(*req.Email))
		if err := s.validator.ValidateEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if req.ProfileIcon != nil {
		icon := s.validator.SanitizeString(*req.ProfileIcon)
		if err := validator.First(
			s.validator.Required("profile_icon", icon),
			s.validator.MaxLength("profile_icon", icon, maxTitleLength),
		); err != nil {
			return nil, err
		}
		user.ProfileIcon = icon
	}
	if req.FontFamily != nil {
		font := s.validator.SanitizeString(*req.FontFamily)
		if err := validator.First(
			s.validator.Required("font_family", font),
			s.validator.MaxLength("font_family", font, maxNameLength),
		); err != nil {
			return nil, err
		}
		user.FontFamily = font
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionProfileUpdate, "users", true))
	return user, nil
}

// ChangePassword requires the current password.
func (s *AuthService) ChangePassword(ctx context.Context, userID int, req *models.ChangePasswordRequest) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	valid, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		s.auditLogger.Record(audit.UserEvent(userID, audit.ActionPasswordChange, "users", false))
		return errors.Unauthorized("current password is incorrect")
	}

	if err := s.validator.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionPasswordChange, "users", true))
	return nil
}
