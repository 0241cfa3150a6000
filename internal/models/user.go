package models

import (
	"time"
)

type User struct {
	ID                  int        `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"` // Never expose in JSON
	FullName            string     `json:"full_name"`
	ProfileIcon         string     `json:"profile_icon"`
	FontFamily          string     `json:"font_family"`
	DiaryPin            *string    `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	IsActive            bool       `json:"is_active"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
}

// HasDiaryPin is serialised in place of the PIN hash.
func (u *User) HasDiaryPin() bool {
	return u.DiaryPin != nil && *u.DiaryPin != ""
}

// UserView is the public JSON shape of a user.
type UserView struct {
	*User
	HasDiaryPin bool `json:"has_diary_pin"`
}

func (u *User) View() UserView {
	return UserView{User: u, HasDiaryPin: u.HasDiaryPin()}
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	FullName    *string `json:"full_name"`
	Email       *string `json:"email"`
	ProfileIcon *string `json:"profile_icon"`
	FontFamily  *string `json:"font_family"`
}

func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.FullName == nil && r.Email == nil && r.ProfileIcon == nil && r.FontFamily == nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
