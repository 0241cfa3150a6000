package models

import "time"

type DiaryEntry struct {
	ID               int       `json:"id"`
	UserID           int       `json:"user_id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	ContentEncrypted string    `json:"-"`
	Mood             *string   `json:"mood"`
	EntryDate        string    `json:"entry_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type CreateDiaryEntryRequest struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Mood      *string `json:"mood"`
	EntryDate string  `json:"entry_date"`
}

type UpdateDiaryEntryRequest struct {
	Title     *string          `json:"title"`
	Content   *string          `json:"content"`
	Mood      Nullable[string] `json:"mood"`
	EntryDate *string          `json:"entry_date"`
}

func (r *UpdateDiaryEntryRequest) IsEmpty() bool {
	return r.Title == nil && r.Content == nil && !r.Mood.Set && r.EntryDate == nil
}

type DiaryListFilters struct {
	UserID int
	Mood   string
	From   string
	To     string
	Search string
	Pagination
}

type SetPinRequest struct {
	CurrentPin string `json:"current_pin"`
	NewPin     string `json:"new_pin"`
	ConfirmPin string `json:"confirm_pin"`
}

type VerifyPinRequest struct {
	Pin string `json:"pin"`
}

type ConfirmOTPRequest struct {
	OTP        string `json:"otp"`
	NewPin     string `json:"new_pin"`
	ConfirmPin string `json:"confirm_pin"`
}

type DiaryStatus struct {
	HasPin          bool       `json:"has_pin"`
	Unlocked        bool       `json:"unlocked"`
	UnlockExpiresAt *time.Time `json:"unlock_expires_at,omitempty"`
}
