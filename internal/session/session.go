package session

import (
	"time"
)

// PendingOTP is the single outstanding diary PIN reset code of a session.
type PendingOTP struct {
	Code      string
	ExpiresAt time.Time
	UserID    int
	Attempts  int
}

// Session is the server-side state behind a session cookie.
type Session struct {
	ID              string
	UserID          int
	Username        string
	CreatedAt       time.Time
	LastActivity    time.Time
	DiaryUnlocked   bool
	DiaryUnlockTime time.Time
	PendingOTP      *PendingOTP
}

func (s *Session) clone() *Session {
	c := *s
	if s.PendingOTP != nil {
		otp := *s.PendingOTP
		c.PendingOTP = &otp
	}
	return &c
}

// MarkDiaryUnlocked opens the unlock window starting at now.
func (s *Session) MarkDiaryUnlocked(now time.Time) {
	s.DiaryUnlocked = true
	s.DiaryUnlockTime = now
}

// IsDiaryUnlocked reports whether now still falls inside the unlock window.
func (s *Session) IsDiaryUnlocked(now time.Time, ttl time.Duration) bool {
	if !s.DiaryUnlocked {
		return false
	}
	return now.Before(s.DiaryUnlockTime.Add(ttl))
}

// DiaryUnlockExpiry returns when the current window closes, if open.
func (s *Session) DiaryUnlockExpiry(now time.Time, ttl time.Duration) (time.Time, bool) {
	if !s.IsDiaryUnlocked(now, ttl) {
		return time.Time{}, false
	}
	return s.DiaryUnlockTime.Add(ttl), true
}

func (s *Session) LockDiary() {
	s.DiaryUnlocked = false
	s.DiaryUnlockTime = time.Time{}
}

// SetPendingOTP replaces any unconsumed code.
func (s *Session) SetPendingOTP(code string, expiresAt time.Time, userID int) {
	s.PendingOTP = &PendingOTP{Code: code, ExpiresAt: expiresAt, UserID: userID}
}

func (s *Session) ClearPendingOTP() {
	s.PendingOTP = nil
}
