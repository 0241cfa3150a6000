package audit

import "time"

type LogLevel string

const (
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// Actions recorded by the services.
const (
	ActionRegister       = "REGISTER"
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionAccountLocked  = "ACCOUNT_LOCKED"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionProfileUpdate  = "PROFILE_UPDATE"
	ActionPinSet         = "DIARY_PIN_SET"
	ActionPinVerify      = "DIARY_PIN_VERIFY"
	ActionPinLockout     = "DIARY_PIN_LOCKOUT"
	ActionDiaryLock      = "DIARY_LOCK"
	ActionOTPRequest     = "DIARY_OTP_REQUEST"
	ActionOTPConfirm     = "DIARY_OTP_CONFIRM"
	ActionDelete         = "DELETE"
	ActionBackup         = "BACKUP"

	ActionFailedLoginThreshold = "FAILED_LOGIN_THRESHOLD"
	ActionFailedPinThreshold   = "FAILED_PIN_THRESHOLD"
)

type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	UserID    *int      `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IPAddress string    `json:"ip_address,omitempty"`
	Success   bool      `json:"success"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
}

type QueryFilters struct {
	StartTime *time.Time
	EndTime   *time.Time
	UserID    *int
	Action    string
	Level     LogLevel
	Success   *bool
	Limit     int
}

// UserEvent is shorthand for the common case of an event about one user.
func UserEvent(userID int, action, resource string, success bool) *Event {
	level := LevelInfo
	if !success {
		level = LevelWarning
	}
	return &Event{
		Level:    level,
		UserID:   &userID,
		Action:   action,
		Resource: resource,
		Success:  success,
	}
}
