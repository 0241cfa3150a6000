package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/mailer"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/ratelimit"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/internal/security"
	"github.com/amirk1998/daybook/internal/session"
	"github.com/amirk1998/daybook/pkg/errors"
	"github.com/amirk1998/daybook/pkg/validator"
)

const (
	pinDigits          = 4
	otpDigits          = 6
	maxOTPAttempts     = 5
	maxMoodLength      = 50
	maxDiaryContentLen = 100000
)

// DiaryPolicy holds the unlock and lockout settings of the diary.
type DiaryPolicy struct {
	UnlockTTL          time.Duration
	OTPTTL             time.Duration
	PinMaxAttempts     int
	PinLockout         time.Duration
	OTPRequestsPerHour int
}

// sessionSaver persists session changes made by the diary flows.
type sessionSaver interface {
	Save(s *session.Session) bool
}

type DiaryService struct {
	userRepo    *repository.UserRepository
	diaryRepo   *repository.DiaryRepository
	encryptor   *security.FieldEncryptor
	hasher      *security.SecretHasher
	sessions    sessionSaver
	pinLockout  *ratelimit.Lockout
	otpLimiter  *ratelimit.RateLimiter
	mail        mailer.Sender
	validator   *validator.Validator
	auditLogger *audit.Logger
	policy      DiaryPolicy
	now         func() time.Time
}

func NewDiaryService(
	userRepo *repository.UserRepository,
	diaryRepo *repository.DiaryRepository,
	encryptor *security.FieldEncryptor,
	hasher *security.SecretHasher,
	sessions sessionSaver,
	mail mailer.Sender,
	auditLogger *audit.Logger,
	policy DiaryPolicy,
) *DiaryService {
	perHour := policy.OTPRequestsPerHour
	if perHour < 1 {
		perHour = 1
	}

	return &DiaryService{
		userRepo:    userRepo,
		diaryRepo:   diaryRepo,
		encryptor:   encryptor,
		hasher:      hasher,
		sessions:    sessions,
		pinLockout:  ratelimit.NewLockout(policy.PinMaxAttempts, policy.PinLockout),
		otpLimiter:  ratelimit.NewRateLimiterEvery(rate.Every(time.Hour/time.Duration(perHour)), perHour),
		mail:        mail,
		validator:   validator.New(),
		auditLogger: auditLogger,
		policy:      policy,
		now:         time.Now,
	}
}

// OTPLimiter exposes the request limiter so its idle buckets can be swept.
func (s *DiaryService) OTPLimiter() *ratelimit.RateLimiter {
	return s.otpLimiter
}

func pinKey(userID int) string {
	return "pin:" + strconv.Itoa(userID)
}

// IsUnlocked reports whether sess may read and write diary entries.
func (s *DiaryService) IsUnlocked(sess *session.Session) bool {
	return sess.IsDiaryUnlocked(s.now(), s.policy.UnlockTTL)
}

func (s *DiaryService) Status(ctx context.Context, sess *session.Session) (*models.DiaryStatus, error) {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	status := &models.DiaryStatus{HasPin: user.HasDiaryPin()}
	if status.HasPin {
		if expiry, ok := sess.DiaryUnlockExpiry(s.now(), s.policy.UnlockTTL); ok {
			status.Unlocked = true
			status.UnlockExpiresAt = &expiry
		}
	}
	return status, nil
}

func (s *DiaryService) currentUser(ctx context.Context, sess *session.Session) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return nil, errors.ErrUnauthorized
	}
	return user, err
}

func (s *DiaryService) validateNewPin(pin, confirm string) error {
	if err := s.validator.FixedDigits("new_pin", pin, pinDigits); err != nil {
		return err
	}
	if pin != confirm {
		return errors.Validation("new_pin and confirm_pin do not match")
	}
	return nil
}

func (s *DiaryService) checkLockout(userID int) error {
	if s.pinLockout.Locked(pinKey(userID)) {
		return errors.TooManyRequests("too many incorrect PIN attempts, try again later")
	}
	return nil
}

// recordPinFailure counts a wrong PIN and reports how many tries remain.
func (s *DiaryService) recordPinFailure(userID int, action string) error {
	left := s.pinLockout.Fail(pinKey(userID))
	s.auditLogger.Record(audit.UserEvent(userID, action, "diary", false))

	if left == 0 {
		s.auditLogger.Record(&audit.Event{
			Level:    audit.LevelCritical,
			UserID:   &userID,
			Action:   audit.ActionPinLockout,
			Resource: "diary",
			Success:  false,
			ErrorMsg: fmt.Sprintf("diary PIN locked after %d failed attempts", s.policy.PinMaxAttempts),
		})
		return errors.TooManyRequests("too many incorrect PIN attempts, try again later")
	}
	return errors.Unauthorized(fmt.Sprintf("incorrect PIN, %d attempt(s) left", left))
}

// SetPin creates or replaces the PIN and unlocks the diary. Replacing an
// existing PIN requires the current one.
func (s *DiaryService) SetPin(ctx context.Context, sess *session.Session, req *models.SetPinRequest) error {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return err
	}

	if err := s.validateNewPin(req.NewPin, req.ConfirmPin); err != nil {
		return err
	}

	if user.HasDiaryPin() {
		if err := s.checkLockout(user.ID); err != nil {
			return err
		}
		if req.CurrentPin == "" {
			return errors.Validation("current_pin is required to change the PIN")
		}
		valid, err := s.hasher.Verify(req.CurrentPin, *user.DiaryPin)
		if err != nil {
			return fmt.Errorf("failed to verify pin: %w", err)
		}
		if !valid {
			return s.recordPinFailure(user.ID, audit.ActionPinSet)
		}
	}

	hash, err := s.hasher.Hash(req.NewPin)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	if err := s.userRepo.SetDiaryPin(ctx, user.ID, hash); err != nil {
		return err
	}

	s.pinLockout.Reset(pinKey(user.ID))
	sess.MarkDiaryUnlocked(s.now())
	s.sessions.Save(sess)

	s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionPinSet, "diary", true))
	return nil
}

// VerifyPin unlocks the diary for the configured window.
func (s *DiaryService) VerifyPin(ctx context.Context, sess *session.Session, req *models.VerifyPinRequest) (*models.DiaryStatus, error) {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	if err := s.checkLockout(user.ID); err != nil {
		return nil, err
	}
	if !user.HasDiaryPin() {
		return nil, errors.NewAppError(errors.ErrRecordNotFound, "no diary PIN has been set", http.StatusNotFound)
	}
	if err := s.validator.Required("pin", req.Pin); err != nil {
		return nil, err
	}

	valid, err := s.hasher.Verify(req.Pin, *user.DiaryPin)
	if err != nil {
		return nil, fmt.Errorf("failed to verify pin: %w", err)
	}
	if !valid {
		return nil, s.recordPinFailure(user.ID, audit.ActionPinVerify)
	}

	s.pinLockout.Reset(pinKey(user.ID))
	sess.MarkDiaryUnlocked(s.now())
	s.sessions.Save(sess)

	s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionPinVerify, "diary", true))
	return s.Status(ctx, sess)
}

// Lock closes the unlock window immediately.
func (s *DiaryService) Lock(sess *session.Session) {
	sess.LockDiary()
	s.sessions.Save(sess)
	s.auditLogger.Record(audit.UserEvent(sess.UserID, audit.ActionDiaryLock, "diary", true))
}

// RequestOTP emails a reset code. A new request replaces any pending code.
func (s *DiaryService) RequestOTP(ctx context.Context, sess *session.Session) error {
	user, err := s.currentUser(ctx, sess)
	if err != nil {
		return err
	}

	if err := s.otpLimiter.CheckLimit("otp:" + strconv.Itoa(user.ID)); err != nil {
		s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionOTPRequest, "diary", false))
		return errors.TooManyRequests("too many OTP requests, try again later")
	}

	code, err := security.GenerateOTP(otpDigits)
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.policy.OTPTTL)
	sess.SetPendingOTP(code, expiresAt, user.ID)
	s.sessions.Save(sess)

	msg := mailer.Message{
		To:      user.Email,
		Subject: "Your diary PIN reset code",
		Body:    otpEmailBody(user.Username, code, s.policy.OTPTTL),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		sess.ClearPendingOTP()
		s.sessions.Save(sess)
		log.Printf("[Mail] failed to deliver diary OTP for user %d: %v", user.ID, err)
		s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionOTPRequest, "diary", false))
		return fmt.Errorf("failed to send otp email: %w", err)
	}

	s.auditLogger.Record(audit.UserEvent(user.ID, audit.ActionOTPRequest, "diary", true))
	return nil
}

func otpEmailBody(username, code string, ttl time.Duration) string {
	return fmt.Sprintf(`<html><body>
<p>Hello %s,</p>
<p>Your diary PIN reset code is:</p>
<h2 style="letter-spacing:4px">%s</h2>
<p>The code expires in %d minutes. If you did not request it, you can ignore this email.</p>
</body></html>`, html.EscapeString(username), code, int(ttl.Minutes()))
}

// ConfirmOTP consumes the pending code and stores the new PIN. The diary
// stays locked afterwards.
func (s *DiaryService) ConfirmOTP(ctx context.Context, sess *session.Session, req *models.ConfirmOTPRequest) error {
	pending := sess.PendingOTP
	if pending == nil {
		return errors.Validation("no pending OTP")
	}

	if !s.now().Before(pending.ExpiresAt) {
		sess.ClearPendingOTP()
		s.sessions.Save(sess)
		return errors.Validation("OTP has expired, request a new one")
	}

	if pending.UserID != sess.UserID {
		return errors.Forbidden("OTP was issued for a different user")
	}

	if !security.EqualCodes(req.OTP, pending.Code) {
		pending.Attempts++
		if pending.Attempts >= maxOTPAttempts {
			sess.ClearPendingOTP()
			s.sessions.Save(sess)
			s.auditLogger.Record(audit.UserEvent(sess.UserID, audit.ActionOTPConfirm, "diary", false))
			return errors.Validation("too many incorrect codes, request a new OTP")
		}
		s.sessions.Save(sess)
		s.auditLogger.Record(audit.UserEvent(sess.UserID, audit.ActionOTPConfirm, "diary", false))
		return errors.Validation("invalid OTP")
	}

	if err := s.validateNewPin(req.NewPin, req.ConfirmPin); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPin)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	if err := s.userRepo.SetDiaryPin(ctx, sess.UserID, hash); err != nil {
		return notFound(err, "user")
	}

	sess.ClearPendingOTP()
	s.sessions.Save(sess)
	s.pinLockout.Reset(pinKey(sess.UserID))

	s.auditLogger.Record(audit.UserEvent(sess.UserID, audit.ActionOTPConfirm, "diary", true))
	return nil
}

func (s *DiaryService) decrypt(entry *models.DiaryEntry) (*models.DiaryEntry, error) {
	content, err := s.encryptor.DecryptString(entry.ContentEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt diary entry %d: %w", entry.ID, err)
	}
	entry.Content = content
	return entry, nil
}

func (s *DiaryService) validateEntry(title, content string, mood *string, entryDate string) error {
	errs := []error{
		s.validator.MaxLength("title", title, maxTitleLength),
		s.validator.Required("content", content),
		s.validator.MaxLength("content", content, maxDiaryContentLen),
		s.validator.Date("entry_date", entryDate),
	}
	if mood != nil {
		errs = append(errs, s.validator.MaxLength("mood", *mood, maxMoodLength))
	}
	return validator.First(errs...)
}

func (s *DiaryService) ListEntries(ctx context.Context, filters models.DiaryListFilters) ([]*models.DiaryEntry, error) {
	for _, f := range []struct{ field, value string }{{"from", filters.From}, {"to", filters.To}} {
		if f.value != "" {
			if err := s.validator.Date(f.field, f.value); err != nil {
				return nil, err
			}
		}
	}

	entries, err := s.diaryRepo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if _, err := s.decrypt(entry); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *DiaryService) GetEntry(ctx context.Context, userID, id int) (*models.DiaryEntry, error) {
	entry, err := s.diaryRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, "diary entry")
	}
	return s.decrypt(entry)
}

func (s *DiaryService) CreateEntry(ctx context.Context, userID int, req *models.CreateDiaryEntryRequest) (*models.DiaryEntry, error) {
	entry := &models.DiaryEntry{
		UserID:    userID,
		Title:     s.validator.SanitizeString(req.Title),
		Content:   req.Content,
		Mood:      req.Mood,
		EntryDate: s.validator.SanitizeString(req.EntryDate),
	}
	if entry.EntryDate == "" {
		entry.EntryDate = s.now().Format(validator.DateLayout)
	}
	if err := s.validateEntry(entry.Title, entry.Content, entry.Mood, entry.EntryDate); err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.EncryptString(entry.Content)
	if err != nil {
		return nil, err
	}
	entry.ContentEncrypted = encrypted

	if err := s.diaryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *DiaryService) UpdateEntry(ctx context.Context, userID, id int, req *models.UpdateDiaryEntryRequest) (*models.DiaryEntry, error) {
	if req.IsEmpty() {
		return nil, errNoFields
	}

	entry, err := s.GetEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		entry.Title = s.validator.SanitizeString(*req.Title)
	}
	if req.Content != nil {
		entry.Content = *req.Content
	}
	req.Mood.Apply(&entry.Mood)
	if req.EntryDate != nil {
		entry.EntryDate = s.validator.SanitizeString(*req.EntryDate)
	}
	if err := s.validateEntry(entry.Title, entry.Content, entry.Mood, entry.EntryDate); err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.EncryptString(entry.Content)
	if err != nil {
		return nil, err
	}
	entry.ContentEncrypted = encrypted

	if err := s.diaryRepo.Update(ctx, entry); err != nil {
		return nil, notFound(err, "diary entry")
	}
	return entry, nil
}

func (s *DiaryService) DeleteEntry(ctx context.Context, userID, id int) error {
	if err := s.diaryRepo.Delete(ctx, userID, id); err != nil {
		return notFound(err, "diary entry")
	}
	s.auditLogger.Record(audit.UserEvent(userID, audit.ActionDelete, "diary", true))
	return nil
}
