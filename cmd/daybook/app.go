package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/amirk1998/daybook/internal/api"
	"github.com/amirk1998/daybook/internal/audit"
	"github.com/amirk1998/daybook/internal/backup"
	"github.com/amirk1998/daybook/internal/config"
	"github.com/amirk1998/daybook/internal/database"
	"github.com/amirk1998/daybook/internal/mailer"
	"github.com/amirk1998/daybook/internal/ratelimit"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/internal/security"
	"github.com/amirk1998/daybook/internal/service"
	"github.com/amirk1998/daybook/internal/session"
	"github.com/amirk1998/daybook/internal/storage"
)

type Application struct {
	config       *config.Config
	db           *sql.DB
	keys         *security.KeyManager
	auditLogger  *audit.Logger
	auditMonitor *audit.Monitor
	backupMgr    *backup.Manager
	rateLimiter  *ratelimit.RateLimiter
	sessionStore *session.MemoryStore
	auth         *service.AuthService
	diary        *service.DiaryService
	handler      http.Handler
}

// openDatabase connects to the encrypted database and applies migrations.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Path:          cfg.DBPath,
		EncryptionKey: cfg.DBEncryptionKey,
		MaxOpenConns:  25,
		MaxIdleConns:  5,
		MaxLifetime:   1 * time.Hour,
		MaxIdleTime:   10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

func newBackupManager(cfg *config.Config, db *sql.DB) (*backup.Manager, error) {
	keys, err := security.NewKeyManager(cfg.AppEncryptionKey, cfg.BackupEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}
	return backup.NewManager(db, cfg.BackupDir, keys.BackupKey(), cfg.BackupRetentionDays)
}

// initializeApplication sets up all application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	app := &Application{config: cfg, db: db}

	app.auditLogger, err = audit.NewLogger(db, cfg.AuditLogPath, cfg.AuditAsyncMode)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	app.auditMonitor = audit.NewMonitor(app.auditLogger)

	app.keys, err = security.NewKeyManager(cfg.AppEncryptionKey, cfg.BackupEncryptionKey)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	fieldEncryptor, err := security.NewFieldEncryptor(app.keys.AppKey())
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize field encryptor: %w", err)
	}

	app.backupMgr, err = backup.NewManager(db, cfg.BackupDir, app.keys.BackupKey(), cfg.BackupRetentionDays)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize backup manager: %w", err)
	}

	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	app.rateLimiter = ratelimit.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.sessionStore = session.NewMemoryStore(cfg.SessionIdleTimeout)
	sessions := session.NewManager(app.sessionStore, security.DeriveKey(cfg.SessionSecret),
		cfg.SessionCookieName, cfg.SessionCookieSecure)

	// Repositories
	tm := database.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db, tm)
	noteRepo := repository.NewNoteRepository(db)
	todoRepo := repository.NewTodoRepository(db, tm)
	categoryRepo := repository.NewCategoryRepository(db)
	diaryRepo := repository.NewDiaryRepository(db)
	imageRepo := repository.NewImageRepository(db)

	// Services
	hasher := security.NewSecretHasher()
	mail := mailer.New(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, cfg.IsDevelopment())

	app.auth = service.NewAuthService(userRepo, hasher, app.rateLimiter,
		app.auditLogger, service.LoginPolicy{
			MaxAttempts:  cfg.LoginMaxAttempts,
			LockDuration: cfg.LoginLockoutDuration,
		})
	app.diary = service.NewDiaryService(userRepo, diaryRepo, fieldEncryptor, hasher, sessions, mail,
		app.auditLogger, service.DiaryPolicy{
			UnlockTTL:          cfg.DiaryUnlockTTL,
			OTPTTL:             cfg.DiaryOTPTTL,
			PinMaxAttempts:     cfg.PinMaxAttempts,
			PinLockout:         cfg.PinLockoutDuration,
			OTPRequestsPerHour: cfg.OTPRequestsPerHour,
		})

	app.handler = api.NewServer(api.Deps{
		DB:         db,
		Auth:       app.auth,
		Notes:      service.NewNoteService(noteRepo, categoryRepo, app.auditLogger),
		Todos:      service.NewTodoService(todoRepo, categoryRepo, app.auditLogger),
		Categories: service.NewCategoryService(categoryRepo, app.auditLogger),
		Diary:      app.diary,
		Images:     service.NewImageService(imageRepo, noteRepo, userRepo, files, cfg.UploadMaxBytes, app.auditLogger),
		Sessions:   sessions,
		Limiter:    app.rateLimiter,
		UploadMax:  cfg.UploadMaxBytes,
		TrustProxy: cfg.TrustProxy,
	})

	return app, nil
}

// sweptLimiters lists every limiter whose idle buckets the workers drop.
func (app *Application) sweptLimiters() []*ratelimit.RateLimiter {
	return []*ratelimit.RateLimiter{app.rateLimiter, app.diary.OTPLimiter()}
}

// startWorkers launches the background jobs; they stop when ctx is done.
func (app *Application) startWorkers(ctx context.Context) {
	go app.backupMgr.StartAutomatedBackups(ctx, app.config.BackupInterval)
	for _, rl := range app.sweptLimiters() {
		go rl.StartCleanupWorker(ctx, 1*time.Hour)
	}
	go app.sessionStore.StartCleanupWorker(ctx, 5*time.Minute)
	go app.auditMonitor.Start(ctx, 5*time.Minute)
}

// cleanup performs cleanup operations
func (app *Application) cleanup() {
	fmt.Println("[Cleanup] Shutting down gracefully...")

	if app.auditLogger != nil {
		app.auditLogger.Close()
	}

	if app.db != nil {
		app.db.Close()
	}

	fmt.Println("[Cleanup] Done")
}
