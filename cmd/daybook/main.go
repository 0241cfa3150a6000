package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/daybook/internal/backup"
	"github.com/amirk1998/daybook/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Personal notes, todos and a PIN-protected diary behind a JSON API.",
	Long: `daybook serves a REST API for notes, todos, categories, image attachments
and an encrypted diary. Configuration is read from the environment and an
optional .env file.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}

		app, err := initializeApplication(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer app.cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app.startWorkers(ctx)

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           app.handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("[Server] Listening on %s (%s)", cfg.HTTPAddr, cfg.Environment)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
			fmt.Println("[Shutdown] Received shutdown signal...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("[OK] Database at %s is up to date\n", cfg.DBPath)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted database backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write an encrypted, compressed snapshot of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			path, err := m.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("[OK] Backup written to %s\n", path)
			return nil
		})
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Check a backup against its checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			if err := m.VerifyBackup(args[0]); err != nil {
				return err
			}
			fmt.Printf("[OK] %s is intact\n", args[0])
			return nil
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [file] [destination]",
	Short: "Decrypt a backup into a new database file",
	Long:  `Restores into destination, which must not exist. The running database is never overwritten.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			if err := m.Restore(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("[OK] Restored %s to %s\n", args[0], args[1])
			return nil
		})
	},
}

var backupCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete backups older than the retention period",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			n, err := m.CleanOldBackups()
			if err != nil {
				return err
			}
			fmt.Printf("[OK] Removed %d backup file(s)\n", n)
			return nil
		})
	},
}

func withBackupManager(fn func(*backup.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr, err := newBackupManager(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to initialize backup manager: %w", err)
	}
	return fn(mgr)
}

func initCmd() {
	serveCmd.Flags().String("addr", "", "Listen address, overrides HTTP_ADDR")

	backupCmd.AddCommand(backupCreateCmd, backupVerifyCmd, backupRestoreCmd, backupCleanCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, backupCmd)
}

func main() {
	initCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
