package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Logger struct {
	db         *sql.DB
	logFile    *os.File
	asyncMode  bool
	eventQueue chan *Event
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

// NewLogger creates a new audit logger
func NewLogger(db *sql.DB, logFilePath string, asyncMode bool) (*Logger, error) {
	schema := `
    CREATE TABLE IF NOT EXISTS audit_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL,
        level TEXT NOT NULL,
        user_id INTEGER,
        action TEXT NOT NULL,
        resource TEXT NOT NULL,
        ip_address TEXT,
        success BOOLEAN NOT NULL,
        error_msg TEXT,
        metadata TEXT,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
    );

    CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
    CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_log(user_id);
    CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
    `

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create audit log table: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(logFilePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger := &Logger{
		db:        db,
		logFile:   logFile,
		asyncMode: asyncMode,
		ctx:       ctx,
		cancel:    cancel,
	}

	if asyncMode {
		logger.eventQueue = make(chan *Event, 1000)
		logger.startAsyncLogger()
	}

	return logger, nil
}

// Log records an audit event. In async mode a full queue drops the event.
func (al *Logger) Log(event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}

	if al.asyncMode {
		select {
		case al.eventQueue <- event:
			return nil
		default:
			return fmt.Errorf("audit log queue is full")
		}
	}

	return al.writeEvent(event)
}

// Record logs event and reports failures to the process log only.
func (al *Logger) Record(event *Event) {
	if al == nil {
		return
	}
	if err := al.Log(event); err != nil {
		log.Printf("[Audit] %s %s dropped: %v", event.Action, event.Resource, err)
	}
}

func (al *Logger) writeEvent(event *Event) error {
	query := `
        INSERT INTO audit_log (
            timestamp, level, user_id, action, resource,
            ip_address, success, error_msg, metadata
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	result, err := al.db.Exec(query,
		event.Timestamp,
		event.Level,
		event.UserID,
		event.Action,
		event.Resource,
		event.IPAddress,
		event.Success,
		event.ErrorMsg,
		event.Metadata,
	)

	if err != nil {
		// the file copy is still written
		log.Printf("[Audit] Failed to write audit log to database: %v", err)
	} else {
		event.ID, _ = result.LastInsertId()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := al.logFile.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	return nil
}

func (al *Logger) startAsyncLogger() {
	al.wg.Add(1)
	go func() {
		defer al.wg.Done()
		for {
			select {
			case event := <-al.eventQueue:
				if err := al.writeEvent(event); err != nil {
					log.Printf("[Audit] Failed to write audit event: %v", err)
				}
			case <-al.ctx.Done():
				for len(al.eventQueue) > 0 {
					al.writeEvent(<-al.eventQueue)
				}
				return
			}
		}
	}()
}

// QueryLogs queries audit logs with filters
func (al *Logger) QueryLogs(filters QueryFilters) ([]*Event, error) {
	query := `
        SELECT id, timestamp, level, user_id, action, resource,
               COALESCE(ip_address, ''), success, COALESCE(error_msg, ''), COALESCE(metadata, '')
        FROM audit_log
        WHERE (? IS NULL OR timestamp >= ?)
          AND (? IS NULL OR timestamp <= ?)
          AND (? IS NULL OR user_id = ?)
          AND (? = '' OR action = ?)
          AND (? = '' OR level = ?)
          AND (? IS NULL OR success = ?)
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `

	if filters.Limit <= 0 {
		filters.Limit = 100
	}

	var start, end, user, success any
	if filters.StartTime != nil {
		start = filters.StartTime.UTC()
	}
	if filters.EndTime != nil {
		end = filters.EndTime.UTC()
	}
	if filters.UserID != nil {
		user = *filters.UserID
	}
	if filters.Success != nil {
		success = *filters.Success
	}

	rows, err := al.db.Query(query,
		start, start,
		end, end,
		user, user,
		filters.Action, filters.Action,
		string(filters.Level), string(filters.Level),
		success, success,
		filters.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Level,
			&event.UserID,
			&event.Action,
			&event.Resource,
			&event.IPAddress,
			&event.Success,
			&event.ErrorMsg,
			&event.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// Close flushes queued events and closes the log file
func (al *Logger) Close() error {
	var err error
	al.closeOnce.Do(func() {
		if al.asyncMode {
			al.cancel()
			al.wg.Wait()
		}
		err = al.logFile.Close()
	})
	return err
}
