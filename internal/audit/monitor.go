package audit

import (
	"context"
	"fmt"
	"log"
	"time"
)

type Monitor struct {
	logger    *Logger
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewMonitor creates a new security monitor
func NewMonitor(logger *Logger) *Monitor {
	return &Monitor{
		logger:    logger,
		window:    5 * time.Minute,
		threshold: 5,
		now:       time.Now,
	}
}

// detectFailures raises a critical event for every user with at least
// threshold failed events of action inside the window. It returns the
// flagged user ids.
func (m *Monitor) detectFailures(action, alertAction, resource string) ([]int, error) {
	now := m.now()
	since := now.Add(-m.window)
	failed := false

	events, err := m.logger.QueryLogs(QueryFilters{
		StartTime: &since,
		EndTime:   &now,
		Action:    action,
		Success:   &failed,
		Limit:     1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	counts := make(map[int]int)
	for _, event := range events {
		if event.UserID != nil {
			counts[*event.UserID]++
		}
	}

	var flagged []int
	for userID, n := range counts {
		if n < m.threshold {
			continue
		}
		log.Printf("[Security] ALERT: user %d has %d failed %s events in the last %v", userID, n, action, m.window)
		id := userID
		m.logger.Record(&Event{
			Level:    LevelCritical,
			UserID:   &id,
			Action:   alertAction,
			Resource: resource,
			Success:  false,
			ErrorMsg: fmt.Sprintf("%d failed attempts detected", n),
		})
		flagged = append(flagged, userID)
	}

	return flagged, nil
}

// DetectFailedLogins detects bursts of failed login attempts
func (m *Monitor) DetectFailedLogins() ([]int, error) {
	return m.detectFailures(ActionLogin, ActionFailedLoginThreshold, "authentication")
}

// DetectFailedPinVerifications detects bursts of wrong diary PINs
func (m *Monitor) DetectFailedPinVerifications() ([]int, error) {
	return m.detectFailures(ActionPinVerify, ActionFailedPinThreshold, "diary")
}

// DetectSuspiciousActivity runs all security checks
func (m *Monitor) DetectSuspiciousActivity() {
	if _, err := m.DetectFailedLogins(); err != nil {
		log.Printf("[Security] Failed to detect failed logins: %v", err)
	}
	if _, err := m.DetectFailedPinVerifications(); err != nil {
		log.Printf("[Security] Failed to detect failed PIN verifications: %v", err)
	}
}

// Start runs DetectSuspiciousActivity every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DetectSuspiciousActivity()
		}
	}
}
