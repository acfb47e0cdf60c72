// Package notify delivers bet outcome notifications.
package notify

import (
	"context"
	"log/slog"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "info"
}

type Notification struct {
	Title    string
	Body     string
	Severity Severity
}

// Text renders the notification as a single chat line.
func (n Notification) Text() string {
	icon := "✅"
	if n.Severity == SeverityWarning {
		icon = "❌"
	}
	if n.Body == "" {
		return icon + " " + n.Title
	}
	return icon + " " + n.Title + ": " + n.Body
}

// Notifier delivers a notification. Notify reports whether it was accepted
// for delivery; failures are logged by the implementation, never returned.
type Notifier interface {
	Notify(ctx context.Context, n Notification) bool
}

// ForOutcome builds the notification announcing a processed bet.
func ForOutcome(o models.BetOutcome) Notification {
	body := o.Request.RaceName + " - " + o.Request.Horse
	if o.Succeeded() {
		return Notification{Title: "Aposta " + models.StatusSuccess, Body: body, Severity: SeverityInfo}
	}
	if o.FailureReason != "" {
		body += " (" + o.FailureReason + ")"
	}
	return Notification{Title: "Aposta " + models.StatusErrorPrefix, Body: body, Severity: SeverityWarning}
}

// LogNotifier writes notifications to slog.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) bool {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Severity == SeverityWarning {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "Notification", "title", n.Title, "body", n.Body)
	return true
}

// Multi delivers to every notifier and reports true if any accepted it.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) bool {
	delivered := false
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if notifier.Notify(ctx, n) {
			delivered = true
		}
	}
	return delivered
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification) bool

func (f NotifierFunc) Notify(ctx context.Context, n Notification) bool { return f(ctx, n) }
