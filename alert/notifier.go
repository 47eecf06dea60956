package alert

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/c360/netstreams/errors"
)

// Severity of a notification.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification is the message delivered for a condition.
type Notification struct {
	Condition string `json:"condition"`
	Detail    string `json:"detail"`
	// Count is the number of occurrences the notification accounts for
	Count    int    `json:"count"`
	Severity string `json:"severity"`
	// Component is the failing sink, exporter or node; defaults to the
	// condition class
	Component string `json:"component"`
	// ErrorType is the error class: transient, invalid or fatal
	ErrorType string `json:"error_type,omitempty"`
	// BatchID identifies the envelope of the latest occurrence, if known
	BatchID   string    `json:"batch_id,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers notifications to an external channel.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Publisher publishes a payload to a subject. *natsclient.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSNotifier publishes notifications as JSON to a NATS subject.
type NATSNotifier struct {
	publisher Publisher
	subject   string
}

// NewNATSNotifier creates a notifier publishing to subject.
func NewNATSNotifier(publisher Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{publisher: publisher, subject: subject}
}

// Send implements Notifier.
func (n *NATSNotifier) Send(ctx context.Context, notification Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return errors.WrapInvalid(err, "NATSNotifier", "Send", "marshal notification")
	}
	if err := n.publisher.Publish(ctx, n.subject, data); err != nil {
		return errors.WrapTransient(err, "NATSNotifier", "Send", "publish to "+n.subject)
	}
	return nil
}

// LogNotifier writes notifications to a logger. It is used when the alert
// channel is disabled.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier; nil uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	level := slog.LevelWarn
	if notification.Severity == SeverityCritical {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "Alert",
		"condition", notification.Condition,
		"detail", notification.Detail,
		"count", notification.Count,
		"component", notification.Component,
		"error_type", notification.ErrorType,
		"batch_id", notification.BatchID,
		"first_seen", notification.FirstSeen,
		"last_seen", notification.LastSeen)
	return nil
}
