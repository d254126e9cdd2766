// Package notify carries user-facing messages from the core to the presentation layer.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier surfaces a message to the user. Implementations must not block.
type Notifier interface {
	Notify(message string, severity Severity)
}

type Message struct {
	Text     string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(string, Severity) {}

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(message string, severity Severity) {
	fields := []zap.Field{zap.String("severity", string(severity))}
	switch severity {
	case SeverityError:
		n.logger.Error(message, fields...)
	case SeverityWarning:
		n.logger.Warn(message, fields...)
	default:
		n.logger.Info(message, fields...)
	}
}

// Recorder buffers messages until the presentation layer drains them.
// The oldest messages are dropped once limit is reached.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	limit    int
	next     Notifier
}

func NewRecorder(limit int, next Notifier) *Recorder {
	if next == nil {
		next = Nop{}
	}
	return &Recorder{limit: limit, next: next}
}

func (r *Recorder) Notify(message string, severity Severity) {
	r.mu.Lock()
	r.messages = append(r.messages, Message{Text: message, Severity: severity, At: time.Now()})
	if r.limit > 0 && len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
	r.mu.Unlock()

	r.next.Notify(message, severity)
}

// Drain returns buffered messages and empties the buffer.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.messages
	r.messages = nil
	if out == nil {
		out = []Message{}
	}
	return out
}
