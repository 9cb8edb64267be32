package goIssuer

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Audit event names, one per operation outcome.
const (
	AuditTokenIssued      = "token_issued"
	AuditTokenIssueFailed = "token_issue_failed"
	AuditTokenRenewed     = "token_renewed"
	AuditTokenRenewFailed = "token_renew_failed"
)

// AuditEvent records one Issue or Renew outcome. Credentials and token strings
// are never part of it; a successful event carries only the token's jti.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Operation string    `json:"operation"`
	// UserID is the primary id, empty when it is the unset sentinel.
	UserID  string `json:"user_id,omitempty"`
	IP      string `json:"ip,omitempty"`
	Success bool   `json:"success"`
	// Kind is the FailureKind name of a failed outcome.
	Kind string `json:"failure_kind,omitempty"`
	JTI  string `json:"jti,omitempty"`
}

// AuditSink receives audit events, one at a time, from the engine's audit goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink hands events to a consumer through a buffered channel. Emit blocks
// while the channel is full.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes each event as one JSON line through zerolog.
type JSONWriterSink struct {
	logger zerolog.Logger
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{logger: zerolog.New(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil {
		return
	}
	e := s.logger.Log().
		Time("timestamp", event.Timestamp).
		Str("event", event.Event).
		Str("operation", event.Operation).
		Bool("success", event.Success)
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.Kind != "" {
		e = e.Str("failure_kind", event.Kind)
	}
	if event.JTI != "" {
		e = e.Str("jti", event.JTI)
	}
	e.Send()
}
