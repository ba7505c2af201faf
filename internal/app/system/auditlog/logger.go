// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/campusdesk/internal/app/store/audit"
	"github.com/dalemusser/campusdesk/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth routes login and logout events: SinkAll, SinkDB, SinkLog or
	// SinkOff. Empty means SinkAll.
	Auth string
	// Data controls logging for row mutations made through the data API.
	Data string
}

// Logger records audit events to the audit store and to zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// Sink values accepted by Config fields.
const (
	SinkAll = "all"
	SinkDB  = "db"
	SinkLog = "log"
	SinkOff = "off"
)

// sinks resolves where events of category go. An unset category defaults
// to both sinks.
func (l *Logger) sinks(category string) (toLog, toDB bool) {
	var mode string
	switch category {
	case audit.CategoryAuth:
		mode = l.config.Auth
	case audit.CategoryData:
		mode = l.config.Data
	}
	switch mode {
	case SinkOff:
		return false, false
	case SinkLog:
		return true, false
	case SinkDB:
		return false, true
	default:
		return true, true
	}
}

func zapFields(ev audit.Event) []zap.Field {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", ev.Category),
		zap.String("event_type", ev.EventType),
		zap.Bool("success", ev.Success),
		zap.String("ip", ev.IP),
	}
	for _, opt := range [][2]string{
		{"user_id", ev.UserID},
		{"actor_id", ev.ActorID},
		{"school_id", ev.SchoolID},
		{"failure_reason", ev.FailureReason},
	} {
		if opt[1] != "" {
			fields = append(fields, zap.String(opt[0], opt[1]))
		}
	}
	for k, v := range ev.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	return fields
}

// Log records ev to the sinks configured for its category.
// A nil Logger is a no-op so handlers and tests can run without one.
func (l *Logger) Log(ctx context.Context, ev audit.Event) {
	if l == nil {
		return
	}
	toLog, toDB := l.sinks(ev.Category)
	if toLog {
		if ev.Success {
			l.zapLog.Info("audit event", zapFields(ev)...)
		} else {
			l.zapLog.Warn("audit event", zapFields(ev)...)
		}
	}
	if !toDB || l.store == nil {
		return
	}
	if err := l.store.Log(ctx, ev); err != nil {
		l.zapLog.Error("store audit event", zap.Error(err), zap.String("event_type", ev.EventType))
	}
}

// requestEvent fills the fields every event takes from the request.
func requestEvent(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// LoginSuccess records a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, email string) {
	ev := requestEvent(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	ev.UserID = userID
	ev.Details = map[string]string{"email": email}
	l.Log(ctx, ev)
}

// LoginFailed records a rejected login. userID is empty when no account
// matched the email.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType, userID, email, reason string) {
	ev := requestEvent(r, audit.CategoryAuth, eventType, false)
	ev.UserID = userID
	ev.FailureReason = reason
	ev.Details = map[string]string{"email": email}
	l.Log(ctx, ev)
}

// Logout records a logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	ev := requestEvent(r, audit.CategoryAuth, audit.EventLogout, true)
	ev.UserID = userID
	l.Log(ctx, ev)
}

// PasswordChanged records a user replacing their own password.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID string) {
	ev := requestEvent(r, audit.CategoryAuth, audit.EventPasswordChanged, true)
	ev.UserID = userID
	l.Log(ctx, ev)
}

// RowsChanged records a successful insert, update or delete against table.
func (l *Logger) RowsChanged(ctx context.Context, r *http.Request, eventType, actorID, schoolID, table string, count int) {
	ev := requestEvent(r, audit.CategoryData, eventType, true)
	ev.ActorID = actorID
	ev.SchoolID = schoolID
	ev.Details = map[string]string{"table": table, "rows": strconv.Itoa(count)}
	l.Log(ctx, ev)
}
