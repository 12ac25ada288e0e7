// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/crewfund/crew/internal/app/store/audit"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign-in, sign-out and registration events.
	// Values: "all" (store + zap), "db" (store only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for staff actions (cards, identity, reports, roles).
	// Values: "all" (store + zap), "db" (store only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It writes to the audit store and to zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP returns the first X-Forwarded-For hop, X-Real-IP or RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so services can run without auditing.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, authMethod, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"auth_method": authMethod,
			"email":       email,
		},
	})
}

// LoginFailed logs a rejected sign-in. userID is empty when the email is unknown.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, userID, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		UserID:        userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		FailureReason: reason,
		Details: map[string]string{
			"attempted_email": email,
		},
	})
}

// LoginRateLimited logs a sign-in refused by the throttle.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, email, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		FailureReason: "rate limit exceeded",
		Details: map[string]string{
			"attempted_email": email,
			"limit_type":      limitType,
		},
	})
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// Registered logs creation of a new wallet profile.
func (l *Logger) Registered(ctx context.Context, r *http.Request, userID, authMethod string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventRegister,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"auth_method": authMethod},
	})
}

// --- Staff Actions ---

func (l *Logger) admin(ctx context.Context, eventType, actorID, userID string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   actorID,
		UserID:    userID,
		Success:   true,
		Details:   details,
	})
}

// RoleChanged logs a role assignment.
func (l *Logger) RoleChanged(ctx context.Context, actorID, userID, from, to string) {
	l.admin(ctx, audit.EventRoleChanged, actorID, userID, map[string]string{
		"from": from,
		"to":   to,
	})
}

// CardReviewed logs the approval or rejection of a card request.
func (l *Logger) CardReviewed(ctx context.Context, actorID, userID, requestID string, approved bool, reason string) {
	eventType := audit.EventCardRejected
	details := map[string]string{"request_id": requestID}
	if approved {
		eventType = audit.EventCardApproved
	} else if reason != "" {
		details["reason"] = reason
	}
	l.admin(ctx, eventType, actorID, userID, details)
}

// IdentityReviewed logs the outcome of a KYC review.
func (l *Logger) IdentityReviewed(ctx context.Context, actorID, userID, requestID string, approved bool, reason string) {
	eventType := audit.EventIdentityRejected
	details := map[string]string{"request_id": requestID}
	if approved {
		eventType = audit.EventIdentityApproved
	} else if reason != "" {
		details["reason"] = reason
	}
	l.admin(ctx, eventType, actorID, userID, details)
}

// ReportHandled logs a report resolution. action is hide, delete or reject.
func (l *Logger) ReportHandled(ctx context.Context, actorID, reportID, targetType, targetID, action string) {
	eventType := audit.EventReportResolved
	if action == "reject" {
		eventType = audit.EventReportDismissed
	}
	l.admin(ctx, eventType, actorID, "", map[string]string{
		"report_id":   reportID,
		"target_type": targetType,
		"target_id":   targetID,
		"action":      action,
	})
}

// ReconcileMismatch records a project whose raised total disagrees with the log.
func (l *Logger) ReconcileMismatch(ctx context.Context, projectID, raised, logged string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryLedger,
		EventType:     audit.EventReconcileMismatch,
		FailureReason: "raised does not match donation log",
		Details: map[string]string{
			"project_id": projectID,
			"raised":     raised,
			"logged":     logged,
		},
	})
}
