package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context so audit lines emitted
// while handling that request can be correlated with the access log.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func (al *Logger) LogAction(ctx context.Context, tenantID, userID, action, resource, resourceID, status, details string) {
	requestID := requestIDFrom(ctx)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("tenant_id", tenantID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogAccountCreated(ctx context.Context, tenantID, actorID, accountID, role string) {
	al.LogAction(ctx, tenantID, actorID, "create", "account", accountID, "completed", "role="+role)
}

func (al *Logger) LogAgencyCreated(ctx context.Context, tenantID, actorID, agencyID string) {
	al.LogAction(ctx, tenantID, actorID, "create", "agency", agencyID, "completed", "")
}

func (al *Logger) LogDocumentUpload(ctx context.Context, tenantID, userID, documentID, status, details string) {
	al.LogAction(ctx, tenantID, userID, "upload", "document", documentID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, tenantID, userID, reason string) {
	al.LogAction(ctx, tenantID, userID, "access_denied", "api", "", "denied", reason)
}
