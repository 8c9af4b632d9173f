package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/medrex/portal-authz/pkg/rbac"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Logger wraps logrus.Logger with the gateway's structured helpers
type Logger struct {
	*logrus.Logger
}

// New creates a JSON logger writing to stdout. Unknown levels fall back to info.
func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput creates a JSON logger writing to out
func NewWithOutput(level string, out io.Writer) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	return &Logger{Logger: log}
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// ContextWithRequestID stores the request ID for later log entries
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, if any
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext creates a logger entry carrying the request and trace IDs found in ctx
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(l.Logger)

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry = entry.WithFields(logrus.Fields{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
	}

	return entry
}

// AccessDecision logs a route authorization outcome. Denials are logged at warn.
func (l *Logger) AccessDecision(ctx context.Context, roles []rbac.Role, decision rbac.AccessDecision) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"access_decision": true,
		"route":           decision.Route,
		"roles":           roles,
		"allowed":         decision.Allowed,
		"reason":          decision.Reason,
	})
	if decision.Role != "" {
		entry = entry.WithField("granted_by", decision.Role)
	}
	if decision.Pattern != "" {
		entry = entry.WithField("pattern", decision.Pattern)
	}

	if decision.Allowed {
		entry.Info("Route access granted")
	} else {
		entry.Warn("Route access denied")
	}
}

// LandingFallback logs a signed-in principal that matched no landing rule
func (l *Logger) LandingFallback(ctx context.Context, roles []rbac.Role, page string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"landing_fallback": true,
		"roles":            roles,
		"page":             page,
	}).Warn("No landing rule matched, using fallback page")
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration int64) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"user_agent":   userAgent,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}
