package observability

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))

	m.queryCount.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.errorCount.Add(ctx, 1, attrs)
	}
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db      *sql.DB
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper. system is the db.system
// attribute, e.g. "sqlite" or "postgresql".
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		system:  system,
		metrics: metrics,
	}, nil
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)
	t.metrics.RecordQuery(ctx, statementVerb(query), duration, err)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)
	t.metrics.RecordQuery(ctx, statementVerb(query), duration, err)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing.
// The span ends before the row is scanned.
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	defer span.End()

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.metrics.RecordQuery(ctx, statementVerb(query), time.Since(start), row.Err())

	return row
}

// BeginTx starts a transaction. Statements inside it are not traced
// individually; the span covers opening it.
func (t *TraceDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	ctx, span := StartSpan(ctx, "DB BeginTx",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", t.system)),
	)
	defer span.End()

	tx, err := t.db.BeginTx(ctx, opts)
	RecordError(span, err)
	return tx, err
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

func statementVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

// CheckinMetrics holds check-in flow metrics. A nil *CheckinMetrics is
// valid and records nothing.
type CheckinMetrics struct {
	sessions        metric.Int64Counter
	photosConfirmed metric.Int64Counter
	captureFailures metric.Int64Counter
	checkIns        metric.Int64Counter
	summaries       metric.Int64Counter
	summaryDuration metric.Float64Histogram
	activeSessions  metric.Int64UpDownCounter
}

// NewCheckinMetrics creates check-in metrics instruments
func NewCheckinMetrics() (*CheckinMetrics, error) {
	meter := otel.Meter(instrumentationName)

	sessions, err := meter.Int64Counter(
		"skintrack.session.transitions",
		metric.WithDescription("Check-in sessions by outcome"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		return nil, err
	}

	photosConfirmed, err := meter.Int64Counter(
		"skintrack.photo.confirmed",
		metric.WithDescription("Total number of confirmed photos"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		return nil, err
	}

	captureFailures, err := meter.Int64Counter(
		"skintrack.capture.failures",
		metric.WithDescription("Capture and upload failures by kind"),
		metric.WithUnit("{failures}"),
	)
	if err != nil {
		return nil, err
	}

	checkIns, err := meter.Int64Counter(
		"skintrack.checkin.submissions",
		metric.WithDescription("Check-in submissions"),
		metric.WithUnit("{submissions}"),
	)
	if err != nil {
		return nil, err
	}

	summaries, err := meter.Int64Counter(
		"skintrack.summary.generations",
		metric.WithDescription("Summary generations by outcome"),
		metric.WithUnit("{summaries}"),
	)
	if err != nil {
		return nil, err
	}

	summaryDuration, err := meter.Float64Histogram(
		"skintrack.summary.duration",
		metric.WithDescription("Summary generation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"skintrack.session.active",
		metric.WithDescription("Number of live check-in sessions"),
		metric.WithUnit("{sessions}"),
	)
	if err != nil {
		return nil, err
	}

	return &CheckinMetrics{
		sessions:        sessions,
		photosConfirmed: photosConfirmed,
		captureFailures: captureFailures,
		checkIns:        checkIns,
		summaries:       summaries,
		summaryDuration: summaryDuration,
		activeSessions:  activeSessions,
	}, nil
}

// RecordSessionStarted records a new check-in session
func (m *CheckinMetrics) RecordSessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "started")))
	m.activeSessions.Add(ctx, 1)
}

// RecordSessionEnded records a session leaving the manager with outcome
// "completed", "cancelled" or "expired"
func (m *CheckinMetrics) RecordSessionEnded(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.activeSessions.Add(ctx, -1)
}

// RecordPhotoConfirmed records a confirmed photo for an angle
func (m *CheckinMetrics) RecordPhotoConfirmed(ctx context.Context, angle string) {
	if m == nil {
		return
	}
	m.photosConfirmed.Add(ctx, 1, metric.WithAttributes(attribute.String("photo_angle", angle)))
}

// RecordCaptureFailure records a failed capture step
func (m *CheckinMetrics) RecordCaptureFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.captureFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSubmission records a check-in submission
func (m *CheckinMetrics) RecordSubmission(ctx context.Context, withTest, success bool) {
	if m == nil {
		return
	}
	m.checkIns.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("with_test", withTest),
		attribute.Bool("success", success),
	))
}

// RecordSummary records a summary generation attempt
func (m *CheckinMetrics) RecordSummary(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.summaries.Add(ctx, 1, attrs)
	m.summaryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}
