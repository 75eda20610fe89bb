package appointments

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTable is the backend table holding appointment rows.
const DefaultTable = "Appointments"

// BackendError reports a failed backend operation.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("appointments: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository runs the dashboard's read query.
type Repository struct {
	db     querier
	table  string
	tracer trace.Tracer
}

func NewRepository(pool *pgxpool.Pool, table string) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return NewRepositoryWithDB(pool, table)
}

func NewRepositoryWithDB(db querier, table string) *Repository {
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	return &Repository{
		db:     db,
		table:  table,
		tracer: otel.Tracer("appointment-insights.internal.appointments"),
	}
}

func (r *Repository) selectQuery() string {
	return `SELECT "Appt_ID", "Appt_DateTime", "Status", "Appt_type", "Check_in_Time"::text FROM ` +
		pgx.Identifier{r.table}.Sanitize()
}

// FetchAll returns every appointment row. Order is whatever the backend yields.
func (r *Repository) FetchAll(ctx context.Context) ([]Appointment, error) {
	ctx, span := r.tracer.Start(ctx, "appointments.fetch_all",
		trace.WithAttributes(attribute.String("db.table", r.table)))
	defer span.End()

	rows, err := r.db.Query(ctx, r.selectQuery())
	if err != nil {
		span.RecordError(err)
		return nil, &BackendError{Op: "query", Err: err}
	}
	defer rows.Close()

	out := make([]Appointment, 0)
	for rows.Next() {
		var (
			appt        Appointment
			scheduledAt pgtype.Timestamptz
			status      pgtype.Text
			apptType    pgtype.Text
			checkIn     pgtype.Text
		)
		if err := rows.Scan(&appt.ID, &scheduledAt, &status, &apptType, &checkIn); err != nil {
			span.RecordError(err)
			return nil, &BackendError{Op: "scan", Err: err}
		}
		if scheduledAt.Valid {
			appt.ScheduledAt = scheduledAt.Time
		}
		appt.Status = status.String
		appt.Type = apptType.String
		if checkIn.Valid {
			value := checkIn.String
			appt.CheckInTime = &value
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, &BackendError{Op: "iterate", Err: err}
	}
	span.SetAttributes(attribute.Int("appointments.count", len(out)))
	return out, nil
}
