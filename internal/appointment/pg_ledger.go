package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const appointmentColumns = `id, doctor_id, patient_id, patient_phone_number, appointment_date,
	appointment_time, reason, mode, status, meeting_link, created_at, updated_at`

// PgLedger stores appointments in Postgres. The partial unique index
// appointments_active_slot_uq (see internal/db/schema.sql) makes TryReserve a
// single compare-and-insert statement.
type PgLedger struct {
	pool *pgxpool.Pool
}

func NewPgLedger(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var meetingLink *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.PatientPhoneNumber,
		&a.AppointmentDate,
		&a.AppointmentTime,
		&a.Reason,
		&a.Mode,
		&a.Status,
		&meetingLink,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.MeetingLink = meetingLink
	a.AppointmentDate = DateOnly(a.AppointmentDate)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func insertEvent(ctx context.Context, tx pgx.Tx, a *Appointment) error {
	ev, err := newEvent(a, time.Now())
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.EventType, ev.AppointmentID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Ledger methods

func (l *PgLedger) TryReserve(ctx context.Context, d Draft) (*Appointment, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, patient_phone_number, appointment_date,
		                          appointment_time, reason, mode, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())
		ON CONFLICT (doctor_id, appointment_date, appointment_time)
		  WHERE status IN ('pending', 'approved')
		  DO NOTHING
		RETURNING `+appointmentColumns,
		uuid.New(), d.DoctorID, d.PatientID, d.PatientPhoneNumber, DateOnly(d.AppointmentDate),
		d.AppointmentTime, d.Reason, d.Mode,
	)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := insertEvent(ctx, tx, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return a, nil
}

func (l *PgLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (l *PgLedger) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC, created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (l *PgLedger) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus) ([]Appointment, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND ($2::text = '' OR status = $2::text)
		ORDER BY appointment_date DESC, appointment_time DESC, created_at DESC
	`, doctorID, string(status))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (l *PgLedger) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, change StatusChange) (*Appointment, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    meeting_link = COALESCE($4::text, meeting_link),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, next, expected, change.MeetingLink,
	)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check appointment: %w", err)
		}
		if exists {
			return nil, ErrStatusChanged
		}
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	if err := insertEvent(ctx, tx, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return a, nil
}

// Outbox methods

func (l *PgLedger) PendingEvents(ctx context.Context, limit int) ([]EventLog, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at, published_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *PgLedger) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := l.pool.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
