package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrSlotTaken           = errors.New("slot already has an active appointment")
	ErrStatusChanged       = errors.New("appointment status changed concurrently")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrUserNotFound        = errors.New("user not found")
)

// Ledger is the authoritative appointment store. It is the only component
// that enforces the one-active-appointment-per-slot invariant, and every
// mutation it exposes is a single atomic step.
type Ledger interface {
	// TryReserve inserts d unless an active appointment already holds its
	// slot, in which case it returns ErrSlotTaken.
	TryReserve(ctx context.Context, d Draft) (*Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Listings are ordered by appointment date, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	// ListByDoctor filters by status unless status is empty.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus) ([]Appointment, error)

	// UpdateStatus is a compare-and-set on status. It returns ErrStatusChanged
	// when the stored status is no longer expected.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, change StatusChange) (*Appointment, error)
}

// Outbox exposes the event rows written alongside ledger mutations.
type Outbox interface {
	PendingEvents(ctx context.Context, limit int) ([]EventLog, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Directory resolves doctors and the accounts behind them. It is read-only
// from the scheduler's view.
type Directory interface {
	DoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	DoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type eventPayload struct {
	DoctorID        uuid.UUID         `json:"doctor_id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	Status          AppointmentStatus `json:"status"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	Mode            Mode              `json:"mode"`
	MeetingLink     *string           `json:"meeting_link,omitempty"`
}

func newEvent(a *Appointment, at time.Time) (EventLog, error) {
	data, err := json.Marshal(eventPayload{
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		Status:          a.Status,
		AppointmentDate: a.AppointmentDate.Format(DateLayout),
		AppointmentTime: a.AppointmentTime,
		Mode:            a.Mode,
		MeetingLink:     a.MeetingLink,
	})
	if err != nil {
		return EventLog{}, err
	}
	return EventLog{
		EventType:     EventTypeFor(a.Status),
		AppointmentID: a.ID,
		Payload:       data,
		CreatedAt:     at,
	}, nil
}
