package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage layout of an appointment date.
const DateLayout = "2006-01-02"

// State transitions:
//
//	pending → approved → completed
//	pending → rejected
//	pending → completed
//	pending → cancelled (patient only)
//
// rejected, cancelled and completed are terminal.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusApproved  AppointmentStatus = "approved"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// IsDoctorTarget reports whether a doctor may request this status.
func (s AppointmentStatus) IsDoctorTarget() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

type Mode string

const (
	ModeOfflineVisit Mode = "offline_visit"
	ModeOnline       Mode = "online"
)

func (m Mode) IsValid() bool {
	return m == ModeOfflineVisit || m == ModeOnline
}

type Doctor struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Specialization  string
	ConsultationFee float64
}

// User is the public part of an account: enough to show who is on the other
// side of an appointment.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// Slot identifies one bookable unit of a doctor's schedule. Time is opaque and
// compared for exact equality.
type Slot struct {
	DoctorID uuid.UUID
	Date     time.Time
	Time     string
}

func (s Slot) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.DoctorID, s.Date.Format(DateLayout), s.Time)
}

type Appointment struct {
	ID                 uuid.UUID
	DoctorID           uuid.UUID
	PatientID          uuid.UUID
	PatientPhoneNumber string
	AppointmentDate    time.Time
	AppointmentTime    string
	Reason             string
	Mode               Mode
	Status             AppointmentStatus
	MeetingLink        *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Appointment) Slot() Slot {
	return Slot{DoctorID: a.DoctorID, Date: a.AppointmentDate, Time: a.AppointmentTime}
}

// Draft is a not yet persisted appointment handed to the ledger.
type Draft struct {
	DoctorID           uuid.UUID
	PatientID          uuid.UUID
	PatientPhoneNumber string
	AppointmentDate    time.Time
	AppointmentTime    string
	Reason             string
	Mode               Mode
}

func (d Draft) Slot() Slot {
	return Slot{DoctorID: d.DoctorID, Date: d.AppointmentDate, Time: d.AppointmentTime}
}

// StatusChange carries the fields written alongside a status transition.
type StatusChange struct {
	MeetingLink *string
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(raw))
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentApproved  = "APPOINTMENT_APPROVED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// EventTypeFor maps the status an appointment moved into to its event type.
func EventTypeFor(status AppointmentStatus) string {
	switch status {
	case StatusApproved:
		return EventAppointmentApproved
	case StatusRejected:
		return EventAppointmentRejected
	case StatusCompleted:
		return EventAppointmentCompleted
	case StatusCancelled:
		return EventAppointmentCancelled
	default:
		return EventAppointmentCreated
	}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
