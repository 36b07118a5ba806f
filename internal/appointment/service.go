package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/apperr"
)

// Service applies authorization and the booking state machine on top of a
// Ledger. It holds no locks of its own; all conflict detection happens in the
// ledger's atomic operations.
type Service struct {
	ledger    Ledger
	directory Directory
	log       *zap.Logger
}

func NewService(ledger Ledger, directory Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		log:       logger,
	}
}

// BookAppointment reserves a slot for the calling patient. Exactly one of any
// number of concurrent bookings for the same slot succeeds; the rest get a
// conflict.
func (s *Service) BookAppointment(ctx context.Context, caller PatientPrincipal, req BookingRequest) (*Appointment, error) {
	req = req.normalized()
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperr.Validation("invalid_field", "doctorId must be a valid UUID")
	}
	date, err := ParseDate(req.AppointmentDate)
	if err != nil {
		return nil, apperr.Validation("invalid_field", "appointmentDate must be a date in YYYY-MM-DD format")
	}

	if _, err := s.directory.DoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "doctor_not_found", "doctor not found", err)
		}
		return nil, s.upstream("directory_unavailable", "load doctor", err)
	}

	appt, err := s.ledger.TryReserve(ctx, Draft{
		DoctorID:           doctorID,
		PatientID:          caller.ID,
		PatientPhoneNumber: req.PatientPhoneNumber,
		AppointmentDate:    date,
		AppointmentTime:    req.AppointmentTime,
		Reason:             req.Reason,
		Mode:               Mode(req.Mode),
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.log.Info("booking conflict",
				zap.String("doctor_id", doctorID.String()),
				zap.String("appointment_date", req.AppointmentDate),
				zap.String("appointment_time", req.AppointmentTime),
				zap.String("patient_id", caller.ID.String()),
			)
			return nil, apperr.Conflict("slot_already_booked",
				"this time slot is already booked, please choose a different time", err)
		}
		return nil, s.upstream("storage_unavailable", "reserve slot", err)
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("doctor_id", appt.DoctorID.String()),
		zap.String("patient_id", appt.PatientID.String()),
	)
	return appt, nil
}

// AppointmentView is a listed appointment with the other party resolved.
// Patient listings carry the doctor's profile and account; doctor listings
// carry the patient's account. Parties missing from the directory stay nil.
type AppointmentView struct {
	Appointment
	Doctor     *Doctor
	DoctorUser *User
	Patient    *User
}

// ListMyAppointments lists the caller's appointments, newest date first.
// Patients see what they booked; doctors see what is assigned to them,
// optionally filtered by status.
func (s *Service) ListMyAppointments(ctx context.Context, caller Principal, status string) ([]AppointmentView, error) {
	switch p := caller.(type) {
	case PatientPrincipal:
		list, err := s.ledger.ListByPatient(ctx, p.ID)
		if err != nil {
			return nil, s.upstream("storage_unavailable", "list patient appointments", err)
		}
		return s.withDoctors(ctx, list)

	case DoctorPrincipal:
		filter := AppointmentStatus(strings.TrimSpace(status))
		if filter != "" && !filter.IsValid() {
			return nil, apperr.Validation("invalid_status_filter", "invalid status filter")
		}

		doctor, err := s.doctorProfile(ctx, p)
		if err != nil {
			return nil, err
		}

		list, err := s.ledger.ListByDoctor(ctx, doctor.ID, filter)
		if err != nil {
			return nil, s.upstream("storage_unavailable", "list doctor appointments", err)
		}
		return s.withPatients(ctx, list)

	default:
		return nil, apperr.Authorization("role_not_allowed", "role cannot list appointments")
	}
}

func (s *Service) withDoctors(ctx context.Context, list []Appointment) ([]AppointmentView, error) {
	doctors := map[uuid.UUID]*Doctor{}
	users := map[uuid.UUID]*User{}

	views := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		d, ok := doctors[a.DoctorID]
		if !ok {
			var err error
			d, err = s.directory.DoctorByID(ctx, a.DoctorID)
			if err != nil && !errors.Is(err, ErrDoctorNotFound) {
				return nil, s.upstream("directory_unavailable", "load doctor", err)
			}
			doctors[a.DoctorID] = d
		}

		v := AppointmentView{Appointment: a, Doctor: d}
		if d != nil {
			u, err := s.user(ctx, users, d.UserID)
			if err != nil {
				return nil, err
			}
			v.DoctorUser = u
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) withPatients(ctx context.Context, list []Appointment) ([]AppointmentView, error) {
	users := map[uuid.UUID]*User{}

	views := make([]AppointmentView, 0, len(list))
	for _, a := range list {
		u, err := s.user(ctx, users, a.PatientID)
		if err != nil {
			return nil, err
		}
		views = append(views, AppointmentView{Appointment: a, Patient: u})
	}
	return views, nil
}

// user resolves an account once per listing; unknown ids resolve to nil.
func (s *Service) user(ctx context.Context, seen map[uuid.UUID]*User, id uuid.UUID) (*User, error) {
	if u, ok := seen[id]; ok {
		return u, nil
	}
	u, err := s.directory.UserByID(ctx, id)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, s.upstream("directory_unavailable", "load user", err)
	}
	seen[id] = u
	return u, nil
}

// GetAppointment returns one appointment to its patient or its doctor.
func (s *Service) GetAppointment(ctx context.Context, caller Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch p := caller.(type) {
	case PatientPrincipal:
		if appt.PatientID != p.ID {
			return nil, apperr.Authorization("not_appointment_owner", "you are not authorized to view this appointment")
		}
	case DoctorPrincipal:
		doctor, err := s.doctorProfile(ctx, p)
		if err != nil {
			return nil, err
		}
		if appt.DoctorID != doctor.ID {
			return nil, apperr.Authorization("not_appointment_owner", "you are not authorized to view this appointment")
		}
	default:
		return nil, apperr.Authorization("role_not_allowed", "role cannot view appointments")
	}

	return appt, nil
}

// SetStatus moves an appointment owned by the calling doctor to approved,
// rejected or completed. Any non-terminal appointment may move to any of the
// three other than its current status, so pending → completed is allowed and
// approved → approved is not.
func (s *Service) SetStatus(ctx context.Context, caller DoctorPrincipal, id uuid.UUID, req StatusRequest) (*Appointment, error) {
	next := AppointmentStatus(strings.TrimSpace(req.Status))
	if next == "" {
		return nil, apperr.Validation("missing_status", "status is required")
	}
	if !next.IsDoctorTarget() {
		return nil, apperr.Validation("invalid_status", "invalid status, must be 'approved', 'rejected', or 'completed'")
	}

	doctor, err := s.doctorProfile(ctx, caller)
	if err != nil {
		return nil, err
	}

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.DoctorID != doctor.ID {
		return nil, apperr.Authorization("not_appointment_owner", "you are not authorized to update this appointment")
	}
	if appt.Status.IsTerminal() {
		return nil, apperr.State("appointment_terminal",
			fmt.Sprintf("cannot update an appointment that is already %s", appt.Status))
	}
	if appt.Status == next {
		return nil, apperr.State("status_unchanged",
			fmt.Sprintf("appointment is already %s", next))
	}

	var change StatusChange
	if next == StatusApproved && appt.Mode == ModeOnline {
		link := strings.TrimSpace(req.MeetingLink)
		if link == "" {
			return nil, apperr.Validation("missing_meeting_link", "meeting link is required when approving an online appointment")
		}
		change.MeetingLink = &link
	}

	updated, err := s.ledger.UpdateStatus(ctx, appt.ID, appt.Status, next, change)
	if err != nil {
		return nil, s.transitionError(appt, next, err)
	}

	s.log.Info("appointment status updated",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(updated.Status)),
	)
	return updated, nil
}

// CancelAppointment cancels a pending appointment on behalf of its patient.
// Approved appointments cannot be cancelled by the patient.
func (s *Service) CancelAppointment(ctx context.Context, caller PatientPrincipal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.PatientID != caller.ID {
		return nil, apperr.Authorization("not_appointment_owner", "you are not authorized to cancel this appointment")
	}
	if appt.Status != StatusPending {
		return nil, apperr.State("appointment_not_pending",
			fmt.Sprintf("cannot cancel an appointment that is already %s", appt.Status))
	}

	updated, err := s.ledger.UpdateStatus(ctx, appt.ID, StatusPending, StatusCancelled, StatusChange{})
	if err != nil {
		return nil, s.transitionError(appt, StatusCancelled, err)
	}

	s.log.Info("appointment cancelled",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("patient_id", caller.ID.String()),
	)
	return updated, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "appointment_not_found", "appointment not found", err)
		}
		return nil, s.upstream("storage_unavailable", "load appointment", err)
	}
	return appt, nil
}

func (s *Service) doctorProfile(ctx context.Context, caller DoctorPrincipal) (*Doctor, error) {
	doctor, err := s.directory.DoctorByUserID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "doctor_profile_not_found", "doctor profile not found", err)
		}
		return nil, s.upstream("directory_unavailable", "load doctor profile", err)
	}
	return doctor, nil
}

func (s *Service) transitionError(appt *Appointment, next AppointmentStatus, err error) error {
	switch {
	case errors.Is(err, ErrStatusChanged):
		s.log.Info("status transition lost race",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("expected", string(appt.Status)),
			zap.String("to", string(next)),
		)
		return apperr.Conflict("status_changed",
			"appointment was modified concurrently, reload it and retry", err)
	case errors.Is(err, ErrAppointmentNotFound):
		return apperr.Wrap(apperr.KindNotFound, "appointment_not_found", "appointment not found", err)
	default:
		return s.upstream("storage_unavailable", "update appointment status", err)
	}
}

func (s *Service) upstream(code, op string, err error) error {
	s.log.Error("upstream failure", zap.String("op", op), zap.Error(err))
	return apperr.Upstream(code, op+" failed, try again later", err)
}
