package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/apperr"
	"github.com/hackgods/doctor-appointments/internal/appointment"
)

const maxBodyBytes = 1 << 20

// AppointmentService is implemented by *appointment.Service.
type AppointmentService interface {
	BookAppointment(ctx context.Context, caller appointment.PatientPrincipal, req appointment.BookingRequest) (*appointment.Appointment, error)
	ListMyAppointments(ctx context.Context, caller appointment.Principal, status string) ([]appointment.AppointmentView, error)
	GetAppointment(ctx context.Context, caller appointment.Principal, id uuid.UUID) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, caller appointment.DoctorPrincipal, id uuid.UUID, req appointment.StatusRequest) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, caller appointment.PatientPrincipal, id uuid.UUID) (*appointment.Appointment, error)
}

type appointmentHandler struct {
	svc AppointmentService
	log *zap.Logger
}

func (h *appointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	patient, err := patientFrom(r)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	var req appointment.BookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	appt, err := h.svc.BookAppointment(r.Context(), patient, req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(appt))
}

func (h *appointmentHandler) listMine(w http.ResponseWriter, r *http.Request) {
	patient, err := patientFrom(r)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	list, err := h.svc.ListMyAppointments(r.Context(), patient, "")
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(list))
}

func (h *appointmentHandler) listDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := doctorFrom(r)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	list, err := h.svc.ListMyAppointments(r.Context(), doctor, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(list))
}

func (h *appointmentHandler) get(w http.ResponseWriter, r *http.Request) {
	caller, err := PrincipalFrom(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *appointmentHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	doctor, err := doctorFrom(r)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	var req appointment.StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	appt, err := h.svc.SetStatus(r.Context(), doctor, id, req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *appointmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	patient, err := patientFrom(r)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.CancelAppointment(r.Context(), patient, id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(appt))
}

// Helpers

func patientFrom(r *http.Request) (appointment.PatientPrincipal, error) {
	p, err := PrincipalFrom(r.Context())
	if err != nil {
		return appointment.PatientPrincipal{}, err
	}
	return appointment.AsPatient(p)
}

func doctorFrom(r *http.Request) (appointment.DoctorPrincipal, error) {
	p, err := PrincipalFrom(r.Context())
	if err != nil {
		return appointment.DoctorPrincipal{}, err
	}
	return appointment.AsDoctor(p)
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindState:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		writeError(w, statusForKind(e.Kind), e.Code, e.Message)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "timeout", "request timed out, try again later")
		return
	}

	logger.Error("unhandled error",
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
