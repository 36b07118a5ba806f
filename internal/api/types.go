package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	DoctorID           uuid.UUID `json:"doctorId"`
	PatientID          uuid.UUID `json:"patientId"`
	PatientPhoneNumber string    `json:"patientPhoneNumber"`
	AppointmentDate    string    `json:"appointmentDate"`
	AppointmentTime    string    `json:"appointmentTime"`
	Reason             string    `json:"reason"`
	Mode               string    `json:"mode"`
	Status             string    `json:"status"`
	MeetingLink        *string   `json:"meetingLink,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type DoctorSummary struct {
	ID              uuid.UUID `json:"id"`
	Specialization  string    `json:"specialization"`
	ConsultationFee float64   `json:"consultationFee"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
}

type PatientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// AppointmentListItem adds the other party's details to a listed appointment.
type AppointmentListItem struct {
	AppointmentResponse
	Doctor  *DoctorSummary  `json:"doctor,omitempty"`
	Patient *PatientSummary `json:"patient,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentListItem `json:"appointments"`
	Count        int                   `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		DoctorID:           a.DoctorID,
		PatientID:          a.PatientID,
		PatientPhoneNumber: a.PatientPhoneNumber,
		AppointmentDate:    a.AppointmentDate.Format(appointment.DateLayout),
		AppointmentTime:    a.AppointmentTime,
		Reason:             a.Reason,
		Mode:               string(a.Mode),
		Status:             string(a.Status),
		MeetingLink:        a.MeetingLink,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toListResponse(list []appointment.AppointmentView) AppointmentListResponse {
	resp := AppointmentListResponse{
		Appointments: make([]AppointmentListItem, 0, len(list)),
		Count:        len(list),
	}
	for i := range list {
		v := &list[i]
		item := AppointmentListItem{AppointmentResponse: toResponse(&v.Appointment)}
		if v.Doctor != nil {
			item.Doctor = &DoctorSummary{
				ID:              v.Doctor.ID,
				Specialization:  v.Doctor.Specialization,
				ConsultationFee: v.Doctor.ConsultationFee,
			}
			if v.DoctorUser != nil {
				item.Doctor.Name = v.DoctorUser.Name
				item.Doctor.Email = v.DoctorUser.Email
			}
		}
		if v.Patient != nil {
			item.Patient = &PatientSummary{ID: v.Patient.ID, Name: v.Patient.Name, Email: v.Patient.Email}
		}
		resp.Appointments = append(resp.Appointments, item)
	}
	return resp
}
