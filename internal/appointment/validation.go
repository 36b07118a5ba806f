package appointment

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/doctor-appointments/internal/apperr"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	err := validate.RegisterValidation("appointment_mode", func(fl validator.FieldLevel) bool {
		return Mode(fl.Field().String()).IsValid()
	})
	if err != nil {
		panic(err)
	}
}

// BookingRequest is a patient's request for a slot.
type BookingRequest struct {
	DoctorID           string `json:"doctorId" validate:"required,uuid"`
	PatientPhoneNumber string `json:"patientPhoneNumber" validate:"required"`
	AppointmentDate    string `json:"appointmentDate" validate:"required,datetime=2006-01-02"`
	AppointmentTime    string `json:"appointmentTime" validate:"required"`
	Reason             string `json:"reason"`
	Mode               string `json:"mode" validate:"required,appointment_mode"`
}

func (r BookingRequest) normalized() BookingRequest {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.PatientPhoneNumber = strings.TrimSpace(r.PatientPhoneNumber)
	r.AppointmentDate = strings.TrimSpace(r.AppointmentDate)
	r.AppointmentTime = strings.TrimSpace(r.AppointmentTime)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Mode = strings.TrimSpace(r.Mode)
	return r
}

// StatusRequest is a doctor's request to move an appointment.
type StatusRequest struct {
	Status      string `json:"status"`
	MeetingLink string `json:"meetingLink"`
}

// validationError turns the first failed field into a caller-facing error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid_request", err.Error())
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation("missing_field", fe.Field()+" is required")
	case "appointment_mode":
		return apperr.Validation("invalid_mode", "invalid mode, must be 'offline_visit' or 'online'")
	case "uuid":
		return apperr.Validation("invalid_field", fe.Field()+" must be a valid UUID")
	case "datetime":
		return apperr.Validation("invalid_field", fe.Field()+" must be a date in YYYY-MM-DD format")
	default:
		return apperr.Validation("invalid_field", fe.Field()+" is invalid")
	}
}
