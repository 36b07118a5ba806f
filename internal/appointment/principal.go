package appointment

import (
	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointments/internal/apperr"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Principal is an authenticated caller. The only implementations are
// PatientPrincipal and DoctorPrincipal; service operations take the variant
// whose role may invoke them.
type Principal interface {
	UserID() uuid.UUID
	Role() Role
	principal()
}

type PatientPrincipal struct {
	ID uuid.UUID
}

func (p PatientPrincipal) UserID() uuid.UUID { return p.ID }
func (p PatientPrincipal) Role() Role        { return RolePatient }
func (PatientPrincipal) principal()          {}

type DoctorPrincipal struct {
	ID uuid.UUID
}

func (d DoctorPrincipal) UserID() uuid.UUID { return d.ID }
func (d DoctorPrincipal) Role() Role        { return RoleDoctor }
func (DoctorPrincipal) principal()          {}

// NewPrincipal builds the principal variant for role.
func NewPrincipal(userID uuid.UUID, role Role) (Principal, error) {
	if userID == uuid.Nil {
		return nil, apperr.Authorization("invalid_principal", "principal has no user id")
	}
	switch role {
	case RolePatient:
		return PatientPrincipal{ID: userID}, nil
	case RoleDoctor:
		return DoctorPrincipal{ID: userID}, nil
	default:
		return nil, apperr.Authorization("unknown_role", "unsupported role "+string(role))
	}
}

func AsPatient(p Principal) (PatientPrincipal, error) {
	patient, ok := p.(PatientPrincipal)
	if !ok {
		return PatientPrincipal{}, apperr.Authorization("patient_role_required", "only patients can perform this action")
	}
	return patient, nil
}

func AsDoctor(p Principal) (DoctorPrincipal, error) {
	doctor, ok := p.(DoctorPrincipal)
	if !ok {
		return DoctorPrincipal{}, apperr.Authorization("doctor_role_required", "only doctors can perform this action")
	}
	return doctor, nil
}
