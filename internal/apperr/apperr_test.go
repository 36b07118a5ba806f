package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/doctor-appointments/internal/apperr"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		kind      apperr.Kind
		retryable bool
	}{
		{"validation", apperr.Validation("missing_field", "doctorId is required"), apperr.KindValidation, false},
		{"authorization", apperr.Authorization("forbidden", "nope"), apperr.KindAuthorization, false},
		{"not found", apperr.NotFound("doctor_not_found", "doctor not found"), apperr.KindNotFound, false},
		{"conflict", apperr.Conflict("slot_already_booked", "taken", nil), apperr.KindConflict, true},
		{"state", apperr.State("invalid_state", "already cancelled"), apperr.KindState, false},
		{"upstream", apperr.Upstream("storage_unavailable", "down", cause), apperr.KindUpstream, true},
		{"wrapped", fmt.Errorf("book: %w", apperr.Conflict("status_changed", "lost", nil)), apperr.KindConflict, true},
		{"plain", cause, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, apperr.KindOf(tt.err))
			assert.Equal(t, tt.retryable, apperr.Retryable(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("pool closed")
	err := apperr.Upstream("storage_unavailable", "ledger unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "upstream: ledger unavailable: pool closed", err.Error())
	assert.Equal(t, "not_found: gone", apperr.NotFound("x", "gone").Error())
}
