package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/config"
	redisclient "github.com/hackgods/doctor-appointments/internal/redis"
)

type stubDirectory struct {
	doctor appointment.Doctor
}

func (s *stubDirectory) DoctorByID(_ context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	if id != s.doctor.ID {
		return nil, appointment.ErrDoctorNotFound
	}
	d := s.doctor
	return &d, nil
}

func (s *stubDirectory) DoctorByUserID(_ context.Context, userID uuid.UUID) (*appointment.Doctor, error) {
	if userID != s.doctor.UserID {
		return nil, appointment.ErrDoctorNotFound
	}
	d := s.doctor
	return &d, nil
}

func (s *stubDirectory) UserByID(context.Context, uuid.UUID) (*appointment.User, error) {
	return nil, appointment.ErrUserNotFound
}

func TestNewDirectoryWithoutRedis(t *testing.T) {
	pg := &stubDirectory{doctor: appointment.Doctor{ID: uuid.New(), UserID: uuid.New()}}
	cfg := config.Config{RedisAddr: "127.0.0.1:1", DoctorCacheTTL: time.Minute}

	dir, deps, closeFn := newDirectory(cfg, pg, zap.NewNop())
	defer closeFn()

	assert.Same(t, pg, dir)
	assert.Empty(t, deps)

	got, err := dir.DoctorByID(context.Background(), pg.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, pg.doctor.ID, got.ID)
}

func TestNewDirectoryWithRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	pg := &stubDirectory{doctor: appointment.Doctor{ID: uuid.New(), UserID: uuid.New()}}
	cfg := config.Config{RedisAddr: addr, DoctorCacheTTL: time.Minute}

	dir, deps, closeFn := newDirectory(cfg, pg, zap.NewNop())
	defer closeFn()

	assert.IsType(t, &redisclient.CachedDirectory{}, dir)
	require.Len(t, deps, 1)
	assert.Equal(t, "redis", deps[0].Name)
	assert.False(t, deps[0].Critical)
	assert.NoError(t, deps[0].Pinger.Ping(context.Background()))
}
