package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) DoctorByID(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		return d.(*appointment.Doctor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) DoctorByUserID(ctx context.Context, userID uuid.UUID) (*appointment.Doctor, error) {
	args := m.Called(ctx, userID)
	if d := args.Get(0); d != nil {
		return d.(*appointment.Doctor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) UserByID(ctx context.Context, id uuid.UUID) (*appointment.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*appointment.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleDoctor() *appointment.Doctor {
	return &appointment.Doctor{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Specialization:  "Dermatology",
		ConsultationFee: 42.5,
	}
}

func TestCachedDirectoryFallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	doc := sampleDoctor()
	next := &mockDirectory{}
	next.On("DoctorByID", mock.Anything, doc.ID).Return(doc, nil).Twice()

	dir := NewCachedDirectory(next, client, time.Minute, nil)

	for i := 0; i < 2; i++ {
		got, err := dir.DoctorByID(context.Background(), doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc, got)
	}
	next.AssertExpectations(t)
}

func TestCachedDirectoryPassesErrorsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	id := uuid.New()
	next := &mockDirectory{}
	next.On("DoctorByUserID", mock.Anything, id).Return(nil, appointment.ErrDoctorNotFound)

	dir := NewCachedDirectory(next, client, time.Minute, nil)
	_, err := dir.DoctorByUserID(context.Background(), id)
	assert.ErrorIs(t, err, appointment.ErrDoctorNotFound)
}

func TestCachedDirectoryUserLookupsGoToTheDirectory(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	user := &appointment.User{ID: uuid.New(), Name: "Ana Ruiz", Email: "ana@example.com"}
	next := &mockDirectory{}
	next.On("UserByID", mock.Anything, user.ID).Return(user, nil).Once()
	next.On("UserByID", mock.Anything, mock.Anything).Return(nil, appointment.ErrUserNotFound).Once()

	dir := NewCachedDirectory(next, client, time.Minute, nil)

	got, err := dir.UserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = dir.UserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, appointment.ErrUserNotFound)
	next.AssertExpectations(t)
}

func TestCachedDirectoryWithRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client, err := NewRedisClient(addr, "", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	doc := sampleDoctor()
	t.Cleanup(func() {
		client.Del(ctx, doctorIDKey(doc.ID), doctorUserKey(doc.UserID))
	})

	next := &mockDirectory{}
	next.On("DoctorByID", mock.Anything, doc.ID).Return(doc, nil).Once()

	dir := NewCachedDirectory(next, client, time.Minute, nil)

	got, err := dir.DoctorByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	// both keys are warm now, so neither lookup reaches the directory
	got, err = dir.DoctorByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	got, err = dir.DoctorByUserID(ctx, doc.UserID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.InDelta(t, 42.5, got.ConsultationFee, 0.0001)

	ttl, err := client.TTL(ctx, doctorIDKey(doc.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	next.AssertExpectations(t)
}
