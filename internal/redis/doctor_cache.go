package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

// CachedDirectory is a read-through cache in front of a doctor directory.
// Redis failures fall through to the wrapped directory, and misses are not
// cached so a newly registered doctor is visible immediately.
type CachedDirectory struct {
	next   appointment.Directory
	client redis.UniversalClient
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedDirectory(next appointment.Directory, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    logger,
	}
}

type cachedDoctor struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Specialization  string    `json:"specialization"`
	ConsultationFee float64   `json:"consultation_fee"`
}

func doctorIDKey(id uuid.UUID) string {
	return fmt.Sprintf("doctor:id:%s", id.String())
}

func doctorUserKey(userID uuid.UUID) string {
	return fmt.Sprintf("doctor:user:%s", userID.String())
}

func (c *CachedDirectory) DoctorByID(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	return c.lookup(ctx, doctorIDKey(id), func(ctx context.Context) (*appointment.Doctor, error) {
		return c.next.DoctorByID(ctx, id)
	})
}

func (c *CachedDirectory) DoctorByUserID(ctx context.Context, userID uuid.UUID) (*appointment.Doctor, error) {
	return c.lookup(ctx, doctorUserKey(userID), func(ctx context.Context) (*appointment.Doctor, error) {
		return c.next.DoctorByUserID(ctx, userID)
	})
}

// UserByID is not cached.
func (c *CachedDirectory) UserByID(ctx context.Context, id uuid.UUID) (*appointment.User, error) {
	return c.next.UserByID(ctx, id)
}

func (c *CachedDirectory) lookup(ctx context.Context, key string, load func(context.Context) (*appointment.Doctor, error)) (*appointment.Doctor, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cd cachedDoctor
		if err := json.Unmarshal(raw, &cd); err == nil {
			return &appointment.Doctor{
				ID:              cd.ID,
				UserID:          cd.UserID,
				Specialization:  cd.Specialization,
				ConsultationFee: cd.ConsultationFee,
			}, nil
		}
		c.log.Warn("discarding malformed doctor cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("doctor cache read failed", zap.String("key", key), zap.Error(err))
	}

	d, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, d)
	return d, nil
}

// store writes both keys so a lookup by either id warms the other.
func (c *CachedDirectory) store(ctx context.Context, d *appointment.Doctor) {
	data, err := json.Marshal(cachedDoctor{
		ID:              d.ID,
		UserID:          d.UserID,
		Specialization:  d.Specialization,
		ConsultationFee: d.ConsultationFee,
	})
	if err != nil {
		c.log.Warn("encode doctor cache entry", zap.Error(err))
		return
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, doctorIDKey(d.ID), data, c.ttl)
	pipe.Set(ctx, doctorUserKey(d.UserID), data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("doctor cache write failed", zap.String("doctor_id", d.ID.String()), zap.Error(err))
	}
}
