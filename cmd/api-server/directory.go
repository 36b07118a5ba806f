package main

import (
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/api"
	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/config"
	redisclient "github.com/hackgods/doctor-appointments/internal/redis"
)

// newDirectory puts the Redis doctor cache in front of pg when Redis answers
// at startup. Otherwise it serves pg directly and leaves Redis out of the
// readiness report. The returned func releases the Redis client, if any.
func newDirectory(cfg config.Config, pg appointment.Directory, lg *zap.Logger) (appointment.Directory, []api.Dependency, func()) {
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		lg.Warn("redis unavailable, doctor lookups are uncached", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return pg, nil, func() {}
	}
	lg.Info("connected to Redis")

	dir := redisclient.NewCachedDirectory(pg, rdb, cfg.DoctorCacheTTL, lg.Named("doctor_cache"))
	deps := []api.Dependency{{Name: "redis", Pinger: redisclient.Pinger{Client: rdb}}}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("error closing redis", zap.Error(err))
		}
	}
	return dir, deps, closeFn
}
