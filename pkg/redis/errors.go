package redis

import "errors"

var (
	// ErrFailedToParseRedisConnString wraps a REDIS_URL that redis.ParseURL rejects.
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	// ErrRedisNotReady is returned when Connect exhausts its retries before the first PING succeeds.
	ErrRedisNotReady = errors.New("redis did not become ready within the given time period")
	// ErrEmptyConnectionURL is returned when no REDIS_URL is configured.
	ErrEmptyConnectionURL = errors.New("empty redis connection URL, use REDIS_URL env var")
	// ErrHealthcheckFailed marks a failed readiness PING.
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
