// Package redis connects to the Redis server that backs the shared quota
// store in multi-instance deployments.
//
// It wraps github.com/redis/go-redis/v9 with a retrying Connect and a
// Healthcheck closure for readiness probes. Config is populated from
// environment variables:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix))
package redis
