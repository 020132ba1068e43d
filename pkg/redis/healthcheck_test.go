package redis_test

import (
	"context"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/redis"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", p.err)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	require.NoError(t, redis.Healthcheck(pinger{})(context.Background()))

	err := redis.Healthcheck(pinger{err: errors.New("connection refused")})(context.Background())
	assert.ErrorIs(t, err, redis.ErrHealthcheckFailed)
}
