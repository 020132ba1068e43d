package redisstore

import "github.com/redis/go-redis/v9"

// Scripts return -1 when the limits hash does not exist.

// createScript: KEYS[1] hash, ARGV field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// addClampedScript: ARGV[1] field, ARGV[2] delta, ARGV[3] updated_at.
var addClampedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local v = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0') + tonumber(ARGV[2])
if v < 0 then
	v = 0
end
redis.call('HSET', KEYS[1], ARGV[1], v, 'updated_at', ARGV[3])
return 1
`)

// incrExistingScript: ARGV[1] field, ARGV[2] delta, ARGV[3] updated_at.
var incrExistingScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
return 1
`)

// resetWindowScript: ARGV[1] now (unix ms), ARGV[2] next reset (unix ms), ARGV[3] updated_at.
// Returns 1 when the window was reset, 0 when it is still running.
var resetWindowScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local at = redis.call('HGET', KEYS[1], 'api_reset_at')
if at and at ~= '' and tonumber(at) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'api_calls_this_hour', 0, 'api_reset_at', ARGV[2], 'updated_at', ARGV[3])
return 1
`)
