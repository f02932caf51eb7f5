package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"talkify/api/internal/ids"
)

const lockPrefix = "lock:"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock is a best effort mutual exclusion across API replicas.
type JobLock struct {
	client *redis.Client
}

func NewJobLock(client *redis.Client) *JobLock {
	return &JobLock{client: client}
}

// Acquire takes name for at most ttl. When acquired is false another holder
// owns it and release is nil.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), acquired bool, err error) {
	key := lockPrefix + name
	token := ids.New()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, true, nil
}
