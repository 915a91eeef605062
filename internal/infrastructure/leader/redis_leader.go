package leader

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const leaderKey = "auction_scheduler_leader"

// RedisLeaderElection keeps a single lifecycle scheduler active across
// deployed instances. Leadership is a value-matched key with a TTL,
// refreshed by a heartbeat while held.
type RedisLeaderElection struct {
	client *redis.Client
	ttl    time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.SetNX(ctx, leaderKey, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if result {
		r.mu.Lock()
		if r.stop == nil {
			r.stop = make(chan struct{})
			go r.maintainLeadership(instanceID, r.stop)
		}
		r.mu.Unlock()
	}

	return result, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

// ReleaseLeadership deletes the key only if this instance still holds it
// and stops the heartbeat either way.
func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.mu.Unlock()

	luaScript := `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

	_, err := r.client.Eval(ctx, luaScript, []string{leaderKey}, instanceID).Result()
	return err
}

func (r *RedisLeaderElection) maintainLeadership(instanceID string, stop chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	defer r.clearStop(stop)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !r.refresh(instanceID) {
				return
			}
		}
	}
}

// refresh extends the TTL while this instance still holds the key.
// Returns false once leadership is lost.
func (r *RedisLeaderElection) refresh(instanceID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	luaScript := `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("EXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `

	result, err := r.client.Eval(ctx, luaScript, []string{leaderKey},
		instanceID, int(r.ttl.Seconds())).Result()
	if err != nil {
		return false
	}

	return result.(int64) == 1
}

// clearStop resets the stop field so a later BecomeLeader can restart
// the heartbeat, but only if no newer heartbeat has replaced it.
func (r *RedisLeaderElection) clearStop(stop chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stop == stop {
		r.stop = nil
	}
}
