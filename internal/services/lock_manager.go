package services

import (
	"context"
	"time"

	"auction-house/internal/domain"
	"auction-house/pkg/logger"

	"github.com/google/uuid"
)

const releaseTimeout = 2 * time.Second

// AuctionLockKey names the lock serializing all mutations of one
// auction; bid acceptance and the lifecycle sweep share this namespace.
func AuctionLockKey(auctionID string) string {
	return "auction:" + auctionID
}

// LockManager wraps the coordination store into the acquire/release
// protocol. Tokens are caller-generated so a holder whose TTL expired
// can never release a lock someone else has since acquired.
type LockManager struct {
	store      domain.CoordinationStore
	ttl        time.Duration
	attempts   int
	retryDelay time.Duration
	log        logger.Logger
}

func NewLockManager(store domain.CoordinationStore, ttl time.Duration,
	attempts int, retryDelay time.Duration, log logger.Logger) *LockManager {
	if attempts < 1 {
		attempts = 1
	}
	return &LockManager{
		store:      store,
		ttl:        ttl,
		attempts:   attempts,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Acquire tries a bounded number of times and then reports
// ErrLockContended. Contention is a routine outcome for the caller,
// not a fault.
func (m *LockManager) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()

	for attempt := 0; attempt < m.attempts; attempt++ {
		ok, err := m.store.SetIfAbsent(ctx, key, token, m.ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		if attempt < m.attempts-1 {
			select {
			case <-time.After(m.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", domain.ErrLockContended
}

func (m *LockManager) Release(ctx context.Context, key, token string) error {
	ok, err := m.store.DeleteIfMatches(ctx, key, token)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrLockNotOwned
	}
	return nil
}

// WithLock runs fn while holding the lock and releases it on every
// exit path. Release uses a fresh context so a cancelled caller still
// cleans up; a failed release is logged and left to the TTL.
func (m *LockManager) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := m.Release(releaseCtx, key, token); err != nil {
			m.log.Warn("Failed to release lock", "key", key, "error", err)
		}
	}()

	return fn(ctx)
}
