// pkg/memcache/idempotency_keys.go
package mem

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInFlight is returned when another request currently holds the key.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

type IdempotencyStore interface {
	// Begin claims key for ttl. When a completed response is stored under key
	// it is returned with found=true and the claim is not taken.
	Begin(ctx context.Context, key string, ttl time.Duration) (cached []byte, found bool, err error)

	// Complete stores the response for key, replacing the claim.
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error

	// Release drops an unfinished claim so the request can be retried.
	Release(ctx context.Context, key string) error
}

type entry struct {
	response  []byte
	done      bool
	expiresAt time.Time
}

type IdempotencyKeys struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

var _ IdempotencyStore = (*IdempotencyKeys)(nil)

func NewIdempotencyKeys() *IdempotencyKeys {
	return &IdempotencyKeys{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *IdempotencyKeys) Begin(_ context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.data[key]; ok {
		if now.Before(e.expiresAt) {
			if !e.done {
				return nil, false, ErrInFlight
			}
			return e.response, true, nil
		}
		delete(s.data, key) // cleanup expired
	}

	s.data[key] = entry{expiresAt: now.Add(ttl)}
	return nil, false, nil
}

func (s *IdempotencyKeys) Complete(_ context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry{
		response:  response,
		done:      true,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *IdempotencyKeys) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && !e.done {
		delete(s.data, key)
	}
	return nil
}
