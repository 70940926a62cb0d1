package services

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LocalSignaler delivers signals inside one process.
type LocalSignaler struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

func NewLocalSignaler() *LocalSignaler {
	return &LocalSignaler{watchers: map[string]map[chan struct{}]struct{}{}}
}

func (s *LocalSignaler) Signal(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *LocalSignaler) Watch(_ context.Context, key string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = map[chan struct{}]struct{}{}
	}
	s.watchers[key][ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.watchers[key], ch)
		if len(s.watchers[key]) == 0 {
			delete(s.watchers, key)
		}
		s.mu.Unlock()
	}, nil
}

// RedisSignaler fans signals out through redis pub/sub so that a status
// message handled by one backend instance wakes a query waiting in another.
type RedisSignaler struct {
	rdb    *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewRedisSignaler(rdb *redis.Client, log zerolog.Logger) *RedisSignaler {
	return &RedisSignaler{rdb: rdb, prefix: "flyvemdm:signal:", log: log}
}

func (s *RedisSignaler) Signal(ctx context.Context, key string) {
	if err := s.rdb.Publish(ctx, s.prefix+key, "1").Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis signal publish failed")
	}
}

func (s *RedisSignaler) Watch(ctx context.Context, key string) (<-chan struct{}, func(), error) {
	ps := s.rdb.Subscribe(ctx, s.prefix+key)
	// wait for the subscription confirmation so no signal is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}, nil
}
