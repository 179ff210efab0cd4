// Package redis keeps the session record under one Redis key and announces
// every change on a pub/sub channel so that other processes can rehydrate.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/lunar-session/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	_ store.Store              = (*Store)(nil)
	_ store.Watcher            = (*Store)(nil)
	_ store.ConditionalClearer = (*Store)(nil)
)

type Store struct {
	cli *redis.Client
	key string
}

// New connects to url and keeps the record at key.
func New(ctx context.Context, url, key string) (*Store, error) {
	if key == "" {
		return nil, errors.New("redis store: empty key")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{cli: cli, key: key}, nil
}

func (s *Store) Close() error {
	return s.cli.Close()
}

// Channel is the pub/sub channel change notifications are published on.
func (s *Store) Channel() string {
	return s.key + ":changed"
}

func (s *Store) Load(ctx context.Context) (*store.Record, error) {
	data, err := s.cli.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return store.Unmarshal(data)
}

func (s *Store) Save(ctx context.Context, record *store.Record) error {
	data, err := store.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.cli.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	s.publish(ctx)
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.cli.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	s.publish(ctx)
	return nil
}

// ClearIfHolds deletes the key under WATCH so a concurrent write aborts the
// delete instead of being lost.
func (s *Store) ClearIfHolds(ctx context.Context, refreshToken string) (bool, error) {
	cleared := false
	err := s.cli.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, s.key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		record, err := store.Unmarshal(data)
		if err != nil {
			return err
		}
		if record.RefreshToken != refreshToken {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			return nil
		})
		if err == nil {
			cleared = true
		}
		return err
	}, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		// The record changed between GET and DEL, so it no longer holds refreshToken.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis conditional del: %w", err)
	}
	if cleared {
		s.publish(ctx)
	}
	return cleared, nil
}

// publish failures are logged only; the record itself is already stored.
func (s *Store) publish(ctx context.Context) {
	if err := s.cli.Publish(ctx, s.Channel(), "1").Err(); err != nil {
		log.Warn().Err(err).Str("channel", s.Channel()).Msg("Failed to publish session change")
	}
}

func (s *Store) Watch(ctx context.Context, onChange func()) error {
	sub := s.cli.Subscribe(ctx, s.Channel())
	defer sub.Close()

	// Wait for the subscription to be confirmed so no change is missed after Watch starts.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			onChange()
		}
	}
}
