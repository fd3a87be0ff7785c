// Copyright 2026 The ScoutZone Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redis provides the Redis-backed session side-store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scoutzone/scoutzone/internal/token"
)

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
}

// SideStore maps live access tokens to their refresh tokens. GETDEL makes
// consuming a refresh token atomic, so a stolen or replayed pair can use
// it at most once.
type SideStore struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg Config) (*SideStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &SideStore{client: client}, nil
}

// Set stores a key with a TTL
func (s *SideStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session key: %w", err)
	}
	return nil
}

// Get returns the value for a key
func (s *SideStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", token.ErrNoSession
		}
		return "", fmt.Errorf("failed to get session key: %w", err)
	}
	return val, nil
}

// GetDel atomically returns and removes the value for a key
func (s *SideStore) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", token.ErrNoSession
		}
		return "", fmt.Errorf("failed to consume session key: %w", err)
	}
	return val, nil
}

// Del removes a key
func (s *SideStore) Del(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}
	if n == 0 {
		return token.ErrNoSession
	}
	return nil
}

// Close closes the underlying client
func (s *SideStore) Close() error {
	return s.client.Close()
}
