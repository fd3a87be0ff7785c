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

// Package memory provides an in-memory session side-store for development
// and tests. Single process only.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/scoutzone/scoutzone/internal/token"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// SideStore is a mutex-guarded map with per-key expiry
type SideStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty store
func New() *SideStore {
	return &SideStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores a key with a TTL
func (s *SideStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns the value for a key
func (s *SideStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", token.ErrNoSession
	}
	return e.value, nil
}

// GetDel atomically returns and removes the value for a key. Exactly one
// of two concurrent callers wins.
func (s *SideStore) GetDel(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", token.ErrNoSession
	}
	delete(s.entries, key)
	return e.value, nil
}

// Del removes a key
func (s *SideStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return token.ErrNoSession
	}
	delete(s.entries, key)
	return nil
}
