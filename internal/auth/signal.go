// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSignInTimeout is returned when Wait gives up before a sign-in
// arrives. Callers treat it as "proceed without ownership data".
var ErrSignInTimeout = errors.New("auth: timed out waiting for sign-in")

// Signal tracks whether a user has signed in and lets the load
// pipeline wait for that event with a bounded timeout instead of
// polling. Safe for concurrent use.
type Signal struct {
	mu      sync.Mutex
	address string
	done    chan struct{}
}

// NewSignal returns a signal in the signed-out state.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// SignIn records the user's wallet address and releases all waiters.
// Subsequent sign-ins replace the address without re-closing the
// channel.
func (s *Signal) SignIn(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.address = address
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// SignOut clears the address and re-arms the signal so the next load
// waits again.
func (s *Signal) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.address = ""
	select {
	case <-s.done:
		s.done = make(chan struct{})
	default:
	}
}

// Address returns the signed-in wallet address, or "" when signed out.
func (s *Signal) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// SignedIn reports whether a sign-in has been recorded.
func (s *Signal) SignedIn() bool {
	return s.Address() != ""
}

// Wait blocks until a sign-in arrives, the timeout elapses, or the
// context is canceled. It returns the address on success,
// ErrSignInTimeout on timeout, and the context error on cancellation.
func (s *Signal) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return s.Address(), nil
	case <-timer.C:
		return "", ErrSignInTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
