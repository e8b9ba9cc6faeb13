// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrSecretRotation indicates that a secret cannot be installed into a [*SecretStore].
var ErrSecretRotation = errors.New("dnscookie: invalid secret rotation")

// SecretPair is an immutable snapshot of the secrets held by a [*SecretStore].
type SecretPair struct {
	// Current is the secret used to construct new cookies.
	Current *Secret

	// Previous is the secret in use before the last rotation or nil
	// when no rotation has occurred yet.
	Previous *Secret
}

// StoreOption is an option for [NewSecretStore].
type StoreOption func(ss *SecretStore)

// WithStoreLogger configures the [SLogger] used to log rotations.
func WithStoreLogger(logger SLogger) StoreOption {
	return func(ss *SecretStore) {
		ss.logger = logger
	}
}

// SecretStore holds the current and previous server secrets.
//
// Readers always observe a complete [SecretPair]: rotation replaces the
// whole pair with a single atomic store and never mutates it in place.
//
// Construct using [NewSecretStore].
type SecretStore struct {
	logger SLogger
	pair   atomic.Pointer[SecretPair]
}

// NewSecretStore returns a new [*SecretStore] whose current secret is initial.
func NewSecretStore(initial *Secret, options ...StoreOption) (*SecretStore, error) {
	if initial == nil {
		return nil, fmt.Errorf("%w: nil initial secret", ErrSecretRotation)
	}
	ss := &SecretStore{logger: DefaultSLogger}
	for _, option := range options {
		option(ss)
	}
	ss.pair.Store(&SecretPair{Current: initial})
	ss.logger.Info("dnscookie: secret installed", "secret", initial)
	return ss, nil
}

// Current returns the current secret.
func (ss *SecretStore) Current() *Secret {
	return ss.pair.Load().Current
}

// Previous returns the previous secret or nil.
func (ss *SecretStore) Previous() *Secret {
	return ss.pair.Load().Previous
}

// Snapshot returns both secrets as observed at a single point in time.
//
// Callers that need both secrets must use Snapshot rather than calling
// [*SecretStore.Current] and [*SecretStore.Previous] separately, since a
// rotation may happen between the two calls.
func (ss *SecretStore) Snapshot() SecretPair {
	return *ss.pair.Load()
}

// Rotate installs next as the current secret and demotes the current
// secret to previous. The previous secret is discarded.
//
// The ID of next must be strictly greater than the ID of the current secret.
func (ss *SecretStore) Rotate(next *Secret) error {
	if next == nil {
		return fmt.Errorf("%w: nil secret", ErrSecretRotation)
	}
	for {
		old := ss.pair.Load()
		if next.ID <= old.Current.ID {
			return fmt.Errorf("%w: secret ID %d is not greater than current ID %d",
				ErrSecretRotation, next.ID, old.Current.ID)
		}
		pair := &SecretPair{Current: next, Previous: old.Current}
		if ss.pair.CompareAndSwap(old, pair) {
			ss.logger.Info("dnscookie: secret rotated", "current", next, "previous", old.Current)
			return nil
		}
	}
}
