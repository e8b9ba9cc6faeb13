// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bassosimone/runtimex"
)

// SecretLen is the length in bytes of a server secret.
const SecretLen = 16

// ErrSecretLength indicates that a secret does not contain exactly [SecretLen] bytes.
//
// This is a configuration error: it surfaces when a secret is ingested, never
// while constructing or validating cookies.
var ErrSecretLength = errors.New("dnscookie: invalid secret length")

// Secret is an immutable 128 bit server secret tagged with its rotation ID.
//
// Construct using [NewSecret], [MustNewSecret], [ParseSecretHex] or [GenerateSecret].
// The key material is not exported and is redacted when printed or logged.
type Secret struct {
	// ID is the rotation identifier (e.g., a counter or an epoch timestamp).
	ID uint64

	key [SecretLen]byte
}

// NewSecret returns a new [*Secret] with a copy of the given key.
func NewSecret(id uint64, key []byte) (*Secret, error) {
	if len(key) != SecretLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSecretLength, len(key), SecretLen)
	}
	s := &Secret{ID: id}
	copy(s.key[:], key)
	return s, nil
}

// MustNewSecret is like [NewSecret] but panics on error.
func MustNewSecret(id uint64, key []byte) *Secret {
	return runtimex.PanicOnError1(NewSecret(id, key))
}

// ParseSecretHex parses a hex encoded key and returns a new [*Secret].
func ParseSecretHex(id uint64, value string) (*Secret, error) {
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("dnscookie: decoding secret: %w", err)
	}
	return NewSecret(id, key)
}

// GenerateSecret returns a new [*Secret] with a random key.
func GenerateSecret(id uint64) *Secret {
	s := &Secret{ID: id}
	runtimex.PanicOnError1(rand.Read(s.key[:]))
	return s
}

// String implements [fmt.Stringer] without revealing the key.
func (s Secret) String() string {
	return fmt.Sprintf("Secret{ID: %d}", s.ID)
}

// GoString implements [fmt.GoStringer] without revealing the key.
func (s Secret) GoString() string {
	return s.String()
}

// LogValue implements [slog.LogValuer] without revealing the key.
func (s Secret) LogValue() slog.Value {
	return slog.GroupValue(slog.Uint64("id", s.ID))
}
