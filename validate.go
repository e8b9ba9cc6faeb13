// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"crypto/subtle"
	"net/netip"
	"time"
)

// ValidationResult is the outcome of validating a received Server Cookie.
type ValidationResult int

const (
	// ResultAbsent means that the query did not carry a Server Cookie.
	ResultAbsent = ValidationResult(iota)

	// ResultValid means that the cookie was constructed with the current
	// secret and its timestamp is fresh.
	ResultValid

	// ResultValidRotated means that the cookie was constructed with the
	// previous secret and its timestamp is fresh. Reply with a cookie
	// constructed with the current secret.
	ResultValidRotated

	// ResultExpired means that the hash is correct but the timestamp
	// is outside of the freshness window.
	ResultExpired

	// ResultInvalid means that the hash does not match any known secret.
	ResultInvalid

	// ResultMalformed means that the cookie has the wrong length or
	// an unrecognized version.
	ResultMalformed
)

// String implements [fmt.Stringer].
func (r ValidationResult) String() string {
	switch r {
	case ResultAbsent:
		return "absent"
	case ResultValid:
		return "valid"
	case ResultValidRotated:
		return "valid-rotated"
	case ResultExpired:
		return "expired"
	case ResultInvalid:
		return "invalid"
	case ResultMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Accepted returns true for [ResultValid] and [ResultValidRotated].
func (r ValidationResult) Accepted() bool {
	return r == ResultValid || r == ResultValidRotated
}

const (
	// DefaultWindow is the default maximum age of a Server Cookie.
	DefaultWindow = time.Hour

	// DefaultClockSkew is the default tolerance for timestamps in the future.
	DefaultClockSkew = 5 * time.Minute

	// DefaultRenewAfter is the default age after which a valid Server Cookie is replaced.
	DefaultRenewAfter = 30 * time.Minute

	// MaxWindow is the largest usable Window or ClockSkew. Serial number
	// arithmetic on the 32 bit timestamp cannot tell ages beyond it apart.
	MaxWindow = (1<<31 - 1) * time.Second
)

// Policy contains the parameters used to construct and validate Server Cookies.
//
// Construct using [NewPolicy] or set all the fields.
//
// Window and ClockSkew must stay below 2^31 seconds (about 68 years), the
// range of the serial number arithmetic on the timestamp. Larger values
// are treated as [MaxWindow].
type Policy struct {
	// Algorithm is the hash algorithm.
	Algorithm Algorithm

	// Window is how far in the past a timestamp may be.
	Window time.Duration

	// ClockSkew is how far in the future a timestamp may be.
	ClockSkew time.Duration

	// RenewAfter is the age after which a valid cookie should be reissued.
	RenewAfter time.Duration
}

// NewPolicy constructs a new [*Policy] with the RFC 9018 defaults.
func NewPolicy() *Policy {
	return &Policy{
		Algorithm:  DefaultAlgorithm,
		Window:     DefaultWindow,
		ClockSkew:  DefaultClockSkew,
		RenewAfter: DefaultRenewAfter,
	}
}

// Construct returns the [ServerCookie] for the given inputs using the policy algorithm.
func (p *Policy) Construct(secret *Secret, cc ClientCookie, ip netip.Addr, now time.Time) ServerCookie {
	return p.Algorithm.construct(secret, cc, ip, now)
}

// Validate classifies the received Server Cookie.
//
// The hash is recomputed from the version, reserved and timestamp fields
// as received, under both the current and the previous secret, and compared
// in constant time. The freshness of the timestamp only selects between the
// outcomes of a successful match. Every input maps to a [ValidationResult].
//
// The current secret MUST NOT be nil.
func (p *Policy) Validate(received []byte, cc ClientCookie, ip netip.Addr,
	now time.Time, secrets SecretPair) ValidationResult {
	// 1. handle first contact and structural problems
	if len(received) == 0 {
		return ResultAbsent
	}
	if len(received) != ServerCookieLen || received[0] != Version1 {
		return ResultMalformed
	}
	header, hash := received[:serverCookieHeaderLen], received[serverCookieHeaderLen:]

	// 2. always compute both hashes so timing does not reveal which matched
	previous, hasPrevious := secrets.Previous, 1
	if previous == nil {
		previous, hasPrevious = secrets.Current, 0
	}
	hc := p.Algorithm.hash(secrets.Current, cc, ip, header)
	hp := p.Algorithm.hash(previous, cc, ip, header)
	matchCurrent := subtle.ConstantTimeCompare(hc[:], hash)
	matchPrevious := subtle.ConstantTimeCompare(hp[:], hash) & hasPrevious

	// 3. classify
	var sc ServerCookie
	copy(sc[:], received)
	fresh := p.fresh(sc, now)
	switch {
	case matchCurrent == 1 && fresh:
		return ResultValid
	case matchPrevious == 1 && fresh:
		return ResultValidRotated
	case matchCurrent|matchPrevious == 1:
		return ResultExpired
	default:
		return ResultInvalid
	}
}

// NeedsRenewal returns whether the cookie is older than RenewAfter.
func (p *Policy) NeedsRenewal(sc ServerCookie, now time.Time) bool {
	return cookieAge(sc, now) > int64(p.RenewAfter/time.Second)
}

// fresh returns whether the timestamp is within [now - Window, now + ClockSkew].
func (p *Policy) fresh(sc ServerCookie, now time.Time) bool {
	age := cookieAge(sc, now)
	window := min(p.Window, MaxWindow)
	skew := min(p.ClockSkew, MaxWindow)
	return age <= int64(window/time.Second) && -age <= int64(skew/time.Second)
}

// cookieAge returns now minus the cookie timestamp in seconds using
// RFC 1982 serial number arithmetic, so the result is correct across the
// 2106 wrap of the 32 bit timestamp. Negative values are in the future.
func cookieAge(sc ServerCookie, now time.Time) int64 {
	return int64(int32(uint32(now.Unix()) - sc.Timestamp()))
}

// ValidateServerCookie validates the received Server Cookie using
// [DefaultAlgorithm], [DefaultClockSkew] and the given window.
//
// The previous secret may be nil, in which case only current is tried.
func ValidateServerCookie(received []byte, cc ClientCookie, ip netip.Addr, now time.Time,
	current, previous *Secret, window time.Duration) ValidationResult {
	policy := NewPolicy()
	policy.Window = window
	secrets := SecretPair{Current: current, Previous: previous}
	return policy.Validate(received, cc, ip, now, secrets)
}
