// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateServerCookieRFC9018Rotation(t *testing.T) {
	before := MustNewSecret(1, mustHex("dd3bdf9344b678b185a6f5cb60fca715"))
	after := MustNewSecret(2, mustHex("445536bcd2513298075a5d379663c962"))
	cc := mustClientCookie("22681ab97d52c298")
	ip := netip.MustParseAddr("2001:db8:220:1:59de:d0f4:8769:82b8")
	received := mustServerCookie("010000005cf7c57926556bd0934c72f8")
	now := time.Unix(1559741961, 0)

	result := ValidateServerCookie(received[:], cc, ip, now, after, before, DefaultWindow)
	require.Equal(t, ResultValidRotated, result)

	result = ValidateServerCookie(received[:], cc, ip, now, before, nil, DefaultWindow)
	require.Equal(t, ResultValid, result)

	result = ValidateServerCookie(received[:], cc, ip, now, after, nil, DefaultWindow)
	require.Equal(t, ResultInvalid, result)
}

func TestPolicyValidate(t *testing.T) {
	current := MustNewSecret(2, mustHex("445536bcd2513298075a5d379663c962"))
	previous := MustNewSecret(1, mustHex("dd3bdf9344b678b185a6f5cb60fca715"))
	unrelated := MustNewSecret(7, mustHex("000102030405060708090a0b0c0d0e0f"))
	cc := mustClientCookie("2464c4abcf10c957")
	ip := netip.MustParseAddr("198.51.100.100")
	now := time.Unix(1700000000, 0)
	policy := NewPolicy()

	tests := []struct {
		name     string
		received func() []byte
		secrets  SecretPair
		expected ValidationResult
	}{
		{
			name:     "Absent",
			received: func() []byte { return nil },
			secrets:  SecretPair{Current: current},
			expected: ResultAbsent,
		},

		{
			name: "ValidCurrent",
			received: func() []byte {
				sc := policy.Construct(current, cc, ip, now.Add(-time.Minute))
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultValid,
		},

		{
			name: "ValidPrevious",
			received: func() []byte {
				sc := policy.Construct(previous, cc, ip, now.Add(-time.Minute))
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultValidRotated,
		},

		{
			name: "PreviousSkippedWhenAbsent",
			received: func() []byte {
				sc := policy.Construct(previous, cc, ip, now)
				return sc[:]
			},
			secrets:  SecretPair{Current: current},
			expected: ResultInvalid,
		},

		{
			name: "ExpiredCurrent",
			received: func() []byte {
				sc := policy.Construct(current, cc, ip, now.Add(-2*time.Hour))
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultExpired,
		},

		{
			name: "ExpiredPrevious",
			received: func() []byte {
				sc := policy.Construct(previous, cc, ip, now.Add(-2*time.Hour))
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultExpired,
		},

		{
			name: "TooFarInTheFuture",
			received: func() []byte {
				sc := policy.Construct(current, cc, ip, now.Add(time.Hour))
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultExpired,
		},

		{
			name: "UnknownSecret",
			received: func() []byte {
				sc := policy.Construct(unrelated, cc, ip, now)
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultInvalid,
		},

		{
			name: "UnknownSecretAndStale",
			received: func() []byte {
				sc := policy.Construct(unrelated, cc, ip, now.Add(-2*time.Hour))
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultInvalid,
		},

		{
			name: "DifferentClientCookie",
			received: func() []byte {
				sc := policy.Construct(current, mustClientCookie("fc93fc62807ddb86"), ip, now)
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultInvalid,
		},

		{
			name: "DifferentClientIP",
			received: func() []byte {
				sc := policy.Construct(current, cc, netip.MustParseAddr("198.51.100.101"), now)
				return sc[:]
			},
			secrets:  SecretPair{Current: current, Previous: previous},
			expected: ResultInvalid,
		},

		{
			name: "NonzeroReservedIsHashed",
			received: func() []byte {
				sc := policy.Construct(current, cc, ip, now)
				sc[2] = 0xff
				return sc[:]
			},
			secrets:  SecretPair{Current: current},
			expected: ResultInvalid,
		},

		{
			name: "UnknownVersion",
			received: func() []byte {
				sc := policy.Construct(current, cc, ip, now)
				sc[0] = 2
				return sc[:]
			},
			secrets:  SecretPair{Current: current},
			expected: ResultMalformed,
		},

		{
			name:     "TooShort",
			received: func() []byte { return make([]byte, 8) },
			secrets:  SecretPair{Current: current},
			expected: ResultMalformed,
		},

		{
			name: "TooLong",
			received: func() []byte {
				sc := policy.Construct(current, cc, ip, now)
				return append(sc[:], 0)
			},
			secrets:  SecretPair{Current: current},
			expected: ResultMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := policy.Validate(tt.received(), cc, ip, now, tt.secrets)
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestPolicyValidateWindowBoundaries(t *testing.T) {
	secret := GenerateSecret(1)
	cc := GenerateClientCookie()
	ip := netip.MustParseAddr("192.0.2.1")
	now := time.Unix(1700000000, 0)
	policy := NewPolicy()
	secrets := SecretPair{Current: secret}

	tests := []struct {
		name     string
		offset   time.Duration
		expected ValidationResult
	}{
		{"OldestAccepted", -DefaultWindow, ResultValid},
		{"OneSecondTooOld", -DefaultWindow - time.Second, ResultExpired},
		{"Now", 0, ResultValid},
		{"NewestAccepted", DefaultClockSkew, ResultValid},
		{"OneSecondTooNew", DefaultClockSkew + time.Second, ResultExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := policy.Construct(secret, cc, ip, now.Add(tt.offset))
			require.Equal(t, tt.expected, policy.Validate(sc[:], cc, ip, now, secrets))
		})
	}

	t.Run("CustomWindow", func(t *testing.T) {
		sc := policy.Construct(secret, cc, ip, now.Add(-10*time.Second))
		require.Equal(t, ResultValid, ValidateServerCookie(sc[:], cc, ip, now, secret, nil, 10*time.Second))
		require.Equal(t, ResultExpired, ValidateServerCookie(sc[:], cc, ip, now, secret, nil, 9*time.Second))
	})
}

func TestPolicyValidateTimestampWraparound(t *testing.T) {
	secret := GenerateSecret(1)
	cc := GenerateClientCookie()
	ip := netip.MustParseAddr("192.0.2.1")
	policy := NewPolicy()

	// the 32 bit timestamp wraps around early in 2106
	now := time.Unix(1<<32+10, 0)
	sc := policy.Construct(secret, cc, ip, now.Add(-20*time.Second))
	require.Equal(t, uint32(1<<32-10), sc.Timestamp())
	require.Equal(t, ResultValid, policy.Validate(sc[:], cc, ip, now, SecretPair{Current: secret}))
}

func TestPolicyValidateMaxWindow(t *testing.T) {
	secret := GenerateSecret(1)
	cc := GenerateClientCookie()
	ip := netip.MustParseAddr("192.0.2.1")
	now := time.Unix(1700000000, 0)
	secrets := SecretPair{Current: secret}

	policy := NewPolicy()
	policy.Window = 100 * 365 * 24 * time.Hour
	policy.ClockSkew = policy.Window

	t.Run("OldestAccepted", func(t *testing.T) {
		sc := policy.Construct(secret, cc, ip, now.Add(-MaxWindow))
		require.Equal(t, ResultValid, policy.Validate(sc[:], cc, ip, now, secrets))
	})

	// a timestamp exactly half the serial range away is ambiguous
	t.Run("HalfRangeRejected", func(t *testing.T) {
		sc := policy.Construct(secret, cc, ip, now.Add(-(1<<31)*time.Second))
		require.Equal(t, ResultExpired, policy.Validate(sc[:], cc, ip, now, secrets))
	})
}

func TestPolicyValidateTamperDetection(t *testing.T) {
	secret := GenerateSecret(1)
	previous := GenerateSecret(0)
	cc := GenerateClientCookie()
	ip := netip.MustParseAddr("2001:db8::53")
	now := time.Now()
	secrets := SecretPair{Current: secret, Previous: previous}
	policy := NewPolicy()
	sc := policy.Construct(secret, cc, ip, now)
	require.Equal(t, ResultValid, policy.Validate(sc[:], cc, ip, now, secrets))

	for idx := range ServerCookieLen {
		for bit := range 8 {
			tampered := sc
			tampered[idx] ^= 1 << bit
			expected := ResultInvalid
			if idx == 0 {
				// flipping a version bit yields an unrecognized version
				expected = ResultMalformed
			}
			require.Equal(t, expected, policy.Validate(tampered[:], cc, ip, now, secrets),
				"byte %d bit %d", idx, bit)
		}
	}
}

func TestPolicyValidateHMACSHA256(t *testing.T) {
	secret := GenerateSecret(2)
	previous := GenerateSecret(1)
	cc := GenerateClientCookie()
	ip := netip.MustParseAddr("192.0.2.1")
	now := time.Now()
	policy := NewPolicy()
	policy.Algorithm = AlgorithmHMACSHA256
	secrets := SecretPair{Current: secret, Previous: previous}

	sc := policy.Construct(secret, cc, ip, now)
	require.Equal(t, ResultValid, policy.Validate(sc[:], cc, ip, now, secrets))

	sc = policy.Construct(previous, cc, ip, now)
	require.Equal(t, ResultValidRotated, policy.Validate(sc[:], cc, ip, now, secrets))

	// a cookie built with another algorithm does not validate
	sc = ConstructServerCookie(secret, cc, ip, now)
	require.Equal(t, ResultInvalid, policy.Validate(sc[:], cc, ip, now, secrets))
}

func TestPolicyNeedsRenewal(t *testing.T) {
	secret := GenerateSecret(1)
	cc := GenerateClientCookie()
	ip := netip.MustParseAddr("192.0.2.1")
	now := time.Unix(1700000000, 0)
	policy := NewPolicy()

	young := policy.Construct(secret, cc, ip, now.Add(-DefaultRenewAfter))
	require.False(t, policy.NeedsRenewal(young, now))

	old := policy.Construct(secret, cc, ip, now.Add(-DefaultRenewAfter-time.Second))
	require.True(t, policy.NeedsRenewal(old, now))
}

func TestValidationResult(t *testing.T) {
	tests := []struct {
		result   ValidationResult
		name     string
		accepted bool
	}{
		{ResultAbsent, "absent", false},
		{ResultValid, "valid", true},
		{ResultValidRotated, "valid-rotated", true},
		{ResultExpired, "expired", false},
		{ResultInvalid, "invalid", false},
		{ResultMalformed, "malformed", false},
		{ValidationResult(100), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.name, tt.result.String())
			require.Equal(t, tt.accepted, tt.result.Accepted())
		})
	}
}
