// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"net/netip"
	"time"
)

const (
	// ServerCookieLen is the length in bytes of a version 1 Server Cookie.
	ServerCookieLen = 16

	// Version1 is the only Server Cookie version defined by RFC 9018.
	Version1 = 1

	// serverCookieHeaderLen is the length of version, reserved and timestamp.
	serverCookieHeaderLen = 8
)

// ServerCookie is a version 1 Server Cookie:
//
//	Octet  0:     Version = 1
//	Octets 1-3:   Reserved = 0
//	Octets 4-7:   Timestamp, big-endian seconds since the Unix epoch
//	Octets 8-15:  Hash
type ServerCookie [ServerCookieLen]byte

// Version returns the version field.
func (sc ServerCookie) Version() uint8 {
	return sc[0]
}

// Reserved returns the reserved field.
func (sc ServerCookie) Reserved() [3]byte {
	return [3]byte{sc[1], sc[2], sc[3]}
}

// Timestamp returns the timestamp field.
func (sc ServerCookie) Timestamp() uint32 {
	return binary.BigEndian.Uint32(sc[4:8])
}

// Time returns the timestamp field as a UTC [time.Time].
//
// The timestamp wraps around in 2106 and is compared using serial number
// arithmetic, so the returned value is only meaningful for display.
func (sc ServerCookie) Time() time.Time {
	return time.Unix(int64(sc.Timestamp()), 0).UTC()
}

// Hash returns the hash field.
func (sc ServerCookie) Hash() [8]byte {
	var h [8]byte
	copy(h[:], sc[serverCookieHeaderLen:])
	return h
}

// String returns the hex representation of the cookie.
func (sc ServerCookie) String() string {
	return hex.EncodeToString(sc[:])
}

// Algorithm selects the hash function used to compute the Server Cookie.
//
// All the servers sharing an anycast address must use the same algorithm.
type Algorithm uint8

const (
	// AlgorithmSipHash24 is the RFC 9018 construction:
	//
	//	Hash = SipHash-2-4(ClientCookie | Version | Reserved | Timestamp | ClientIP, Secret)
	//
	// with the 64 bit result serialized in little-endian order.
	AlgorithmSipHash24 = Algorithm(iota)

	// AlgorithmHMACSHA256 computes:
	//
	//	Hash = HMAC-SHA256(Secret, ClientCookie | ClientIP | Version | Reserved | Timestamp)
	//
	// keeping the low-order (trailing) 8 bytes of the MAC.
	AlgorithmHMACSHA256
)

// DefaultAlgorithm is the [Algorithm] used unless otherwise configured.
const DefaultAlgorithm = AlgorithmSipHash24

// String implements [fmt.Stringer].
func (a Algorithm) String() string {
	switch a {
	case AlgorithmSipHash24:
		return "SipHash-2-4"
	case AlgorithmHMACSHA256:
		return "HMAC-SHA256-64"
	default:
		return "unknown"
	}
}

// hash computes the hash field given the first eight bytes of the cookie.
//
// Unknown algorithms fall back to [DefaultAlgorithm].
func (a Algorithm) hash(secret *Secret, cc ClientCookie, ip netip.Addr, header []byte) [8]byte {
	var out [8]byte
	switch a {
	case AlgorithmHMACSHA256:
		mac := hmac.New(sha256.New, secret.key[:])
		mac.Write(cc[:])
		mac.Write(ip.Unmap().AsSlice())
		mac.Write(header)
		sum := mac.Sum(nil)
		copy(out[:], sum[len(sum)-len(out):])

	default:
		input := make([]byte, 0, ClientCookieLen+serverCookieHeaderLen+16)
		input = append(input, cc[:]...)
		input = append(input, header...)
		input = appendAddr(input, ip)
		binary.LittleEndian.PutUint64(out[:], sipHash24(secret, input))
	}
	return out
}

// construct builds a version 1 cookie using the given algorithm.
func (a Algorithm) construct(secret *Secret, cc ClientCookie, ip netip.Addr, now time.Time) ServerCookie {
	var sc ServerCookie
	sc[0] = Version1
	binary.BigEndian.PutUint32(sc[4:8], uint32(now.Unix()))
	h := a.hash(secret, cc, ip, sc[:serverCookieHeaderLen])
	copy(sc[serverCookieHeaderLen:], h[:])
	return sc
}

// ConstructServerCookie returns the [ServerCookie] for the given client
// cookie and client address at the given time using [DefaultAlgorithm].
//
// The result is a pure function of its inputs, so every server sharing the
// secret computes the same cookie. The time is truncated to whole seconds.
func ConstructServerCookie(secret *Secret, cc ClientCookie, ip netip.Addr, now time.Time) ServerCookie {
	return DefaultAlgorithm.construct(secret, cc, ip, now)
}
