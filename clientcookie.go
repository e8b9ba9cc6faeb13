// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"net/netip"

	"github.com/bassosimone/runtimex"
	"github.com/dchest/siphash"
)

// ClientCookieLen is the length in bytes of a Client Cookie.
const ClientCookieLen = 8

// ClientCookie is the 8 byte cookie a resolver sends with its queries.
type ClientCookie [ClientCookieLen]byte

// String returns the hex representation of the cookie.
func (cc ClientCookie) String() string {
	return hex.EncodeToString(cc[:])
}

// GenerateClientCookie returns a new random [ClientCookie].
//
// Use a fresh cookie for each unrelated query and reuse the same
// cookie when retrying a query.
func GenerateClientCookie() ClientCookie {
	var cc ClientCookie
	runtimex.PanicOnError1(rand.Read(cc[:]))
	return cc
}

// DeriveClientCookie returns the [ClientCookie] computed as SipHash-2-4 of
// the client address followed by the server address keyed with the client
// secret, as suggested by RFC 7873 section 4.1.
//
// The cookie is stable for a given client/server pair until the client
// secret or the client address changes.
func DeriveClientCookie(secret *Secret, clientIP, serverIP netip.Addr) ClientCookie {
	input := appendAddr(nil, clientIP)
	input = appendAddr(input, serverIP)
	var cc ClientCookie
	binary.LittleEndian.PutUint64(cc[:], sipHash24(secret, input))
	return cc
}

func sipHash24(secret *Secret, input []byte) uint64 {
	k0 := binary.LittleEndian.Uint64(secret.key[:8])
	k1 := binary.LittleEndian.Uint64(secret.key[8:])
	return siphash.Hash(k0, k1, input)
}

// appendAddr appends 4 bytes for IPv4 and IPv4-mapped IPv6 addresses
// and 16 bytes for IPv6 addresses. The zero Addr appends nothing.
func appendAddr(b []byte, addr netip.Addr) []byte {
	return append(b, addr.Unmap().AsSlice()...)
}
