// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnscookie implements interoperable DNS Server Cookies.
//
// RFC 7873 leaves the construction of the Server Cookie to each
// implementation, so anycast nodes running different software cannot
// validate each other's cookies. This package implements the common
// construction standardized by RFC 9018: a 16 byte Server Cookie made of
// a version, three reserved bytes, a timestamp and a 64 bit keyed hash.
//
// [ConstructServerCookie] and [ValidateServerCookie] are the core
// algorithm. [*SecretStore] holds the current and previous secret and
// rotates them atomically. [DecodeCookieOption] and [EncodeCookieOption]
// serialize the COOKIE option payload. [GenerateClientCookie] creates the
// resolver-side Client Cookie.
//
// [*Server] applies the validation outcome to [github.com/miekg/dns]
// messages on the server side. [NewQuery] and [ParseResponse] do the
// same on the resolver side.
package dnscookie
