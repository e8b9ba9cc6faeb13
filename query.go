//
// SPDX-License-Identifier: BSD-3-Clause
//
// Adapted from: https://github.com/ooni/probe-engine/blob/v0.23.0/netx/resolver/encoder.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/dns/dnscore/query.go
//

package dnscookie

import (
	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

const (
	// QueryFlagDNSSec enables requesting for DNSSEC signatures.
	QueryFlagDNSSec = 1 << iota
)

// QueryMaxResponseSize is the default maximum response size and
// is consistent with what the standard library uses for UDP.
const QueryMaxResponseSize = 1232

// Query is a DNS query carrying a COOKIE option.
//
// Construct using [NewQuery] or set the MANDATORY fields.
type Query struct {
	// Cookie is the OPTIONAL COOKIE option to send.
	//
	// Reuse the same Client Cookie when retrying the query and copy
	// the Server Cookie verbatim from the latest response.
	Cookie *CookieOption

	// Flags OPTIONALLY modify the query flags.
	//
	// Use [QueryFlagDNSSec].
	Flags uint16

	// ID is the OPTIONAL query ID.
	ID uint16

	// MaxSize is the OPTIONAL maximum response size
	// to include in the query using EDNS(0).
	MaxSize uint16

	// Name is the MANDATORY domain name to query.
	Name string

	// Type is the query type.
	Type uint16
}

// NewQuery constructs a new [*Query] with safe defaults.
//
// By default, the query uses a randomized ID, requests recursion, uses
// [QueryMaxResponseSize] as the EDNS(0) maximum response size, and
// carries a fresh Client Cookie generated by [GenerateClientCookie].
func NewQuery(name string, qtype uint16) *Query {
	return &Query{
		Cookie:  &CookieOption{Client: GenerateClientCookie()},
		Name:    name,
		Type:    qtype,
		Flags:   0,
		ID:      dns.Id(),
		MaxSize: QueryMaxResponseSize,
	}
}

// Clone returns a deep copy of the query.
func (q *Query) Clone() *Query {
	out := &Query{
		Name:    q.Name,
		Type:    q.Type,
		Flags:   q.Flags,
		ID:      q.ID,
		MaxSize: q.MaxSize,
	}
	if q.Cookie != nil {
		out.Cookie = q.Cookie.Clone()
	}
	return out
}

// WithServerCookie returns a copy of the query that keeps the same
// Client Cookie and carries the given Server Cookie. A nil sc removes
// the Server Cookie.
//
// When q has no COOKIE option, the copy carries a new Client Cookie from
// [GenerateClientCookie]. A server then cannot match sc against that Client
// Cookie, so retries after BADCOOKIE must use a query that already has one,
// such as the one returned by [NewQuery].
func (q *Query) WithServerCookie(sc *ServerCookie) *Query {
	out := q.Clone()
	if out.Cookie == nil {
		out.Cookie = &CookieOption{Client: GenerateClientCookie()}
	}
	out.Cookie.Server = nil
	if sc != nil {
		value := *sc
		out.Cookie.Server = &value
	}
	return out
}

// NewMsg creates a new [*dns.Msg] from the [*Query].
func (q *Query) NewMsg() (*dns.Msg, error) {
	// IDNA encode the domain name.
	punyName, err := idna.Lookup.ToASCII(q.Name)
	if err != nil {
		return nil, err
	}

	// Ensure the domain name is fully qualified.
	if !dns.IsFqdn(punyName) {
		punyName = dns.Fqdn(punyName)
	}

	// Create the query message.
	msg := new(dns.Msg)
	msg.Id = q.ID
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{
		Name:   punyName,
		Qtype:  q.Type,
		Qclass: dns.ClassINET,
	}}

	// Set the EDNS(0) query options, which we always need
	// since the COOKIE option lives inside the OPT RR.
	msg.SetEdns0(q.MaxSize, q.Flags&QueryFlagDNSSec != 0)
	if q.Cookie != nil {
		SetCookieOption(msg, q.Cookie)
	}

	return msg, nil
}
