//
// SPDX-License-Identifier: BSD-3-Clause
//
// Adapted from: https://github.com/ooni/probe-engine/blob/v0.23.0/netx/resolver/decoder.go
// Adapted from: https://github.com/golang/go/blob/go1.21.10/src/net/dnsclient_unix.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/dns/dnscore/response.go
//

package dnscookie

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// Additional errors emitted by [ValidateResponseForQuery].
var (
	// ErrInvalidQuery means that the query does not contain a single question.
	ErrInvalidQuery = errors.New("invalid query")
)

// ValidateResponseForQuery validates a DNS response for a given query.
// On success it returns the single validated question from the query.
func ValidateResponseForQuery(query, resp *dns.Msg) (dns.Question, error) {
	q0, _, err := validateResponseForQuery(query, resp)
	return q0, err
}

// validateResponseForQuery is like [ValidateResponseForQuery] but also
// returns the COOKIE option decoded by [ResponseCookie].
func validateResponseForQuery(query, resp *dns.Msg) (dns.Question, *CookieOption, error) {
	// 1. make sure the message is actually a response
	if !resp.Response {
		return dns.Question{}, nil, ErrInvalidResponse
	}

	// 2. make sure the response ID matches the query ID
	if resp.Id != query.Id {
		return dns.Question{}, nil, ErrInvalidResponse
	}

	// 3. make sure the query and the response contains a question
	if len(query.Question) != 1 {
		return dns.Question{}, nil, ErrInvalidQuery
	}
	if len(resp.Question) != 1 {
		return dns.Question{}, nil, ErrInvalidResponse
	}
	resp0 := resp.Question[0]
	query0 := query.Question[0]

	// 4. make sure the question name is correct
	if !responseEqualASCIIName(resp0.Name, query0.Name) {
		return dns.Question{}, nil, ErrInvalidResponse
	}
	if resp0.Qclass != query0.Qclass {
		return dns.Question{}, nil, ErrInvalidResponse
	}
	if resp0.Qtype != query0.Qtype {
		return dns.Question{}, nil, ErrInvalidResponse
	}

	// 5. make sure the response echoes our Client Cookie
	cookie, err := ResponseCookie(query, resp)
	if err != nil {
		return dns.Question{}, nil, err
	}
	return query0, cookie, nil
}

// ResponseCookie returns the COOKIE option of resp, or nil when the server
// did not include one.
//
// RFC 7873 section 5.3 requires discarding a response whose COOKIE option
// is malformed or does not echo the Client Cookie sent in query: in such
// cases this function returns [ErrInvalidResponse].
//
// RFC 7873 allows Server Cookies from 8 to 32 bytes. When the Server Cookie
// is not a 16 byte version 1 cookie, the returned option only contains
// the Client Cookie, since the Server Cookie cannot be represented.
func ResponseCookie(query, resp *dns.Msg) (*CookieOption, error) {
	raw, found := OptionFromMsg(resp)
	if !found {
		return nil, nil
	}
	opt, err := DecodeCookieOption(raw)
	if err != nil {
		if len(raw) < ClientCookieLen+8 || len(raw) > ClientCookieLen+32 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		opt = &CookieOption{}
		copy(opt.Client[:], raw)
	}
	if sent, found := OptionFromMsg(query); found && len(sent) >= ClientCookieLen {
		var cc ClientCookie
		copy(cc[:], sent)
		if cc != opt.Client {
			return nil, fmt.Errorf("%w: client cookie mismatch", ErrInvalidResponse)
		}
	}
	return opt, nil
}

// SPDX-License-Identifier: BSD-3-Clause
//
// Borrowed from Go src/net package.
func responseEqualASCIIName(x, y string) bool {
	if len(x) != len(y) {
		return false
	}
	for i := 0; i < len(x); i++ {
		a := x[i]
		b := y[i]
		if 'A' <= a && a <= 'Z' {
			a += 0x20
		}
		if 'A' <= b && b <= 'Z' {
			b += 0x20
		}
		if a != b {
			return false
		}
	}
	return true
}

// These error messages use the same suffixes used by the Go standard library.
var (
	// ErrInvalidResponse means that the response is not a response message,
	// does not contain a single question matching the query, or does not
	// echo the Client Cookie sent with the query.
	ErrInvalidResponse = errors.New("invalid DNS response")

	// ErrNoName indicates that the server response code is NXDOMAIN.
	ErrNoName = errors.New("no such host")

	// ErrServerMisbehaving indicates that the server response code is
	// neither 0, nor NXDOMAIN, nor SERVFAIL, nor BADCOOKIE.
	ErrServerMisbehaving = errors.New("server misbehaving")

	// ErrServerTemporarilyMisbehaving indicates that the server answer is SERVFAIL.
	//
	// The error message is same as [ErrServerMisbehaving] for compatibility with the
	// Go standard library, which assigns the same error string to both errors.
	ErrServerTemporarilyMisbehaving = errors.New("server misbehaving")

	// ErrBadCookie indicates that the server answer is BADCOOKIE, meaning
	// that the query should be retried with the Server Cookie carried
	// by the response.
	ErrBadCookie = errors.New("bad DNS cookie")
)

// ResponseErrorFromRCODE maps an RCODE inside a valid DNS response
// to an error string using a suffix compatible with the error strings
// returned by [*net.Resolver].
//
// If the RCODE is zero, this function returns nil.
//
// Before invoking this function, make sure the response is valid
// for the request by calling [ValidateResponseForQuery].
func ResponseErrorFromRCODE(resp *dns.Msg) error {
	switch resp.Rcode {
	case dns.RcodeSuccess:
		return nil
	case dns.RcodeNameError:
		return ErrNoName
	case dns.RcodeBadCookie:
		return ErrBadCookie
	case dns.RcodeServerFailure:
		return ErrServerTemporarilyMisbehaving
	default:
		return ErrServerMisbehaving
	}
}

// Response is a DNS response.
//
// Construct a new instance using [ParseResponse].
type Response struct {
	// Query is the original query message.
	Query *dns.Msg

	// Response is the response message.
	Response *dns.Msg

	// Cookie is the COOKIE option sent by the server or nil.
	Cookie *CookieOption
}

// ServerCookie returns the Server Cookie to send with the next
// query to the same server, or nil if there is none.
func (r *Response) ServerCookie() *ServerCookie {
	if r.Cookie == nil {
		return nil
	}
	return r.Cookie.Server
}

// ParseResponse returns a [*Response] given a query and response messages or an
// error if the response message is not valid for the query.
//
// When the error is [ErrBadCookie], the returned [*Response] is not nil, so
// the caller can retry using [*Response.ServerCookie] and [*Query.WithServerCookie].
func ParseResponse(query *dns.Msg, resp *dns.Msg) (*Response, error) {
	_, cookie, err := validateResponseForQuery(query, resp)
	if err != nil {
		return nil, err
	}

	rp := &Response{
		Query:    query,
		Response: resp,
		Cookie:   cookie,
	}
	if err := ResponseErrorFromRCODE(resp); err != nil {
		if errors.Is(err, ErrBadCookie) {
			return rp, err
		}
		return nil, err
	}
	return rp, nil
}
