// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// ServerOption is an option for [NewServer].
type ServerOption func(s *Server)

// WithPolicy configures the [*Policy]. The default is [NewPolicy].
func WithPolicy(policy *Policy) ServerOption {
	return func(s *Server) {
		s.policy = policy
	}
}

// WithLogger configures the [SLogger]. The default is [DefaultSLogger].
func WithLogger(logger SLogger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTimeNow configures the clock. The default is [time.Now].
func WithTimeNow(fn func() time.Time) ServerOption {
	return func(s *Server) {
		s.timeNow = fn
	}
}

// Server applies Server Cookie validation to incoming queries.
//
// Construct using [NewServer]. A Server is safe for concurrent use.
type Server struct {
	logger  SLogger
	policy  *Policy
	store   *SecretStore
	timeNow func() time.Time
}

// NewServer constructs a new [*Server] using the given [*SecretStore].
func NewServer(store *SecretStore, options ...ServerOption) *Server {
	s := &Server{
		logger:  DefaultSLogger,
		policy:  NewPolicy(),
		store:   store,
		timeNow: time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Verdict is the outcome of [*Server.Check].
type Verdict struct {
	// Present is true when the query contained a COOKIE option.
	Present bool

	// Result is the validation result. It is [ResultAbsent] when the
	// query contained no COOKIE option or only a Client Cookie.
	Result ValidationResult

	// Cookie is the COOKIE option to include into the response. It is
	// nil when the query did not contain a usable Client Cookie.
	Cookie *CookieOption
}

// Check validates the COOKIE option of query sent by clientIP.
//
// Both the validation and the construction of the response cookie use
// the same [SecretPair] snapshot, so a concurrent rotation is observed
// either entirely or not at all.
func (s *Server) Check(query *dns.Msg, clientIP netip.Addr) *Verdict {
	v := s.check(query, clientIP)
	s.logger.Debug(
		"dnscookie: checked query",
		"clientIP", clientIP.String(),
		"present", v.Present,
		"result", v.Result.String(),
		"rcode", dns.RcodeToString[v.Rcode()],
	)
	return v
}

func (s *Server) check(query *dns.Msg, clientIP netip.Addr) *Verdict {
	// 1. handle the case of clients not supporting cookies
	raw, found := OptionFromMsg(query)
	if !found {
		return &Verdict{Present: false, Result: ResultAbsent}
	}

	// 2. parse the option taking into account that RFC 7873 allows
	// for Server Cookies between 8 and 32 bytes, which we cannot validate
	// but which still carry a usable Client Cookie.
	v := &Verdict{Present: true}
	now := s.timeNow()
	secrets := s.store.Snapshot()
	opt, err := DecodeCookieOption(raw)
	switch {
	case err == nil:
		var received []byte
		if opt.Server != nil {
			received = opt.Server[:]
		}
		v.Result = s.policy.Validate(received, opt.Client, clientIP, now, secrets)

	case len(raw) >= ClientCookieLen+8 && len(raw) <= ClientCookieLen+32:
		opt = &CookieOption{}
		copy(opt.Client[:], raw)
		v.Result = ResultMalformed

	default:
		v.Result = ResultMalformed
		return v
	}

	// 3. echo a valid cookie unless it is getting old, otherwise mint a new one
	if v.Result == ResultValid && !s.policy.NeedsRenewal(*opt.Server, now) {
		v.Cookie = opt.Clone()
		return v
	}
	sc := s.policy.Construct(secrets.Current, opt.Client, clientIP, now)
	v.Cookie = &CookieOption{Client: opt.Client, Server: &sc}
	return v
}

// AnswerAllowed returns whether the query may receive a full answer.
//
// This is the case for valid cookies and for clients that do not
// support cookies at all.
func (v *Verdict) AnswerAllowed() bool {
	return v.Rcode() == dns.RcodeSuccess
}

// Rcode returns the response code mandated by the verdict.
//
// It is [dns.RcodeFormatError] for a COOKIE option without a usable
// Client Cookie and [dns.RcodeBadCookie] for cookies that are not
// [ResultValid] or [ResultValidRotated].
func (v *Verdict) Rcode() int {
	switch {
	case !v.Present:
		return dns.RcodeSuccess
	case v.Cookie == nil:
		return dns.RcodeFormatError
	case v.Result.Accepted():
		return dns.RcodeSuccess
	default:
		return dns.RcodeBadCookie
	}
}

// Apply adds the response COOKIE option to resp. When the answer is not
// allowed, it also sets the response code and removes the answer and the
// authority sections, so the client retries using the new cookie.
func (v *Verdict) Apply(resp *dns.Msg) {
	if v.Cookie != nil {
		SetCookieOption(resp, v.Cookie)
	}
	if rcode := v.Rcode(); rcode != dns.RcodeSuccess {
		resp.Rcode = rcode
		resp.Answer = nil
		resp.Ns = nil
	}
}
