// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// OptionCode is the EDNS(0) option code of the COOKIE option.
const OptionCode = dns.EDNS0COOKIE

// ErrMalformedOption indicates that a COOKIE option payload has an invalid length.
var ErrMalformedOption = errors.New("dnscookie: malformed cookie option")

// CookieOption is the payload of the COOKIE option.
type CookieOption struct {
	// Client is the Client Cookie.
	Client ClientCookie

	// Server is the OPTIONAL Server Cookie.
	Server *ServerCookie
}

// Clone returns a deep copy of the option.
func (opt *CookieOption) Clone() *CookieOption {
	out := &CookieOption{Client: opt.Client}
	if opt.Server != nil {
		sc := *opt.Server
		out.Server = &sc
	}
	return out
}

// DecodeCookieOption parses a COOKIE option payload.
//
// The payload must be 8 bytes long (Client Cookie only) or 24 bytes long
// (Client Cookie followed by a version 1 Server Cookie). Other lengths
// cause an [ErrMalformedOption] error. This function does not check the
// Server Cookie version: that is a job for the validator.
func DecodeCookieOption(data []byte) (*CookieOption, error) {
	switch len(data) {
	case ClientCookieLen:
		opt := &CookieOption{}
		copy(opt.Client[:], data)
		return opt, nil

	case ClientCookieLen + ServerCookieLen:
		opt := &CookieOption{Server: &ServerCookie{}}
		copy(opt.Client[:], data[:ClientCookieLen])
		copy(opt.Server[:], data[ClientCookieLen:])
		return opt, nil

	default:
		return nil, fmt.Errorf("%w: length %d", ErrMalformedOption, len(data))
	}
}

// EncodeCookieOption serializes a COOKIE option payload.
func EncodeCookieOption(opt *CookieOption) []byte {
	out := make([]byte, 0, ClientCookieLen+ServerCookieLen)
	out = append(out, opt.Client[:]...)
	if opt.Server != nil {
		out = append(out, opt.Server[:]...)
	}
	return out
}

// OptionFromMsg returns the raw payload of the first COOKIE option in msg.
//
// The found return value is false when msg does not contain any
// COOKIE option. When the option is present but miekg/dns stored a
// value that is not valid hex, data is nil and found is true.
func OptionFromMsg(msg *dns.Msg) (data []byte, found bool) {
	opt := msg.IsEdns0()
	if opt == nil {
		return nil, false
	}
	for _, option := range opt.Option {
		cookie, ok := option.(*dns.EDNS0_COOKIE)
		if !ok {
			continue
		}
		raw, err := hex.DecodeString(cookie.Cookie)
		if err != nil {
			return nil, true
		}
		return raw, true
	}
	return nil, false
}

// StripCookieOption removes all the COOKIE options from msg.
func StripCookieOption(msg *dns.Msg) {
	opt := msg.IsEdns0()
	if opt == nil {
		return
	}
	options := opt.Option[:0]
	for _, option := range opt.Option {
		if option.Option() == dns.EDNS0COOKIE {
			continue
		}
		options = append(options, option)
	}
	opt.Option = options
}

// SetCookieOption replaces any COOKIE option in msg with the given one,
// adding an OPT RR advertising [dns.DefaultMsgSize] if msg has none.
func SetCookieOption(msg *dns.Msg, cookie *CookieOption) {
	opt := msg.IsEdns0()
	if opt == nil {
		msg.SetEdns0(dns.DefaultMsgSize, false)
		opt = msg.IsEdns0()
	}
	StripCookieOption(msg)
	opt.Option = append(opt.Option, &dns.EDNS0_COOKIE{
		Code:   dns.EDNS0COOKIE,
		Cookie: hex.EncodeToString(EncodeCookieOption(cookie)),
	})
}
