// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateClientCookie(t *testing.T) {
	seen := make(map[ClientCookie]bool)
	for range 1024 {
		cc := GenerateClientCookie()
		require.False(t, seen[cc], "cookie %s reused", cc)
		seen[cc] = true
	}
}

func TestClientCookieString(t *testing.T) {
	require.Equal(t, "2464c4abcf10c957", mustClientCookie("2464c4abcf10c957").String())
}

func TestDeriveClientCookie(t *testing.T) {
	secret := MustNewSecret(1, mustHex("e5e973e5a6b2a43f48e7dc849e37bfcf"))
	clientIP := netip.MustParseAddr("198.51.100.100")
	serverIP := netip.MustParseAddr("192.0.2.53")

	cc := DeriveClientCookie(secret, clientIP, serverIP)
	require.Equal(t, "9f3aed03ca9ee605", cc.String())

	t.Run("StableForSameInputs", func(t *testing.T) {
		require.Equal(t, cc, DeriveClientCookie(secret, clientIP, serverIP))
		mapped := netip.MustParseAddr("::ffff:198.51.100.100")
		require.Equal(t, cc, DeriveClientCookie(secret, mapped, serverIP))
	})

	t.Run("DependsOnServer", func(t *testing.T) {
		other := netip.MustParseAddr("192.0.2.54")
		require.NotEqual(t, cc, DeriveClientCookie(secret, clientIP, other))
	})

	t.Run("DependsOnClientAddress", func(t *testing.T) {
		other := netip.MustParseAddr("2001:db8::1")
		require.NotEqual(t, cc, DeriveClientCookie(secret, other, serverIP))
	})

	t.Run("DependsOnSecret", func(t *testing.T) {
		require.NotEqual(t, cc, DeriveClientCookie(GenerateSecret(2), clientIP, serverIP))
	})
}
