// SPDX-License-Identifier: GPL-3.0-or-later

package dnscookie

import "log/slog"

// SLogger is the structured logger used by [*SecretStore] and [*Server].
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger is the [SLogger] used when none is configured. It discards all the logs.
var DefaultSLogger SLogger = slog.New(slog.DiscardHandler)
