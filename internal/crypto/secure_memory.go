// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/subtle"
	"runtime"
)

// ZeroBytes overwrites b with zeros in a way the compiler will not elide.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// WithSecret calls fn with secret and zeroes secret afterwards, whatever fn
// returns. fn must not retain the slice.
func WithSecret(secret []byte, fn func([]byte) error) error {
	defer ZeroBytes(secret)
	return fn(secret)
}
