// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package secret

import "github.com/awnumar/memguard"

// Wipe zeros the contents of a byte slice in-place. Use it on every heap
// buffer that held key material, such as the result of Encode. The Go
// garbage collector may have copied the slice before it was wiped, so this
// narrows the exposure window rather than closing it.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}

// WipeAll zeros every slice in bs.
func WipeAll(bs ...[]byte) {
	for _, b := range bs {
		Wipe(b)
	}
}
