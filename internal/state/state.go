// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package state defines the layout persisted in authorized buffer accounts.
//
// An authorized buffer is a 9-byte header followed by the payload:
//
//	offset | size | field
//	     0 |    1 | bump
//	     1 |    8 | buffer seed (little-endian)
//	     9 |    n | payload
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the encoded size of AuthorizedBufferHeader.
const HeaderSize = 1 + 8

// ErrDecode is returned when bytes cannot hold a header.
var ErrDecode = errors.New("failed to decode buffer header")

// AuthorizedBufferHeader records the derivation inputs of the account that
// holds it, so writers can re-derive and check the address.
type AuthorizedBufferHeader struct {
	Bump       uint8
	BufferSeed uint64
}

// RequiredAccountSize is the account size needed for a payload of bufferSize
// bytes. Callers bound bufferSize well below the uint64 range first.
func RequiredAccountSize(bufferSize uint64) uint64 {
	return HeaderSize + bufferSize
}

// Encode returns the fixed-width encoding of h.
func (h AuthorizedBufferHeader) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = h.Bump
	binary.LittleEndian.PutUint64(b[1:], h.BufferSeed)
	return b
}

// MarshalTo writes h into the first HeaderSize bytes of dst.
func (h AuthorizedBufferHeader) MarshalTo(dst []byte) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("%w: destination holds %d bytes, need %d", ErrDecode, len(dst), HeaderSize)
	}
	enc := h.Encode()
	copy(dst, enc[:])
	return nil
}

// Decode reads a header from the first HeaderSize bytes of b.
// Bytes after the header are ignored.
func Decode(b []byte) (AuthorizedBufferHeader, error) {
	if len(b) < HeaderSize {
		return AuthorizedBufferHeader{}, fmt.Errorf("%w: have %d bytes, need %d", ErrDecode, len(b), HeaderSize)
	}
	return AuthorizedBufferHeader{
		Bump:       b[0],
		BufferSeed: binary.LittleEndian.Uint64(b[1:HeaderSize]),
	}, nil
}

// Payload returns the writable region of an authorized buffer account.
func Payload(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrDecode, len(data), HeaderSize)
	}
	return data[HeaderSize:], nil
}

// CopyPadded overwrites dst with src, truncating src to len(dst) and
// zero-filling whatever src does not cover. It returns the bytes copied.
func CopyPadded(dst, src []byte) int {
	n := copy(dst, src)
	clear(dst[n:])
	return n
}
