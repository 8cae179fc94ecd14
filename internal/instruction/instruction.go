// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package instruction defines the echo program's instruction set and its
// wire encoding.
//
// Encoding is a one-byte variant tag followed by the variant's fields, all
// integers little-endian, byte strings as a u32 length and the bytes:
//
//	tag | variant                       | fields
//	  0 | Echo                          | data
//	  1 | InitializeAuthorizedEcho      | buffer_seed u64, buffer_size u64
//	  2 | AuthorizedEcho                | data
//	  3 | InitializeVendingMachineEcho  | price u64, buffer_size u64
//	  4 | VendingMachineEcho            | data
package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag identifies an instruction variant on the wire.
type Tag uint8

const (
	TagEcho Tag = iota
	TagInitializeAuthorizedEcho
	TagAuthorizedEcho
	TagInitializeVendingMachineEcho
	TagVendingMachineEcho
)

func (t Tag) String() string {
	switch t {
	case TagEcho:
		return "Echo"
	case TagInitializeAuthorizedEcho:
		return "InitializeAuthorizedEcho"
	case TagAuthorizedEcho:
		return "AuthorizedEcho"
	case TagInitializeVendingMachineEcho:
		return "InitializeVendingMachineEcho"
	case TagVendingMachineEcho:
		return "VendingMachineEcho"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// ErrInvalidData is returned for bytes that do not decode to exactly one
// instruction.
var ErrInvalidData = errors.New("invalid echo instruction data")

// EchoInstruction is one of the variant types below.
type EchoInstruction interface {
	Tag() Tag
	appendFields(b []byte) []byte
}

// Echo copies Data into a program-owned buffer.
type Echo struct {
	Data []byte
}

// InitializeAuthorizedEcho creates the derived buffer for the signing
// authority and BufferSeed, with BufferSize payload bytes.
type InitializeAuthorizedEcho struct {
	BufferSeed uint64
	BufferSize uint64
}

// AuthorizedEcho writes Data into the authority's derived buffer.
type AuthorizedEcho struct {
	Data []byte
}

// InitializeVendingMachineEcho is reserved; the program rejects it.
type InitializeVendingMachineEcho struct {
	Price      uint64
	BufferSize uint64
}

// VendingMachineEcho is reserved; the program rejects it.
type VendingMachineEcho struct {
	Data []byte
}

func (Echo) Tag() Tag                         { return TagEcho }
func (InitializeAuthorizedEcho) Tag() Tag     { return TagInitializeAuthorizedEcho }
func (AuthorizedEcho) Tag() Tag               { return TagAuthorizedEcho }
func (InitializeVendingMachineEcho) Tag() Tag { return TagInitializeVendingMachineEcho }
func (VendingMachineEcho) Tag() Tag           { return TagVendingMachineEcho }

func (ix Echo) appendFields(b []byte) []byte { return appendBytes(b, ix.Data) }

func (ix InitializeAuthorizedEcho) appendFields(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, ix.BufferSeed)
	return binary.LittleEndian.AppendUint64(b, ix.BufferSize)
}

func (ix AuthorizedEcho) appendFields(b []byte) []byte { return appendBytes(b, ix.Data) }

func (ix InitializeVendingMachineEcho) appendFields(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, ix.Price)
	return binary.LittleEndian.AppendUint64(b, ix.BufferSize)
}

func (ix VendingMachineEcho) appendFields(b []byte) []byte { return appendBytes(b, ix.Data) }

func appendBytes(b, data []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data))) // #nosec G115 - instruction data is far below 4 GiB
	return append(b, data...)
}

// Encode serializes ix.
func Encode(ix EchoInstruction) []byte {
	return ix.appendFields([]byte{byte(ix.Tag())})
}

// decoder consumes fields from an instruction buffer.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) u64(field string) uint64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 8 {
		d.err = fmt.Errorf("%w: truncated %s", ErrInvalidData, field)
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v
}

func (d *decoder) bytes(field string) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < 4 {
		d.err = fmt.Errorf("%w: truncated %s length", ErrInvalidData, field)
		return nil
	}
	n := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	if uint64(n) > uint64(len(d.buf)) {
		d.err = fmt.Errorf("%w: %s declares %d bytes, %d remain", ErrInvalidData, field, n, len(d.buf))
		return nil
	}
	v := make([]byte, n)
	copy(v, d.buf)
	d.buf = d.buf[n:]
	return v
}

// Decode parses exactly one instruction from b. Unknown tags, truncated
// fields and trailing bytes are rejected with ErrInvalidData.
func Decode(b []byte) (EchoInstruction, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidData)
	}
	d := &decoder{buf: b[1:]}

	var ix EchoInstruction
	switch Tag(b[0]) {
	case TagEcho:
		ix = Echo{Data: d.bytes("data")}
	case TagInitializeAuthorizedEcho:
		ix = InitializeAuthorizedEcho{BufferSeed: d.u64("buffer_seed"), BufferSize: d.u64("buffer_size")}
	case TagAuthorizedEcho:
		ix = AuthorizedEcho{Data: d.bytes("data")}
	case TagInitializeVendingMachineEcho:
		ix = InitializeVendingMachineEcho{Price: d.u64("price"), BufferSize: d.u64("buffer_size")}
	case TagVendingMachineEcho:
		ix = VendingMachineEcho{Data: d.bytes("data")}
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrInvalidData, b[0])
	}

	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrInvalidData, len(d.buf), ix.Tag())
	}
	return ix, nil
}
