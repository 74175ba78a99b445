// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the on-disk/on-wire serialization of blocks,
// transactions and their components, per the consensus byte layout:
// version|ms_hash|prev_hash|tip_hash|merkle_root|time|target|nonce|
// proof|tx_count|tx*.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxVarIntPayload is the maximum payload size for a variable length integer.
const MaxVarIntPayload = 9

var littleEndian = binary.LittleEndian

// ReadVarInt reads a variable length integer from r and returns it as a uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	discriminant := buf[0]

	var rv uint64
	switch discriminant {
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		rv = littleEndian.Uint64(b[:])
		if rv < 0x100000000 {
			return 0, nonCanonicalVarIntError(rv, discriminant, 0x100000000)
		}

	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		rv = uint64(littleEndian.Uint32(b[:]))
		if rv < 0x10000 {
			return 0, nonCanonicalVarIntError(rv, discriminant, 0x10000)
		}

	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		rv = uint64(littleEndian.Uint16(b[:]))
		if rv < 0xfd {
			return 0, nonCanonicalVarIntError(rv, discriminant, 0xfd)
		}

	default:
		rv = uint64(discriminant)
	}

	return rv, nil
}

func nonCanonicalVarIntError(rv uint64, discriminant byte, min uint64) error {
	return fmt.Errorf("non-canonical varint %x - discriminant %x must encode a value greater than %x",
		rv, discriminant, min)
}

// WriteVarInt serializes val to w using a variable number of bytes
// depending on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}
	if val <= math.MaxUint16 {
		var b [3]byte
		b[0] = 0xfd
		littleEndian.PutUint16(b[1:], uint16(val))
		_, err := w.Write(b[:])
		return err
	}
	if val <= math.MaxUint32 {
		var b [5]byte
		b[0] = 0xfe
		littleEndian.PutUint32(b[1:], uint32(val))
		_, err := w.Write(b[:])
		return err
	}
	var b [9]byte
	b[0] = 0xff
	littleEndian.PutUint64(b[1:], val)
	_, err := w.Write(b[:])
	return err
}

// VarIntSerializeSize returns the number of bytes it would take to
// serialize val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	if val < 0xfd {
		return 1
	}
	if val <= math.MaxUint16 {
		return 3
	}
	if val <= math.MaxUint32 {
		return 5
	}
	return 9
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	littleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return littleEndian.Uint16(b[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	littleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return littleEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	littleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return littleEndian.Uint64(b[:]), nil
}

func writeVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader, maxLen uint64) ([]byte, error) {
	l, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if l > maxLen {
		return nil, fmt.Errorf("var bytes length %d exceeds max %d", l, maxLen)
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
