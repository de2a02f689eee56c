// Copyright 2026 The Monique Authors
// This file is part of monique-indexer.
//
// monique-indexer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package common holds the byte-oriented primitives shared by every
// layer of the indexer: a 20-byte Address, a 32-byte Hash, and the
// big-endian index encoding used as the address table and trie key.
package common

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// AddressLength is the length of an Ethereum-compatible account address.
const AddressLength = 20

// HashLength is the length of a Keccak-256 digest.
const HashLength = 32

// IndexKeyLength is the width of the big-endian key an Index is stored
// under in the address table and the trie: 5 bytes cover the full
// [0, 2^40) range.
const IndexKeyLength = 5

// Address is a 20-byte account identifier. Equality and hashing are
// byte-wise; the type carries no checksum-casing behavior of its own.
type Address [AddressLength]byte

// Hash is a 32-byte digest, typically the output of Keccak-256.
type Hash [HashLength]byte

// BytesToAddress right-aligns b into an Address, matching the
// go-ethereum/erigon convention for short byte slices.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// BytesToHash right-aligns b into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToAddress decodes a "0x"-prefixed or bare hex string into an Address.
func HexToAddress(s string) (Address, error) {
	b, err := decodeHex(s, AddressLength)
	if err != nil {
		return Address{}, err
	}
	return BytesToAddress(b), nil
}

// HexToHash decodes a "0x"-prefixed or bare hex string into a Hash.
func HexToHash(s string) (Hash, error) {
	b, err := decodeHex(s, HashLength)
	if err != nil {
		return Hash{}, err
	}
	return BytesToHash(b), nil
}

func decodeHex(s string, want int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("common: invalid hex string %q: %w", s, err)
	}
	if len(b) > want {
		return nil, fmt.Errorf("common: hex string %q too long, want at most %d bytes", s, want)
	}
	return b, nil
}

// Hex renders the address normalized to lowercase hex, as required at
// the wire boundary: "0x" followed by 40 lowercase hex digits. No
// EIP-55 checksum casing is applied.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Hex renders the hash as lowercase "0x"-prefixed hex.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (a Address) String() string { return a.Hex() }
func (h Hash) String() string    { return h.Hex() }

// MarshalText implements encoding.TextMarshaler so Address round-trips
// through JSON as lowercase hex, matching the wire-boundary rule.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := HexToAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// MarshalText implements encoding.TextMarshaler for Hash.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for Hash.
func (h *Hash) UnmarshalText(text []byte) error {
	hh, err := HexToHash(string(text))
	if err != nil {
		return err
	}
	*h = hh
	return nil
}

// ErrIndexOutOfRange is returned by IndexKey when the index does not
// fit the 5-byte, 40-bit key space the address table and trie use.
var ErrIndexOutOfRange = errors.New("common: index out of range for a 5-byte key")

// IndexKey encodes index as a big-endian 5-byte key, the shape the
// address table's forward map and the trie key both use.
func IndexKey(index uint64) ([IndexKeyLength]byte, error) {
	var key [IndexKeyLength]byte
	if index >= 1<<(8*IndexKeyLength) {
		return key, ErrIndexOutOfRange
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	copy(key[:], buf[8-IndexKeyLength:])
	return key, nil
}

// IndexFromKey decodes a 5-byte big-endian key back into an index.
func IndexFromKey(key []byte) uint64 {
	var buf [8]byte
	copy(buf[8-IndexKeyLength:], key)
	return binary.BigEndian.Uint64(buf[:])
}
