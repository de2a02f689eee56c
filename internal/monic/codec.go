// Package monic implements the index<->monic codec: a deterministic,
// total conversion between a dense natural-number index in [0, 2^40)
// and a 1-4 word BIP39-style phrase carrying a 4-bit checksum.
//
// The codec is stateless with respect to storage: for indices in the
// immutable range (>= 2^18) the checksum is derived from the address
// mapped to that index, so encode and decode both take an
// AddressLookup collaborator rather than reaching into a global store.
package monic

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
	"github.com/lgaroche/monique-indexer/internal/wordlist"
)

// Range boundaries from the data model: word count is chosen by which
// of these four ranges the index falls into.
const (
	Word1Max = uint64(1) << 7  // 128
	Word2Max = uint64(1) << 18 // 262144
	Word3Max = uint64(1) << 28
	Word4Max = uint64(1) << 40

	// FirstImmutableIndex is the first index the ingestor ever
	// allocates.
	FirstImmutableIndex = Word2Max
)

const checksumBits = 4
const chunkBits = 11

// AddressLookup resolves the collaboration the checksum rule needs for
// indices in the immutable range: the address currently mapped to an
// index. It is satisfied by the address table.
type AddressLookup interface {
	AddressByIndex(index uint64) (common.Address, bool)
}

// wordCount returns how many words a monic for index needs, per the
// range table in the data model, or an error if index is outside the
// representable [0, 2^40) space.
func wordCount(index uint64) (int, error) {
	switch {
	case index < Word1Max:
		return 1, nil
	case index < Word2Max:
		return 2, nil
	case index < Word3Max:
		return 3, nil
	case index < Word4Max:
		return 4, nil
	default:
		return 0, fmt.Errorf("monic: index %d: %w", index, monicerr.ErrIndexOutOfRange)
	}
}

// rangeMax returns the exclusive upper bound of the index range that
// uses the given word count.
func rangeMax(words int) uint64 {
	switch words {
	case 1:
		return Word1Max
	case 2:
		return Word2Max
	case 3:
		return Word3Max
	case 4:
		return Word4Max
	default:
		return 0
	}
}

func keccak256(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// minimalBigEndian encodes index as the shortest big-endian byte
// string that represents it, at least one byte (so index == 0 encodes
// as a single zero byte).
func minimalBigEndian(index uint64) []byte {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(index >> uint(8*(7-i)))
	}
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	out := make([]byte, 8-i)
	copy(out, buf[i:])
	return out
}

// checksum computes the 4-bit checksum nibble for index, per the
// range-dependent rule in the data model: below the immutable range
// it hashes the minimal big-endian encoding of the index itself;
// within the immutable range it hashes the mapped address, which
// requires a successful lookup.
func checksum(index uint64, lookup AddressLookup) (uint8, error) {
	if index < Word2Max {
		h := keccak256(minimalBigEndian(index))
		return h[0] >> 4, nil
	}
	addr, ok := lookup.AddressByIndex(index)
	if !ok {
		return 0, fmt.Errorf("monic: index %d: %w", index, monicerr.ErrUnknown)
	}
	h := keccak256(addr[:])
	return h[0] >> 4, nil
}

// Encode converts index into its monic phrase. lookup is consulted
// only when index falls in the immutable range.
func Encode(index uint64, lookup AddressLookup) (string, error) {
	words, err := wordCount(index)
	if err != nil {
		return "", err
	}
	sum, err := checksum(index, lookup)
	if err != nil {
		return "", err
	}
	totalBits := chunkBits * words
	payloadBits := uint(totalBits - checksumBits)

	value := (uint64(sum) << payloadBits) | index

	parts := make([]string, words)
	for i := 0; i < words; i++ {
		shift := uint(chunkBits * (words - 1 - i))
		chunk := uint16(value>>shift) & 0x7FF
		parts[i] = wordlist.Word(chunk)
	}
	return strings.Join(parts, " "), nil
}

// Decode converts a monic phrase back into its index. lookup is
// consulted to re-derive the expected checksum when the recovered
// index falls in the immutable range; a missing mapping there is
// reported as monicerr.ErrUnknown, exactly mirroring Encode.
func Decode(phrase string, lookup AddressLookup) (uint64, error) {
	words := strings.Fields(phrase)
	n := len(words)
	if n < 1 || n > 4 {
		return 0, fmt.Errorf("monic: %q: %w", phrase, monicerr.ErrInvalidMonic)
	}

	var value uint64
	for _, w := range words {
		chunk, ok := wordlist.Index(w)
		if !ok {
			return 0, fmt.Errorf("monic: unknown word %q: %w", w, monicerr.ErrInvalidMonic)
		}
		value = value<<chunkBits | uint64(chunk)
	}

	totalBits := chunkBits * n
	payloadBits := uint(totalBits - checksumBits)
	sum := uint8(value >> payloadBits)
	index := value & ((uint64(1) << payloadBits) - 1)

	if index >= rangeMax(n) {
		return 0, fmt.Errorf("monic: %q decodes to index %d outside the %d-word range: %w", phrase, index, n, monicerr.ErrInvalidMonic)
	}

	expected, err := checksum(index, lookup)
	if err != nil {
		return 0, err
	}
	if expected != sum {
		return 0, fmt.Errorf("monic: %q: %w", phrase, monicerr.ErrInvalidChecksum)
	}
	return index, nil
}
