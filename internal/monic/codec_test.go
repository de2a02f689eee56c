package monic

import (
	"errors"
	"strings"
	"testing"

	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
	"github.com/lgaroche/monique-indexer/internal/wordlist"
)

type fakeLookup map[uint64]common.Address

func (f fakeLookup) AddressByIndex(index uint64) (common.Address, bool) {
	a, ok := f[index]
	return a, ok
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestRoundTripAllWordCounts(t *testing.T) {
	lookup := fakeLookup{
		FirstImmutableIndex:     addr(1),
		FirstImmutableIndex + 1: addr(2),
		Word3Max:                addr(3),
		Word3Max + 1:            addr(4),
	}
	indices := []uint64{0, 1, 127, 128, 200, Word2Max - 1, FirstImmutableIndex, FirstImmutableIndex + 1, Word3Max, Word3Max + 1, Word4Max - 1}
	for _, idx := range indices {
		lk := lookup
		if idx >= Word2Max {
			if _, ok := lk[idx]; !ok {
				lk = fakeLookup{idx: addr(byte(idx % 250))}
			}
		}
		phrase, err := Encode(idx, lk)
		if err != nil {
			t.Fatalf("Encode(%d): %v", idx, err)
		}
		got, err := Decode(phrase, lk)
		if err != nil {
			t.Fatalf("Decode(%q) for index %d: %v", phrase, idx, err)
		}
		if got != idx {
			t.Fatalf("round trip mismatch: index=%d phrase=%q got=%d", idx, phrase, got)
		}
	}
}

func TestWordCountMatchesRange(t *testing.T) {
	cases := []struct {
		index uint64
		words int
	}{
		{0, 1}, {127, 1},
		{128, 2}, {Word2Max - 1, 2},
		{Word2Max, 3}, {Word3Max - 1, 3},
		{Word3Max, 4}, {Word4Max - 1, 4},
	}
	lookup := fakeLookup{Word2Max: addr(7), Word3Max - 1: addr(6), Word3Max: addr(9), Word4Max - 1: addr(8)}
	for _, c := range cases {
		phrase, err := Encode(c.index, lookup)
		if err != nil {
			t.Fatalf("Encode(%d): %v", c.index, err)
		}
		if got := len(strings.Fields(phrase)); got != c.words {
			t.Fatalf("index %d: got %d words (%q), want %d", c.index, got, phrase, c.words)
		}
	}
}

func TestIndexOutOfRange(t *testing.T) {
	_, err := Encode(Word4Max, fakeLookup{})
	if !errors.Is(err, monicerr.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestUnknownImmutableIndex(t *testing.T) {
	_, err := Encode(FirstImmutableIndex, fakeLookup{})
	if !errors.Is(err, monicerr.ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestDecodeInvalidWord(t *testing.T) {
	_, err := Decode("not-a-real-bip39-word", fakeLookup{})
	if !errors.Is(err, monicerr.ErrInvalidMonic) {
		t.Fatalf("expected ErrInvalidMonic, got %v", err)
	}
}

func TestDecodeWrongChecksum(t *testing.T) {
	lookup := fakeLookup{FirstImmutableIndex: addr(1)}
	phrase, err := Encode(FirstImmutableIndex, lookup)
	if err != nil {
		t.Fatal(err)
	}
	words := strings.Fields(phrase)
	// The checksum occupies the top 4 bits of the first (most
	// significant) 11-bit chunk regardless of word count; flip one of
	// them to deterministically corrupt the checksum without touching
	// the payload.
	firstChunk, ok := wordlist.Index(words[0])
	if !ok {
		t.Fatalf("word %q not in wordlist", words[0])
	}
	words[0] = wordlist.Word(firstChunk ^ (1 << 10))
	_, err = Decode(strings.Join(words, " "), lookup)
	if !errors.Is(err, monicerr.ErrInvalidChecksum) {
		t.Fatalf("expected ErrInvalidChecksum, got %v", err)
	}
}

func TestGenesisVector(t *testing.T) {
	// index = 0 is in the mutable range: checksum comes from
	// keccak256 of the minimal big-endian encoding of the index
	// itself, no address lookup required.
	phrase, err := Encode(0, fakeLookup{})
	if err != nil {
		t.Fatal(err)
	}
	if len(strings.Fields(phrase)) != 1 {
		t.Fatalf("expected a 1-word monic, got %q", phrase)
	}
	got, err := Decode(phrase, fakeLookup{})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("expected index 0, got %d", got)
	}
}

func TestFirstImmutableIndexVector(t *testing.T) {
	lookup := fakeLookup{FirstImmutableIndex: addr(0xEE)}
	phrase, err := Encode(FirstImmutableIndex, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if len(strings.Fields(phrase)) != 3 {
		t.Fatalf("expected a 3-word monic for index %d, got %q", FirstImmutableIndex, phrase)
	}
	got, err := Decode(phrase, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if got != FirstImmutableIndex {
		t.Fatalf("expected %d, got %d", FirstImmutableIndex, got)
	}
}

// TestChecksumCatchesBitFlips exercises the codec law that mutating a
// checksum bit of an encoded monic changes the checksum verdict for
// the large majority of flips.
func TestChecksumCatchesBitFlips(t *testing.T) {
	lookup := fakeLookup{Word3Max: addr(0x42)}
	phrase, err := Encode(Word3Max, lookup)
	if err != nil {
		t.Fatal(err)
	}
	words := strings.Fields(phrase)
	firstChunk, ok := wordlist.Index(words[0])
	if !ok {
		t.Fatalf("word %q not in wordlist", words[0])
	}

	failures := 0
	for bit := 0; bit < 4; bit++ {
		flipped := firstChunk ^ (1 << uint(10-bit))
		mutatedWords := append([]string(nil), words...)
		mutatedWords[0] = wordlist.Word(flipped)
		mutated := strings.Join(mutatedWords, " ")
		if _, err := Decode(mutated, lookup); err != nil {
			failures++
		}
	}
	if failures < 3 {
		t.Fatalf("expected at least 3/4 checksum-bit flips to be caught, got %d/4", failures)
	}
}
