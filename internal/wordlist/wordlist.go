// Package wordlist exposes the canonical 2048-entry BIP39 English
// wordlist as an index<->word bijection. The wordlist itself is an
// external collaborator; this package sources it from the same
// wordlists.English table wallets and mnemonic tooling across the Go
// ecosystem rely on, rather than vendoring a private copy.
package wordlist

import (
	"fmt"

	"github.com/tyler-smith/go-bip39/wordlists"
)

// Size is the number of entries in the canonical wordlist; every
// 11-bit chunk produced by the codec indexes into [0, Size).
const Size = 2048

var byWord map[string]uint16

func init() {
	if len(wordlists.English) != Size {
		panic(fmt.Sprintf("wordlist: expected %d words, got %d", Size, len(wordlists.English)))
	}
	byWord = make(map[string]uint16, Size)
	for i, w := range wordlists.English {
		byWord[w] = uint16(i)
	}
}

// Word returns the wordlist entry at chunk, which must be < Size.
func Word(chunk uint16) string {
	return wordlists.English[chunk]
}

// Index returns the 11-bit chunk value for word, and whether word is
// a member of the canonical wordlist at all.
func Index(word string) (uint16, bool) {
	v, ok := byWord[word]
	return v, ok
}
