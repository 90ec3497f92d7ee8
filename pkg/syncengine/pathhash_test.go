package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPathDeterministic(t *testing.T) {
	a := HashPath("players.*.hp")
	b := HashPath("players.*.hp")
	assert.Equal(t, a, b)
	assert.NotZero(t, a)
}

func TestHashPathKnownVector(t *testing.T) {
	// FNV-1a 64, offset 14695981039346656037, prime 1099511628211, folded to 32 bits.
	h := FNV1a64("a")
	require.Equal(t, uint64(0xaf63dc4c8601ec8c), h)
	assert.Equal(t, FoldTo32(h), HashPath("a"))
}

func TestPathTrieLiteralMatch(t *testing.T) {
	trie := BuildTrie([]string{"tick", "players.*.hp"})

	hash, keys := trie.Encode([]string{"tick"})
	assert.Equal(t, HashPath("tick"), hash)
	assert.Empty(t, keys)
}

func TestPathTrieWildcardCapture(t *testing.T) {
	trie := BuildTrie([]string{"players.*.hp"})

	hash, keys := trie.Encode([]string{"players", "p1", "hp"})
	assert.Equal(t, HashPath("players.*.hp"), hash)
	assert.Equal(t, []string{"p1"}, keys)
}

func TestPathTrieFallbackHeuristic(t *testing.T) {
	trie := BuildTrie([]string{"players.*.hp"})

	// "inventory.slot3.item.name" has no registered pattern; falls back to
	// first+last verbatim, middle wildcarded.
	hash, keys := trie.Encode([]string{"inventory", "slot3", "item", "name"})
	assert.Equal(t, HashPath("inventory.*.*.name"), hash)
	assert.Equal(t, []string{"slot3", "item"}, keys)
}

func TestPathTrieShortPathNoWildcards(t *testing.T) {
	trie := BuildTrie(nil)
	hash, keys := trie.Encode([]string{"tick"})
	assert.Equal(t, HashPath("tick"), hash)
	assert.Empty(t, keys)
}
