package pathresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evidentia/orc-core/mft"
)

func TestResolveSimplePath(t *testing.T) {
	idx := NewIndex(nil)
	dirFRN := mft.MakeFRN(10, 1)
	fileFRN := mft.MakeFRN(20, 1)

	idx.Remember(dirFRN, mft.RootFRN, "dir")
	idx.Remember(fileFRN, dirFRN, "file.txt")

	got := idx.Resolve(fileFRN, "file.txt", `\\.\Volume{0}`)
	assert.Equal(t, `\\.\Volume{0}\dir\file.txt`, got)
}

func TestResolveBreaksOnUnknownParent(t *testing.T) {
	idx := NewIndex(nil)
	missingParent := mft.MakeFRN(999, 1)
	fileFRN := mft.MakeFRN(20, 1)
	idx.Remember(fileFRN, missingParent, "file.txt")

	got := idx.Resolve(fileFRN, "file.txt", `\\.\Volume{0}`)
	assert.Contains(t, got, missingParent.Placeholder())
	assert.Contains(t, got, "file.txt")
}

func TestInScopeUnscopedAlwaysTrue(t *testing.T) {
	idx := NewIndex(nil)
	assert.True(t, idx.InScope(mft.MakeFRN(1, 0)))
}

func TestInScopeFiltersBySubtree(t *testing.T) {
	root := mft.MakeFRN(10, 1)
	idx := NewIndex([]mft.FRN{root})
	child := mft.MakeFRN(20, 1)
	outside := mft.MakeFRN(30, 1)

	idx.Remember(child, root, "child")
	idx.Remember(outside, mft.RootFRN, "outside")

	assert.True(t, idx.InScope(root))
	assert.True(t, idx.InScope(child))
	assert.False(t, idx.InScope(outside))
}

func TestEnableUnicodeNormalizationComposesNames(t *testing.T) {
	root := mft.MakeFRN(10, 1)
	idx := NewIndex([]mft.FRN{root})
	idx.EnableUnicodeNormalization()

	child := mft.MakeFRN(20, 1)
	leaf := mft.MakeFRN(21, 1)
	decomposed := "cafe\u0301" // "e" + combining acute accent, NFD form
	composed := "caf\u00e9"    // precomposed "e with acute", NFC form
	idx.Remember(child, root, decomposed)
	idx.Remember(leaf, child, "leaf.txt")

	path := idx.Resolve(leaf, "leaf.txt", `\\.\Volume{x}`)
	assert.Contains(t, path, composed)
	assert.NotContains(t, path, decomposed)
}

func TestWithoutUnicodeNormalizationKeepsRawBytes(t *testing.T) {
	root := mft.MakeFRN(10, 1)
	idx := NewIndex([]mft.FRN{root})

	child := mft.MakeFRN(20, 1)
	leaf := mft.MakeFRN(21, 1)
	decomposed := "cafe\u0301"
	idx.Remember(child, root, decomposed)
	idx.Remember(leaf, child, "leaf.txt")

	path := idx.Resolve(leaf, "leaf.txt", `\\.\Volume{x}`)
	assert.Contains(t, path, decomposed)
}
