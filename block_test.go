package crdt

import "testing"
import "github.com/stretchr/testify/require"

func TestItemContentSplitString(t *testing.T) {
	c := ItemContent{Kind: ContentString, Str: "hello"}
	l, r := c.Split(2, OffsetBytes)
	require.Equal(t, "he", l.Str)
	require.Equal(t, "llo", r.Str)
}

func TestItemContentMergeRightString(t *testing.T) {
	a := ItemContent{Kind: ContentString, Str: "ab"}
	b := ItemContent{Kind: ContentString, Str: "cd"}
	merged, ok := a.MergeRight(b)
	require.True(t, ok)
	require.Equal(t, "abcd", merged.Str)
}

func TestItemContentMergeRightRejectsDifferentKinds(t *testing.T) {
	a := ItemContent{Kind: ContentString, Str: "ab"}
	b := ItemContent{Kind: ContentBinary, Binary: []byte{1}}
	_, ok := a.MergeRight(b)
	require.False(t, ok)
}

func TestItemContentLenUtf16SurrogatePair(t *testing.T) {
	// U+1F600 (grinning face) is one rune but two UTF-16 code units.
	c := ItemContent{Kind: ContentString, Str: "a\U0001F600b"}
	require.Equal(t, uint32(4), c.Len(OffsetUtf16))
	require.Equal(t, uint32(len("a\U0001F600b")), c.Len(OffsetBytes))
}

func TestItemContentSplitNeverLandsInsideSurrogatePair(t *testing.T) {
	c := ItemContent{Kind: ContentString, Str: "a\U0001F600b"}
	l, r := c.Split(2, OffsetUtf16)
	require.Equal(t, "a\U0001F600", l.Str)
	require.Equal(t, "b", r.Str)
}

func TestItemContentDeletedSplitAndMerge(t *testing.T) {
	c := ItemContent{Kind: ContentDeleted, DeletedLen: 5}
	l, r := c.Split(2, OffsetBytes)
	require.Equal(t, uint32(2), l.DeletedLen)
	require.Equal(t, uint32(3), r.DeletedLen)
	merged, ok := l.MergeRight(r)
	require.True(t, ok)
	require.Equal(t, uint32(5), merged.DeletedLen)
}

func TestCountableContentKinds(t *testing.T) {
	require.True(t, ItemContent{Kind: ContentString}.Countable())
	require.True(t, ItemContent{Kind: ContentJSON}.Countable())
	require.False(t, ItemContent{Kind: ContentFormat}.Countable())
	require.False(t, ItemContent{Kind: ContentMove}.Countable())
}
