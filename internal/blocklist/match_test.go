package blocklist

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/binderveil/binderveil/internal/parcel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identifier(t *testing.T, shape parcel.Shape, name string) ([]byte, parcel.Identifier) {
	t.Helper()
	buf := parcel.PackageQuery(shape, name)
	c, ok := parcel.Validator{Shape: shape}.Open(buf)
	require.True(t, ok)
	id, err := parcel.Extract(c)
	require.NoError(t, err)
	return buf, id
}

func countingEqual(n *int) func(a, b []byte) bool {
	return func(a, b []byte) bool {
		*n++
		return bytes.Equal(a, b)
	}
}

func TestMatchCharCountConvention(t *testing.T) {
	b, err := Parse(rawList(t, ConventionCharCount, "shop.app", "bank.app"), Options{Convention: ConventionCharCount})
	require.NoError(t, err)

	_, id := identifier(t, parcel.ShapeThreeWord, "shop.app")
	res := b.Match(id)
	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Entry)
	assert.Equal(t, id.Off, res.Offset)

	_, id = identifier(t, parcel.ShapeThreeWord, "bank.app")
	res = b.Match(id)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Entry)
}

func TestMatchLengthFilterSkipsContent(t *testing.T) {
	for _, conv := range []Convention{ConventionCharCount, ConventionOddByte} {
		b, err := Parse(rawList(t, conv, "shop.app", "bank.app"), Options{Convention: conv})
		require.NoError(t, err)

		_, id := identifier(t, parcel.ShapeThreeWord, "other.app")
		compares := 0
		res := b.match(id, countingEqual(&compares))
		assert.False(t, res.Matched)
		assert.Equal(t, 0, compares)

		_, id = identifier(t, parcel.ShapeThreeWord, "shop.app")
		compares = 0
		res = b.match(id, countingEqual(&compares))
		assert.True(t, res.Matched)
		assert.Equal(t, 1, compares, "stops at first match")
	}
}

func TestMatchOddByteConvention(t *testing.T) {
	b, err := Parse(rawList(t, ConventionOddByte, "com.blocked.app"), Options{})
	require.NoError(t, err)
	require.Len(t, b.Entry(0), 29)

	_, id := identifier(t, parcel.ShapeTwoWord, "com.blocked.app")
	res := b.Match(id)
	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Entry)

	for _, other := range []string{"com.blocked.apq", "com.blocked.ap", "com.blocked.appx", "com.blocked"} {
		_, id = identifier(t, parcel.ShapeTwoWord, other)
		assert.False(t, b.Match(id).Matched, other)
	}
}

func TestMatchConventionsDisagreeOnRawBytes(t *testing.T) {
	// The same name written for one convention never matches when parsed
	// with the other.
	odd := rawList(t, ConventionOddByte, "shop.app")
	narrow := rawList(t, ConventionCharCount, "shop.app")

	_, id := identifier(t, parcel.ShapeOneWord, "shop.app")

	b, err := Parse(odd, Options{Convention: ConventionCharCount})
	require.NoError(t, err)
	assert.False(t, b.Match(id).Matched)

	b, err = Parse(narrow, Options{Convention: ConventionOddByte})
	require.NoError(t, err)
	assert.False(t, b.Match(id).Matched)
}

func TestMatchEmptyIdentifier(t *testing.T) {
	b, err := Parse(rawList(t, ConventionOddByte, "a"), Options{})
	require.NoError(t, err)

	assert.False(t, b.Match(parcel.Identifier{}).Matched)

	buf, id := identifier(t, parcel.ShapeOneWord, "a")
	require.True(t, b.Match(id).Matched)
	buf[id.Off] = 0
	assert.False(t, b.Match(id).Matched, "zeroed name no longer matches")
}

func TestMatchTail(t *testing.T) {
	b, err := Parse(rawList(t, ConventionOddByte, "shop.app", "com.blocked.app"), Options{})
	require.NoError(t, err)

	buf, id := identifier(t, parcel.ShapeThreeWord, "com.blocked.app")
	res := b.MatchTail(buf)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Entry)
	assert.Equal(t, id.Off, res.Offset)

	buf, _ = identifier(t, parcel.ShapeThreeWord, "com.other.app")
	assert.False(t, b.MatchTail(buf).Matched)
	assert.False(t, b.MatchTail(nil).Matched)
	assert.False(t, b.MatchTail(make([]byte, 64)).Matched)
}

func TestMatchTailNonZeroTrailer(t *testing.T) {
	b, err := Parse(rawList(t, ConventionOddByte, "com.blocked.app"), Options{})
	require.NoError(t, err)

	var w parcel.Writer
	w.WriteInterfaceToken(parcel.ShapeThreeWord, parcel.PackageManagerDescriptor).
		WriteString16("com.blocked.app").WriteUint32(0x40).WriteUint32(0)
	buf := w.Bytes()

	assert.False(t, b.MatchTail(buf).Matched)
	res := b.Search(buf)
	assert.True(t, res.Matched)

	c, _ := parcel.Validator{Shape: parcel.ShapeThreeWord}.Open(buf)
	id, err := parcel.Extract(c)
	require.NoError(t, err)
	assert.Equal(t, id.Off, res.Offset)
}

func TestMatchTailRejectsNameSuffix(t *testing.T) {
	b, err := Parse(rawList(t, ConventionOddByte, "bank.app"), Options{})
	require.NoError(t, err)

	buf, _ := identifier(t, parcel.ShapeThreeWord, "com.bank.app")
	assert.False(t, b.MatchTail(buf).Matched)
}

func TestSearchRequiresWholeField(t *testing.T) {
	b, err := Parse(rawList(t, ConventionOddByte, "com.bank"), Options{})
	require.NoError(t, err)

	tests := []string{"com.bankingapp.other", "org.com.bank", "com.bank.x"}
	for _, name := range tests {
		var w parcel.Writer
		w.WriteInterfaceToken(parcel.ShapeThreeWord, parcel.PackageManagerDescriptor).
			WriteString16(name).WriteUint32(64).WriteUint32(10)
		assert.False(t, b.Search(w.Bytes()).Matched, name)
	}

	// A prefix hit earlier in the buffer does not hide the real field.
	var w parcel.Writer
	w.WriteInterfaceToken(parcel.ShapeThreeWord, parcel.PackageManagerDescriptor).
		WriteString16("com.bankingapp").WriteString16("com.bank").WriteUint32(64)
	buf := w.Bytes()
	res := b.Search(buf)
	require.True(t, res.Matched)
	assert.Equal(t, byte('c'), buf[res.Offset])
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(buf[res.Offset-4:]))
}

func TestSearchCharCountEntries(t *testing.T) {
	b, err := Parse(rawList(t, ConventionCharCount, "bank.app"), Options{Convention: ConventionCharCount})
	require.NoError(t, err)

	buf, id := identifier(t, parcel.ShapeTwoWord, "bank.app")
	res := b.Search(buf)
	assert.True(t, res.Matched)
	assert.Equal(t, id.Off, res.Offset)
	assert.Equal(t, id.Off, b.MatchTail(buf).Offset)
}
