package csa_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mjw/volconv/csa"
	"github.com/stretchr/testify/require"
)

// buildField encodes one CSA2 field with a single live item, following the
// same 64-byte-name / vm / vr / syngodt / item-count layout and the
// 4-byte-boundary item padding that csa.Parse expects.
func buildField(t *testing.T, buf *bytes.Buffer, name string, value string) {
	t.Helper()
	nameBuf := make([]byte, 64)
	copy(nameBuf, name)
	buf.Write(nameBuf)
	binary.Write(buf, binary.LittleEndian, int32(1)) // vm
	vr := make([]byte, 4)
	copy(vr, "CS")
	buf.Write(vr)
	binary.Write(buf, binary.LittleEndian, int32(0)) // syngodt
	binary.Write(buf, binary.LittleEndian, int32(1)) // item count

	binary.Write(buf, binary.LittleEndian, int32(1))           // a: live
	binary.Write(buf, binary.LittleEndian, int32(len(value)))  // b: length
	binary.Write(buf, binary.LittleEndian, int32(len(value)))  // c
	binary.Write(buf, binary.LittleEndian, int32(len(value)))  // d
	buf.WriteString(value)
	pad := (4 - (len(value) % 4)) % 4
	buf.Write(make([]byte, pad))
}

func buildCSA(t *testing.T, fields map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("SV10")
	buf.Write(make([]byte, 4)) // unknown
	binary.Write(&buf, binary.LittleEndian, int32(len(fields)))
	buf.Write(make([]byte, 4)) // unused

	for name, value := range fields {
		buildField(t, &buf, name, value)
	}
	return buf.Bytes()
}

func TestParseBasicField(t *testing.T) {
	blob := buildCSA(t, map[string]string{"NumberOfImagesInMosaic": "36"})
	h := csa.Parse(blob)
	require.Contains(t, h, "NumberOfImagesInMosaic")
	require.Equal(t, []string{"36"}, h["NumberOfImagesInMosaic"].Items)
}

func TestParseBadMagicIsEmptyNotError(t *testing.T) {
	h := csa.Parse([]byte("NOTCSA00"))
	require.Empty(t, h)
}

func TestParseIdempotentUnderPaddingRule(t *testing.T) {
	// Values whose length is and isn't a multiple of 4 exercise the
	// padding rule on both sides.
	for _, v := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		blob := buildCSA(t, map[string]string{"Field": v})
		h1 := csa.Parse(blob)
		h2 := csa.Parse(blob)
		require.Equal(t, h1, h2)
		require.Equal(t, []string{v}, h1["Field"].Items)
	}
}

func TestParseDeadItemSuppressed(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("SV10")
	buf.Write(make([]byte, 4))
	binary.Write(&buf, binary.LittleEndian, int32(1))
	buf.Write(make([]byte, 4))

	nameBuf := make([]byte, 64)
	copy(nameBuf, "Dead")
	buf.Write(nameBuf)
	binary.Write(&buf, binary.LittleEndian, int32(1))
	buf.Write([]byte("CS\x00\x00"))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(1)) // item count

	// a <= 0: item is dead, length 0.
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(0))

	h := csa.Parse(buf.Bytes())
	require.Contains(t, h, "Dead")
	require.Empty(t, h["Dead"].Items)
}
