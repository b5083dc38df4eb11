package giplio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mjw/volconv/giplio"
	"github.com/mjw/volconv/niftiio"
	"github.com/mjw/volconv/orient"
)

func cube(cols, rows, slices int, fill func(c, r, s int) float64) [][][]float64 {
	data := make([][][]float64, cols)
	for c := range data {
		data[c] = make([][]float64, rows)
		for r := range data[c] {
			data[c][r] = make([]float64, slices)
			for s := range data[c][r] {
				data[c][r][s] = fill(c, r, s)
			}
		}
	}
	return data
}

// TestWriteRoundTrip covers the spec's GIPL round-trip scenario: write a
// 4x5x6 Int16 volume with a known origin, and recover dims, type, voxel
// size, and origin exactly by re-parsing the header bytes.
func TestWriteRoundTrip(t *testing.T) {
	data := cube(4, 5, 6, func(c, r, s int) float64 { return float64(c + 10*r + 100*s) })
	img := orient.NewImage(data, [3]float64{1.5, 1.5, 3.0}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)

	var buf bytes.Buffer
	err := giplio.Write(&buf, img, giplio.Options{
		Datatype: niftiio.Int16,
		Descrip:  "round trip",
		Origin:   [3]float64{1, 2, 3},
	})
	require.NoError(t, err)

	out := buf.Bytes()
	be := binary.BigEndian

	require.Equal(t, uint16(4), be.Uint16(out[0:]))
	require.Equal(t, uint16(5), be.Uint16(out[2:]))
	require.Equal(t, uint16(6), be.Uint16(out[4:]))
	require.Equal(t, uint16(1), be.Uint16(out[6:]))

	require.Equal(t, uint16(15), be.Uint16(out[8:])) // Int16 -> GIPL code 15

	require.InDelta(t, 1.5, math.Float32frombits(be.Uint32(out[10:])), 1e-6)
	require.InDelta(t, 1.5, math.Float32frombits(be.Uint32(out[14:])), 1e-6)
	require.InDelta(t, 3.0, math.Float32frombits(be.Uint32(out[18:])), 1e-6)

	require.Equal(t, "round trip\x00", string(out[26:26+11]))

	require.Equal(t, 1.0, math.Float64frombits(be.Uint64(out[204:])))
	require.Equal(t, 2.0, math.Float64frombits(be.Uint64(out[212:])))
	require.Equal(t, 3.0, math.Float64frombits(be.Uint64(out[220:])))

	require.Equal(t, uint32(719555000), be.Uint32(out[252:]))

	require.Len(t, out[256:], 4*5*6*2)
}

func TestWriteRejectsUnsupportedType(t *testing.T) {
	data := cube(1, 1, 1, func(c, r, s int) float64 { return 0 })
	img := orient.NewImage(data, [3]float64{1, 1, 1}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)

	var buf bytes.Buffer
	err := giplio.Write(&buf, img, giplio.Options{Datatype: 0})
	require.Error(t, err)
}

func TestWritePayloadBigEndian(t *testing.T) {
	data := cube(2, 1, 1, func(c, r, s int) float64 { return float64(256 + c) })
	img := orient.NewImage(data, [3]float64{1, 1, 1}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)

	var buf bytes.Buffer
	require.NoError(t, giplio.Write(&buf, img, giplio.Options{Datatype: niftiio.Int16}))

	payload := buf.Bytes()[256:]
	be := binary.BigEndian
	require.Equal(t, uint16(256), be.Uint16(payload[0:]))
	require.Equal(t, uint16(257), be.Uint16(payload[2:]))
}
