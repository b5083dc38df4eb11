package niftiio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

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

func TestWriteHeaderFields(t *testing.T) {
	data := cube(4, 5, 6, func(c, r, s int) float64 { return float64(c + 10*r + 100*s) })
	delta := [3]float64{0, 0, 2.0}
	img := orient.NewImage(data, [3]float64{0.9375, 0.9375, 2.0}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{-110, -110, 0}, &delta)

	var buf bytes.Buffer
	err := niftiio.Write(&buf, img, niftiio.Options{Datatype: niftiio.Int16, Descrip: "3T test volume"})
	require.NoError(t, err)

	out := buf.Bytes()
	le := binary.LittleEndian

	require.Equal(t, uint32(348), le.Uint32(out[0:]))
	require.Equal(t, uint16(3), le.Uint16(out[40:]))
	require.Equal(t, int16(4), int16(le.Uint16(out[42:])))
	require.Equal(t, int16(5), int16(le.Uint16(out[44:])))
	require.Equal(t, int16(6), int16(le.Uint16(out[46:])))
	require.Equal(t, int16(niftiio.Int16), int16(le.Uint16(out[70:])))
	require.Equal(t, int16(16), int16(le.Uint16(out[72:])))

	qfac := math.Float32frombits(le.Uint32(out[76:]))
	require.Equal(t, float32(1.0), qfac)

	pixdim1 := math.Float32frombits(le.Uint32(out[84:]))
	require.InDelta(t, 0.9375, pixdim1, 1e-6)

	voxOffset := math.Float32frombits(le.Uint32(out[108:]))
	require.Equal(t, float32(352.0), voxOffset)

	require.Equal(t, byte(10), out[123])
	require.Equal(t, "3T test volume\x00", string(out[148:148+15]))
	require.Equal(t, "n+1\x00", string(out[344:348]))

	require.Len(t, out[352:], 4*5*6*2)
}

func TestWriteOnePaddingFillsScaleFields(t *testing.T) {
	data := cube(2, 2, 2, func(c, r, s int) float64 { return 1 })
	img := orient.NewImage(data, [3]float64{1, 1, 1}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)

	var buf bytes.Buffer
	err := niftiio.Write(&buf, img, niftiio.Options{Datatype: niftiio.Float32, OnePadding: true})
	require.NoError(t, err)

	out := buf.Bytes()
	le := binary.LittleEndian
	require.Equal(t, float32(1.0), math.Float32frombits(le.Uint32(out[112:])))
	require.Equal(t, float32(0.0), math.Float32frombits(le.Uint32(out[116:])))
	require.Equal(t, int16(1), int16(le.Uint16(out[48:]))) // dim[4] padding
}

func TestWriteRejectsInvalidDatatype(t *testing.T) {
	data := cube(1, 1, 1, func(c, r, s int) float64 { return 0 })
	img := orient.NewImage(data, [3]float64{1, 1, 1}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)

	var buf bytes.Buffer
	err := niftiio.Write(&buf, img, niftiio.Options{Datatype: 0})
	require.Error(t, err)
}

func TestWritePayloadFortranOrder(t *testing.T) {
	data := cube(2, 2, 1, func(c, r, s int) float64 { return float64(c + 2*r) })
	img := orient.NewImage(data, [3]float64{1, 1, 1}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)

	var buf bytes.Buffer
	require.NoError(t, niftiio.Write(&buf, img, niftiio.Options{Datatype: niftiio.UInt8}))

	payload := buf.Bytes()[352:]
	require.Equal(t, []byte{0, 1, 2, 3}, payload)
}
