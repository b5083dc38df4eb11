package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mjw/volconv/reader"
	"github.com/mjw/volconv/series"
)

func TestDecodePlaneLittleEndianUint16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixels.bin")
	buf := make([]byte, 2*2*2)
	binary.LittleEndian.PutUint16(buf[0:], 10)
	binary.LittleEndian.PutUint16(buf[2:], 20)
	binary.LittleEndian.PutUint16(buf[4:], 30)
	binary.LittleEndian.PutUint16(buf[6:], 40)
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	plane, err := decodePlane(path, reader.PixelLocator{Offset: 0, Length: uint32(len(buf))}, 2, 2, 16, series.Rescale{Slope: 2, Intercept: 1}, series.LittleEndian, nil)
	require.NoError(t, err)
	// row 0: 10, 20 -> col0,row0=10*2+1=21 ; col1,row0=20*2+1=41
	require.Equal(t, 21.0, plane[0][0])
	require.Equal(t, 41.0, plane[1][0])
	require.Equal(t, 61.0, plane[0][1])
	require.Equal(t, 81.0, plane[1][1])
}

func TestDecodePlaneCropsMosaicTile(t *testing.T) {
	// A 4x4 mosaic packing four 2x2 tiles in a 2x2 grid, values 0..15
	// row-major. The bottom-right tile (RPos=1, CPos=1) should read the
	// bottom-right 2x2 quadrant: [[10,11],[14,15]].
	path := filepath.Join(t.TempDir(), "mosaic.bin")
	buf := make([]byte, 4*4*2)
	for v := 0; v < 16; v++ {
		binary.LittleEndian.PutUint16(buf[v*2:], uint16(v))
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	mosaic := &series.MosaicDescriptor{RPos: 1, CPos: 1, FullRows: 4, FullCols: 4}
	plane, err := decodePlane(path, reader.PixelLocator{Offset: 0, Length: uint32(len(buf))}, 2, 2, 16, series.Rescale{Slope: 1}, series.LittleEndian, mosaic)
	require.NoError(t, err)
	require.Equal(t, 10.0, plane[0][0])
	require.Equal(t, 11.0, plane[1][0])
	require.Equal(t, 14.0, plane[0][1])
	require.Equal(t, 15.0, plane[1][1])
}

func TestDecodePlaneRejectsShortPixelData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0o644))

	_, err := decodePlane(path, reader.PixelLocator{Offset: 0, Length: 2}, 2, 2, 16, series.Rescale{Slope: 1}, series.LittleEndian, nil)
	require.Error(t, err)
}
