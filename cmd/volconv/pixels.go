package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/mjw/volconv/reader"
	"github.com/mjw/volconv/series"
)

// decodePlane reads one (rows, cols) plane of raw, uncompressed native
// pixel data out of path at loc, applying rescale and returning it as
// [col][row] to match orient.Image's storage order. When mosaic is
// non-nil, rows/cols name the true per-tile shape and the plane is cropped
// out of the larger mosaic image at the tile's grid position rather than
// read as a standalone image. Decoding compressed transfer syntaxes
// (JPEG, RLE) is the pixel-decoding pipeline the spec names as an
// external collaborator; this only walks the bytes the reader already
// located.
func decodePlane(path string, loc reader.PixelLocator, rows, cols, bitsAllocated int, rescale series.Rescale, end series.Endian, mosaic *series.MosaicDescriptor) ([][]float64, error) {
	bpp := bitsAllocated / 8
	if bpp != 1 && bpp != 2 {
		return nil, fmt.Errorf("unsupported bits allocated %d", bitsAllocated)
	}

	fullRows, fullCols := rows, cols
	if mosaic != nil {
		fullRows, fullCols = mosaic.FullRows, mosaic.FullCols
	}
	need := int64(fullRows * fullCols * bpp)
	if int64(loc.Length) < need {
		return nil, fmt.Errorf("pixel data too short: have %d bytes, need %d", loc.Length, need)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, need)
	if _, err := f.ReadAt(buf, loc.Offset); err != nil {
		return nil, fmt.Errorf("reading pixel data: %w", err)
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if end == series.BigEndian {
		order = binary.BigEndian
	}

	rowOff, colOff := 0, 0
	if mosaic != nil {
		rowOff = mosaic.RPos * rows
		colOff = mosaic.CPos * cols
	}

	out := make([][]float64, cols)
	for c := range out {
		out[c] = make([]float64, rows)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fr, fc := rowOff+r, colOff+c
			i := (fr*fullCols + fc) * bpp
			var raw float64
			if bpp == 1 {
				raw = float64(buf[i])
			} else {
				raw = float64(order.Uint16(buf[i : i+2]))
			}
			out[c][r] = raw*rescale.Slope + rescale.Intercept
		}
	}
	return out, nil
}
