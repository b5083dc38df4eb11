package series

import (
	"math"
	"strconv"
	"strings"

	"github.com/mjw/volconv/csa"
)

// detectMosaicTiles reports how many tiles a Siemens mosaic file packs:
// the forced Options.Mosaic count when positive, otherwise the CSA
// "NumberOfImagesInMosaic" field when present, otherwise zero ("not a
// mosaic").
func detectMosaicTiles(hdr csa.Header, forced int) int {
	if forced > 0 {
		return forced
	}
	if f, ok := hdr["NumberOfImagesInMosaic"]; ok && len(f.Items) > 0 {
		if n, err := parseCSAInt(f.Items[0]); err == nil {
			return n
		}
	}
	return 0
}

func parseCSAInt(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// mosaicGrid returns the (rows, cols) tile-grid shape for n tiles: the
// smallest square grid that holds them all, the convention Siemens
// scanners use when laying mosaic tiles out.
func mosaicGrid(n int) (rows, cols int) {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	return side, side
}

// mosaicCorrection computes the true per-tile ImagePositionPatient from
// the mosaic file's own (tile-grid-corner) position tag: Siemens mosaics
// report the position of the corner of the whole padded tile grid, not
// of the first real tile, so the true corner must be shifted inward by
// half the padding on each in-plane axis. i and j are the row/column
// direction cosines, dr/dc the pixel spacing, and tileRows/tileCols the
// true (unpadded) single-slice shape.
func mosaicCorrection(position [3]float64, i, j [3]float64, dr, dc float64, gridRows, gridCols, tileRows, tileCols int) [3]float64 {
	padRows := float64(gridRows*tileRows-tileRows) / 2
	padCols := float64(gridCols*tileCols-tileCols) / 2
	var out [3]float64
	for a := 0; a < 3; a++ {
		out[a] = position[a] + i[a]*padCols*dc + j[a]*padRows*dr
	}
	return out
}

// tileDescriptor builds the MosaicDescriptor for tile index idx (0-based,
// row-major) within an n-tile mosaic whose file-level Rows/Columns tags
// report fullRows x fullCols (the padded tile-grid extent).
func tileDescriptor(idx, n, fullRows, fullCols int) *MosaicDescriptor {
	rows, cols := mosaicGrid(n)
	return &MosaicDescriptor{
		MRows:    rows,
		MCols:    cols,
		N:        n,
		RPos:     idx / cols,
		CPos:     idx % cols,
		FullRows: fullRows,
		FullCols: fullCols,
	}
}
