// Package giplio writes the oriented-image model out as a GIPL volume:
// a 256-byte big-endian header at fixed offsets, then the raw payload,
// grounded on original_source/nifti/gipl.py.
//
// Header layout (offset: field, big-endian):
//
//	0   4×u16  image dims (cols, rows, slices, 1)
//	8   u16    type code
//	10  4×f32  voxel sizes
//	26  80×c   description
//	106 12×f32 transformation matrix (zeroed)
//	188 f64    min
//	196 f64    max
//	204 4×f64  origin
//	252 u32    magic = 719555000
package giplio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/mjw/volconv/niftiio"
	"github.com/mjw/volconv/orient"
)

const (
	headerSize = 256
	magic      = 719555000
)

// typeCodes maps a niftiio.Type to its GIPL wire code. Only the types
// both writers share are emitted; anything else is a Write error.
var typeCodes = map[niftiio.Type]uint16{
	niftiio.Bool:       1,
	niftiio.Int8:       7,
	niftiio.UInt8:      8,
	niftiio.Int16:      15,
	niftiio.UInt16:     16,
	niftiio.Int32:      31,
	niftiio.UInt32:     32,
	niftiio.Float32:    64,
	niftiio.Float64:    65,
	niftiio.Complex64:  192,
	niftiio.Complex128: 193,
}

// Options configures Write.
type Options struct {
	Datatype niftiio.Type
	Descrip  string
	Origin   [3]float64
}

// Write encodes img as a GIPL volume to w.
func Write(w io.Writer, img *orient.Image, opts Options) error {
	code, ok := typeCodes[opts.Datatype]
	if !ok {
		return fmt.Errorf("giplio: unsupported datatype %d", opts.Datatype)
	}
	if len(img.Data) == 0 || len(img.Data[0]) == 0 || len(img.Data[0][0]) == 0 {
		return fmt.Errorf("giplio: empty voxel grid")
	}

	cols := len(img.Data)
	rows := len(img.Data[0])
	slices := len(img.Data[0][0])

	hdr := make([]byte, headerSize)
	be := binary.BigEndian

	dims := [4]uint16{uint16(cols), uint16(rows), uint16(slices), 1}
	for i, v := range dims {
		be.PutUint16(hdr[2*i:], v)
	}

	be.PutUint16(hdr[8:], code)

	pixdim := [4]float32{float32(img.Pixdim[0]), float32(img.Pixdim[1]), float32(img.Pixdim[2]), 1.0}
	for i, v := range pixdim {
		be.PutUint32(hdr[10+4*i:], math.Float32bits(v))
	}

	descrip := opts.Descrip
	if len(descrip) > 80 {
		descrip = descrip[:80]
	}
	copy(hdr[26:26+80], descrip)

	// hdr[106:106+48] (transformation matrix) and hdr[188:204] (min/max)
	// are left zero, matching the teacher's writeHeader which never sets
	// them either ("ignore for now").

	for i, v := range opts.Origin {
		be.PutUint64(hdr[204+8*i:], math.Float64bits(v))
	}

	be.PutUint32(hdr[252:], magic)

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("giplio: writing header: %w", err)
	}
	if err := writePayload(w, img.Data, opts.Datatype); err != nil {
		return err
	}
	return nil
}

// writePayload streams img.Data in Fortran (column-major) order, the
// same voxel ordering niftiio uses, but big-endian per the GIPL
// convention.
func writePayload(w io.Writer, data [][][]float64, t niftiio.Type) error {
	cols := len(data)
	rows := len(data[0])
	slices := len(data[0][0])

	buf := make([]byte, bytesPerVoxel(t))
	be := binary.BigEndian

	for s := 0; s < slices; s++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if err := encodeVoxel(buf, be, t, data[c][r][s]); err != nil {
					return fmt.Errorf("giplio: %w", err)
				}
				if _, err := w.Write(buf); err != nil {
					return fmt.Errorf("giplio: writing payload: %w", err)
				}
			}
		}
	}
	return nil
}

func bytesPerVoxel(t niftiio.Type) int {
	switch t {
	case niftiio.Bool, niftiio.Int8, niftiio.UInt8:
		return 1
	case niftiio.Int16, niftiio.UInt16:
		return 2
	case niftiio.Int32, niftiio.UInt32, niftiio.Float32:
		return 4
	case niftiio.Float64, niftiio.Complex64:
		return 8
	case niftiio.Complex128:
		return 16
	default:
		return 0
	}
}

// encodeVoxel packs one scalar value into buf per t's wire width, mirroring
// niftiio's encoder but big-endian. Complex64/Complex128 store v as the
// real component with a zero imaginary component (see niftiio's note on
// Image carrying no imaginary channel).
func encodeVoxel(buf []byte, order binary.ByteOrder, t niftiio.Type, v float64) error {
	switch t {
	case niftiio.Bool:
		if v != 0 {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case niftiio.Int8:
		buf[0] = byte(int8(v))
	case niftiio.UInt8:
		buf[0] = byte(uint8(v))
	case niftiio.Int16:
		order.PutUint16(buf, uint16(int16(v)))
	case niftiio.UInt16:
		order.PutUint16(buf, uint16(v))
	case niftiio.Int32:
		order.PutUint32(buf, uint32(int32(v)))
	case niftiio.UInt32:
		order.PutUint32(buf, uint32(v))
	case niftiio.Float32:
		order.PutUint32(buf, math.Float32bits(float32(v)))
	case niftiio.Float64:
		order.PutUint64(buf, math.Float64bits(v))
	case niftiio.Complex64:
		order.PutUint32(buf[0:4], math.Float32bits(float32(v)))
		order.PutUint32(buf[4:8], math.Float32bits(0))
	case niftiio.Complex128:
		order.PutUint64(buf[0:8], math.Float64bits(v))
		order.PutUint64(buf[8:16], math.Float64bits(0))
	default:
		return fmt.Errorf("unsupported datatype %d", t)
	}
	return nil
}
