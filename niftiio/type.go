// Package niftiio writes the oriented-image model (orient.Image) out as a
// single-file NIfTI-1 volume (.nii, "n+1\0" magic): a 348-byte
// zero-initialized header with fields at fixed offsets, padded to 352,
// followed by the Fortran-ordered raw voxel payload. Optional gzip
// wrapping is a stream transformation over the whole file, grounded on
// okieraised-gonii's use of klauspost/pgzip for the same purpose.
//
// Header layout (offset: field):
//
//	0   i32    sizeof_hdr = 348
//	40  i16    dim[0]            (rank, always 3 here)
//	42  7×i16  dim[1..7]         (shape; unused axes 0, or 1 with OnePadding)
//	70  i16    datatype
//	72  i16    bitpix
//	76  f32    pixdim[0]         (qfac)
//	80  7×f32  pixdim[1..7]      (voxel size; unused 0, or 1 with OnePadding)
//	108 f32    vox_offset = 352.0
//	112 f32    scl_slope         (1.0 with OnePadding, else 0)
//	116 f32    scl_inter         (0.0 with OnePadding, else 0)
//	123 i8     xyzt_units = 10   (mm + s)
//	148 80×c   descrip
//	252 i16    qform_code
//	254 i16    sform_code
//	256 6×f32  qdata (b,c,d,qoffset_x,qoffset_y,qoffset_z)
//	344 4×c    magic = "n+1\0"
package niftiio

// Type is a NIfTI-1 datatype code. Only the subset both this writer and
// giplio can emit is named here; the wider NIfTI-1 datatype space
// (Int64/UInt64/Float128/Complex256/RGB24) has no corresponding GIPL code
// and is out of scope.
type Type int16

const (
	Bool       Type = 1
	UInt8      Type = 2
	Int16      Type = 4
	Int32      Type = 8
	Float32    Type = 16
	Complex64  Type = 32
	Float64    Type = 64
	Int8       Type = 256
	UInt16     Type = 512
	UInt32     Type = 768
	Complex128 Type = 1792
)

// bitpix returns the number of bits per voxel for t, matching the
// teacher's NiftiType.Map bitpix column.
func (t Type) bitpix() int16 {
	switch t {
	case Bool, Int8, UInt8:
		return 8
	case Int16, UInt16:
		return 16
	case Int32, UInt32, Float32, Complex64:
		return 32
	case Float64, Complex128:
		return 64
	default:
		return 0
	}
}

// bytesPerVoxel is bitpix/8, except Complex64/Complex128 which pack two
// components (so the struct width doubles what bitpix alone implies for
// the scalar types it shares a bitpix with).
func (t Type) bytesPerVoxel() int {
	switch t {
	case Complex64:
		return 8
	case Complex128:
		return 16
	default:
		return int(t.bitpix()) / 8
	}
}

// Valid reports whether t is one of the codes this package knows how to
// encode.
func (t Type) Valid() bool {
	switch t {
	case Bool, Int8, UInt8, Int16, UInt16, Int32, UInt32, Float32, Float64, Complex64, Complex128:
		return true
	default:
		return false
	}
}
