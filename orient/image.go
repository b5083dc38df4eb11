// Package orient implements the oriented-image model (component C5): a
// voxel grid stored with DICOM i/j/k axis conventions, plus the flips,
// canonical-plane reorientation, quaternion derivation, and axis-mapping
// machinery needed to hand that grid to a NIfTI or GIPL writer.
//
// Vectors and vector/matrix arithmetic use gonum.org/v1/gonum/mat and
// gonum.org/v1/gonum/floats rather than hand-rolled loops, matching the
// idiom the rest of the retrieval pack's numeric code (gonum-gonum) uses
// for this kind of small linear algebra.
package orient

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// eps is the tolerance below which a vector magnitude or dot-product
// residue is treated as exactly zero.
const eps = 1e-5

// atol is the angular tolerance, in degrees, allowed between normk and
// delta before checkSliceDir refuses to produce a qfac.
const atol = 2.0

// Plane names the canonical anatomical planes findOrient recognizes.
type Plane int

const (
	Nonstd Plane = iota
	Axial
	Sagittal
	Coronal
)

// String renders p using its long name ("Axial", "Sagittal", ...).
func (p Plane) String() string {
	switch p {
	case Axial:
		return "Axial"
	case Sagittal:
		return "Sagittal"
	case Coronal:
		return "Coronal"
	default:
		return "Nonstd"
	}
}

// Short renders p using its three-letter sub-series suffix ("axi", "obl",
// ...).
func (p Plane) Short() string {
	switch p {
	case Axial:
		return "axi"
	case Sagittal:
		return "sag"
	case Coronal:
		return "cor"
	default:
		return "obl"
	}
}

// Image holds a 3-D voxel grid plus the DICOM geometry needed to place it
// in patient space and to re-derive a NIfTI qform from it. Data is indexed
// [col][row][slice], matching the DICOM row-major in-plane convention with
// slices as the outer axis; Fortran-order serialization is the writer's
// concern, not this type's.
type Image struct {
	Data [][][]float64

	// Pixdim is the voxel size in millimetres along the current storage
	// axes.
	Pixdim [3]float64

	// I, J are the DICOM row/column unit vectors in LPS. K is derived,
	// never stored directly: callers use Normk().
	I, J [3]float64

	// Offset is the DICOM-space position of voxel (0,0,0).
	Offset [3]float64

	// Delta is the vector between the first two actual slice positions,
	// nil when only one slice exists.
	Delta *[3]float64

	// Axes records how the current storage axes relate to the original
	// DICOM grid axes i, j, k, as one of "i","j","k","-i","-j","-k".
	// Starts as ["i","j","k"], or ["i","j","-k"] if the initial qfac is
	// negative.
	Axes [3]string

	// Mixed is true when this image was assembled from slices with more
	// than one orientation merged within rounding tolerance; I and J are
	// then identity placeholders, not meaningful unit vectors.
	Mixed bool
}

// NewImage builds an Image from a voxel grid shaped [cols][rows][slices],
// a pixel size triple, and one or more DICOM orientation vector pairs. A
// multi-element orient argument marks the image Mixed, per the original
// OrientedImage constructor's handling of merged orientations.
func NewImage(data [][][]float64, pixdim [3]float64, orient [][6]float64, offset [3]float64, delta *[3]float64) *Image {
	img := &Image{
		Data:   data,
		Pixdim: pixdim,
		Offset: offset,
		Delta:  delta,
		Axes:   [3]string{"i", "j", "k"},
	}
	if len(orient) == 1 {
		o := orient[0]
		img.I = [3]float64{o[0], o[1], o[2]}
		img.J = [3]float64{o[3], o[4], o[5]}
	} else {
		img.I = [3]float64{1, 0, 0}
		img.J = [3]float64{0, 1, 0}
		img.Mixed = true
	}

	qfac, err := img.checkSliceDir(img.Normk())
	if err == nil && qfac < 0 {
		img.Axes[2] = flipAxis(img.Axes[2])
	}
	return img
}

// Normk returns k, the right-handed cross product i x j: the theoretical
// slice-normal direction, independent of actual stacking order.
func (img *Image) Normk() [3]float64 {
	return cross(img.I, img.J)
}

// checkSliceDir computes the unit dot product of k and Delta, clamped to
// [-1,1] within eps, and converts it to a sign: +1 when Delta points along
// k, -1 when opposite, 0 when Delta is too short to have a direction. It
// fails when the angle between k and Delta falls strictly between atol
// and 180-atol degrees: the volume is then skewed past tolerance.
func (img *Image) checkSliceDir(k [3]float64) (float64, error) {
	if img.Delta == nil {
		return 1.0, nil
	}
	d := *img.Delta
	dn := floats.Norm(d[:], 2)
	if dn < eps {
		return 0.0, nil
	}
	kn := floats.Norm(k[:], 2)
	normdot := dot(k, d) / (kn * dn)
	if normdot > 1.0 && normdot < 1.0+eps {
		normdot = 1.0
	}
	if normdot < -1.0 && normdot > -1.0-eps {
		normdot = -1.0
	}
	angle := math.Acos(normdot) * 180.0 / math.Pi
	switch {
	case angle > 180.0-atol:
		return -1.0, nil
	case angle < atol:
		return 1.0, nil
	default:
		return 0, fmt.Errorf("orient: inter-slice vector and slice normal differ by %.2f deg, exceeds %.2f deg tolerance", angle, atol)
	}
}

// CheckSliceDir is the exported form of checkSliceDir, used by ReOrient
// and by callers that need the qfac without recomputing Normk themselves.
func (img *Image) CheckSliceDir() (float64, error) {
	return img.checkSliceDir(img.Normk())
}

// simplify finds the nearby axis-aligned unit vector: the coordinate of
// largest absolute value becomes +-1, the rest zero.
func simplify(v [3]float64) [3]int {
	largest := 0.0
	which := -1
	for n, x := range v {
		if math.Abs(x) > math.Abs(largest) {
			largest = x
			which = n
		}
	}
	var out [3]int
	if which < 0 {
		return out
	}
	if largest >= 0.0 {
		out[which] = 1
	} else {
		out[which] = -1
	}
	return out
}

// FindOrient classifies the image by the axis-aligned unit vectors
// closest to I and J.
func (img *Image) FindOrient() Plane {
	if img.Mixed {
		return Nonstd
	}
	si := simplify(img.I)
	sj := simplify(img.J)
	switch {
	case si == [3]int{1, 0, 0} && sj == [3]int{0, 1, 0}:
		return Axial
	case si == [3]int{0, 1, 0} && sj == [3]int{0, 0, -1}:
		return Sagittal
	case si == [3]int{1, 0, 0} && sj == [3]int{0, 0, -1}:
		return Coronal
	default:
		return Nonstd
	}
}

// flipAxis flips the sign of a single axis label ("j" <-> "-j").
func flipAxis(s string) string {
	if strings.HasPrefix(s, "-") {
		return s[1:]
	}
	return "-" + s
}

// FlipV flips the image along its j (row) axis: translates Offset,
// negates J, reverses the row axis of Data, and flips the sign of
// Axes[1]. Unit vectors stay expressed in DICOM coordinates.
func (img *Image) FlipV() {
	rows := len(img.Data[0])
	infovj := float64(rows-1) * img.Pixdim[1]
	for n := 0; n < 3; n++ {
		img.Offset[n] += img.J[n] * infovj
	}
	img.J = neg(img.J)
	for c := range img.Data {
		reverseRows(img.Data[c])
	}
	img.Axes[1] = flipAxis(img.Axes[1])
}

// FlipH flips the image along its i (column) axis: translates Offset,
// negates I, reverses the column axis of Data, and flips the sign of
// Axes[0].
func (img *Image) FlipH() {
	cols := len(img.Data)
	infovi := float64(cols-1) * img.Pixdim[0]
	for n := 0; n < 3; n++ {
		img.Offset[n] += img.I[n] * infovi
	}
	img.I = neg(img.I)
	reverseOuter(img.Data)
	img.Axes[0] = flipAxis(img.Axes[0])
}

func reverseRows(plane [][]float64) {
	for i, j := 0, len(plane)-1; i < j; i, j = i+1, j-1 {
		plane[i], plane[j] = plane[j], plane[i]
	}
}

func reverseOuter(data [][][]float64) {
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
}

// recalcDelta rebuilds Delta from the current Normk and Pixdim[2],
// assuming the grid is orthogonal. Used after ReOrient, which leaves the
// physical slice spacing in Pixdim[2] but invalidates the prior Delta
// vector.
func (img *Image) recalcDelta() {
	k := img.Normk()
	s := img.Pixdim[2]
	d := [3]float64{k[0] * s, k[1] * s, k[2] * s}
	img.Delta = &d
}

// swapJK transposes Data's row and slice axes ([cols][rows][slices] ->
// [cols][slices][rows]), used by ReOrient(Axial) from a coronal source.
func swapJK(data [][][]float64) [][][]float64 {
	cols := len(data)
	rows := len(data[0])
	slices := len(data[0][0])
	out := make([][][]float64, cols)
	for c := 0; c < cols; c++ {
		out[c] = make([][]float64, slices)
		for s := 0; s < slices; s++ {
			out[c][s] = make([]float64, rows)
			for r := 0; r < rows; r++ {
				out[c][s][r] = data[c][r][s]
			}
		}
	}
	return out
}

// transposeSagittalToAxial implements numpy's transpose(2,0,1) over
// [cols][rows][slices]: new axis 0 = old slices, new axis 1 = old cols,
// new axis 2 = old rows.
func transposeSagittalToAxial(data [][][]float64) [][][]float64 {
	cols := len(data)
	rows := len(data[0])
	slices := len(data[0][0])
	out := make([][][]float64, slices)
	for s := 0; s < slices; s++ {
		out[s] = make([][]float64, cols)
		for c := 0; c < cols; c++ {
			out[s][c] = make([]float64, rows)
			for r := 0; r < rows; r++ {
				out[s][c][r] = data[c][r][s]
			}
		}
	}
	return out
}

// ReOrient transposes and flips the image into the requested canonical
// plane, supporting Coronal->Axial and Sagittal->Axial. Asking for the
// image's own current plane is a no-op that returns nil; any other
// unsupported pair is an error.
func (img *Image) ReOrient(new Plane) error {
	old := img.FindOrient()
	qfac, qerr := img.CheckSliceDir()
	if qerr != nil {
		qfac = 1
	}

	if old == new {
		return nil
	}

	switch {
	case old == Coronal && new == Axial:
		// i'=i, j'=k, k'=-j
		img.Data = swapJK(img.Data)
		img.J = img.Normk()
		img.Pixdim = [3]float64{img.Pixdim[0], img.Pixdim[2], img.Pixdim[1]}
		img.Axes = [3]string{img.Axes[0], img.Axes[2], img.Axes[1]}

		// flip k'
		reverseSlicesAxis(img.Data)
		infovk := float64(len(img.Data[0][0])-1) * img.Pixdim[2]
		k := img.Normk()
		for n := 0; n < 3; n++ {
			img.Offset[n] -= k[n] * infovk
		}
		img.Axes[2] = flipAxis(img.Axes[2])

		if qfac < 0 {
			for c := range img.Data {
				reverseRows(img.Data[c])
			}
			infovj := float64(len(img.Data[0])-1) * img.Pixdim[1]
			for n := 0; n < 3; n++ {
				img.Offset[n] -= img.J[n] * infovj
			}
			img.Axes[1] = flipAxis(img.Axes[1])
		}
		img.recalcDelta()
		return nil

	case old == Sagittal && new == Axial:
		// i'=-k, j'=i, k'=-j
		img.Data = transposeSagittalToAxial(img.Data)
		k := img.Normk()
		img.J = img.I
		img.I = neg(k)
		img.Pixdim = [3]float64{img.Pixdim[2], img.Pixdim[0], img.Pixdim[1]}
		img.Axes = [3]string{flipAxis(img.Axes[2]), img.Axes[0], img.Axes[1]}

		// flip k'
		reverseSlicesAxis(img.Data)
		infovk := float64(len(img.Data[0][0])-1) * img.Pixdim[2]
		nk := img.Normk()
		for n := 0; n < 3; n++ {
			img.Offset[n] -= nk[n] * infovk
		}
		img.Axes[2] = flipAxis(img.Axes[2])

		if qfac > 0 {
			reverseOuter(img.Data)
			infovi := float64(len(img.Data)-1) * img.Pixdim[0]
			for n := 0; n < 3; n++ {
				img.Offset[n] -= img.I[n] * infovi
			}
			img.Axes[0] = flipAxis(img.Axes[0])
		}
		img.recalcDelta()
		return nil

	default:
		return fmt.Errorf("orient: unsupported reorientation %s -> %s", old, new)
	}
}

// reverseSlicesAxis reverses Data's innermost (slice) axis in place.
func reverseSlicesAxis(data [][][]float64) {
	for c := range data {
		plane := data[c]
		for r := range plane {
			row := plane[r]
			for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
				row[i], row[j] = row[j], row[i]
			}
		}
	}
}

// Quaternion returns the NIfTI qform representation (qfac, b, c, d,
// qoffset_x, qoffset_y, qoffset_z), mapping DICOM LPS to NIfTI RAS.
func (img *Image) Quaternion() (qfac, b, c, d, qoffx, qoffy, qoffz float64, err error) {
	r := mat.NewDense(3, 3, nil)
	r.Set(0, 0, -img.I[0])
	r.Set(1, 0, -img.I[1])
	r.Set(2, 0, img.I[2])
	r.Set(0, 1, -img.J[0])
	r.Set(1, 1, -img.J[1])
	r.Set(2, 1, img.J[2])

	k := img.Normk()
	qfac, err = img.checkSliceDir(k)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, 0, err
	}
	r.Set(0, 2, -k[0])
	r.Set(1, 2, -k[1])
	r.Set(2, 2, k[2])

	_, b, c, d = rotationToQuaternion(r)
	return qfac, b, c, d, -img.Offset[0], -img.Offset[1], img.Offset[2], nil
}

// rotationToQuaternion converts a 3x3 rotation matrix to a unit quaternion
// using the branching form from the reference NIfTI C library, forcing
// a >= 0.
func rotationToQuaternion(r *mat.Dense) (a, b, c, d float64) {
	r11, r12, r13 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r21, r22, r23 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r31, r32, r33 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	tr := r11 + r22 + r33 + 1.0
	if tr > 0.5 {
		a = 0.5 * math.Sqrt(tr)
		b = 0.25 * (r32 - r23) / a
		c = 0.25 * (r13 - r31) / a
		d = 0.25 * (r21 - r12) / a
	} else {
		xd := 1.0 + r11 - (r22 + r33)
		yd := 1.0 + r22 - (r11 + r33)
		zd := 1.0 + r33 - (r11 + r22)
		switch {
		case xd > 1.0:
			b = 0.5 * math.Sqrt(xd)
			c = 0.25 * (r12 + r21) / b
			d = 0.25 * (r13 + r31) / b
			a = 0.25 * (r32 - r23) / b
		case yd > 1.0:
			c = 0.5 * math.Sqrt(yd)
			b = 0.25 * (r12 + r21) / c
			d = 0.25 * (r23 + r32) / c
			a = 0.25 * (r13 - r31) / c
		default:
			d = 0.5 * math.Sqrt(zd)
			b = 0.25 * (r13 + r31) / d
			c = 0.25 * (r23 + r32) / d
			a = 0.25 * (r21 - r12) / d
		}
	}
	if a < 0.0 {
		a, b, c, d = -a, -b, -c, -d
	}
	return a, b, c, d
}

// DcmToGrid expresses a DICOM-space vector v in grid coordinates [i j
// normk], valid only while Axes[0]=="i" and Axes[1]=="j" (the image has
// not yet been transposed by ReOrient).
func (img *Image) DcmToGrid(v [3]float64) ([3]float64, error) {
	if img.Axes[0] != "i" || img.Axes[1] != "j" {
		return [3]float64{}, fmt.Errorf("orient: DcmToGrid requires untransposed axes, got %v", img.Axes)
	}
	k := img.Normk()
	t := mat.NewDense(3, 3, []float64{
		img.I[0], img.J[0], k[0],
		img.I[1], img.J[1], k[1],
		img.I[2], img.J[2], k[2],
	})
	var ti mat.Dense
	if err := ti.Inverse(t); err != nil {
		return [3]float64{}, fmt.Errorf("orient: DcmToGrid: singular axis matrix: %w", err)
	}
	vg := mat.NewVecDense(3, v[:])
	var out mat.VecDense
	out.MulVec(&ti, vg)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}, nil
}

// MapAxis maps a source axis label like "j" or "-j" through the current
// Axes permutation into the output [I J K] frame, returning "F" if s
// names no axis currently present.
func (img *Image) MapAxis(s string) string {
	return MapAxisIn(s, img.Axes)
}

// MapAxisIn is the free-function form of MapAxis, usable without an
// Image when only the axes permutation is known (e.g. from a persisted
// index.json record).
func MapAxisIn(s string, axes [3]string) string {
	ret := [3]string{"I", "J", "K"}
	for idx, a := range axes {
		if a == s {
			return ret[idx]
		}
		if a == "-"+s {
			return "-" + ret[idx]
		}
	}
	if strings.HasPrefix(s, "-") {
		bare := s[1:]
		for idx, a := range axes {
			if a == bare {
				return "-" + ret[idx]
			}
		}
	}
	return "F"
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func neg(a [3]float64) [3]float64 {
	return [3]float64{-a[0], -a[1], -a[2]}
}
