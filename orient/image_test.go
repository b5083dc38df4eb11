package orient_test

import (
	"math"
	"testing"

	"github.com/mjw/volconv/orient"
	"github.com/stretchr/testify/require"
)

func smallGrid(cols, rows, slices int) [][][]float64 {
	data := make([][][]float64, cols)
	for c := range data {
		data[c] = make([][]float64, rows)
		for r := range data[c] {
			data[c][r] = make([]float64, slices)
			for s := range data[c][r] {
				data[c][r][s] = float64(c*100 + r*10 + s)
			}
		}
	}
	return data
}

func axialOrient() [][6]float64 {
	return [][6]float64{{1, 0, 0, 0, 1, 0}}
}

func TestNewImageIdentityQfacPositive(t *testing.T) {
	delta := [3]float64{0, 0, 2.0}
	img := orient.NewImage(smallGrid(4, 5, 3), [3]float64{0.9375, 0.9375, 2.0}, axialOrient(), [3]float64{-110, -110, 0}, &delta)

	require.Equal(t, [3]string{"i", "j", "k"}, img.Axes)
	qfac, err := img.CheckSliceDir()
	require.NoError(t, err)
	require.Equal(t, 1.0, qfac)
	require.Equal(t, orient.Axial, img.FindOrient())
}

func TestNewImageNegativeDeltaFlipsK(t *testing.T) {
	delta := [3]float64{0, 0, -2.0}
	img := orient.NewImage(smallGrid(4, 5, 3), [3]float64{0.9375, 0.9375, 2.0}, axialOrient(), [3]float64{-110, -110, 0}, &delta)

	require.Equal(t, [3]string{"i", "j", "-k"}, img.Axes)
}

func TestFindOrientSagittalAndCoronal(t *testing.T) {
	sag := [][6]float64{{0, 1, 0, 0, 0, -1}}
	cor := [][6]float64{{1, 0, 0, 0, 0, -1}}

	sagImg := orient.NewImage(smallGrid(2, 2, 2), [3]float64{1, 1, 1}, sag, [3]float64{}, nil)
	require.Equal(t, orient.Sagittal, sagImg.FindOrient())
	require.Equal(t, "sag", sagImg.FindOrient().Short())

	corImg := orient.NewImage(smallGrid(2, 2, 2), [3]float64{1, 1, 1}, cor, [3]float64{}, nil)
	require.Equal(t, orient.Coronal, corImg.FindOrient())
}

func TestFlipHAndFlipVRoundTripRestoresOrient(t *testing.T) {
	img := orient.NewImage(smallGrid(4, 5, 3), [3]float64{1, 1, 1}, axialOrient(), [3]float64{0, 0, 0}, nil)
	before := img.FindOrient()

	img.FlipH()
	require.Equal(t, "-i", img.Axes[0])
	img.FlipH()
	require.Equal(t, "i", img.Axes[0])

	img.FlipV()
	require.Equal(t, "-j", img.Axes[1])
	img.FlipV()
	require.Equal(t, "j", img.Axes[1])

	require.Equal(t, before, img.FindOrient())
}

func TestQuaternionNonNegativeAAndOrthonormal(t *testing.T) {
	img := orient.NewImage(smallGrid(2, 2, 2), [3]float64{1, 1, 1}, axialOrient(), [3]float64{1, 2, 3}, nil)

	qfac, b, c, d, qoffx, qoffy, qoffz, err := img.Quaternion()
	require.NoError(t, err)
	require.Equal(t, 1.0, qfac)
	require.Equal(t, -1.0, qoffx)
	require.Equal(t, -2.0, qoffy)
	require.Equal(t, 3.0, qoffz)

	a := math.Sqrt(1 - b*b - c*c - d*d)
	require.GreaterOrEqual(t, a, 0.0)
}

func TestReOrientCoronalToAxial(t *testing.T) {
	cor := [][6]float64{{1, 0, 0, 0, 0, -1}}
	img := orient.NewImage(smallGrid(4, 3, 5), [3]float64{1, 1, 2}, cor, [3]float64{0, 0, 0}, nil)
	require.Equal(t, orient.Coronal, img.FindOrient())

	require.NoError(t, img.ReOrient(orient.Axial))
	require.Equal(t, orient.Axial, img.FindOrient())
}

func TestMapAxisFindsPermutedAxis(t *testing.T) {
	axes := [3]string{"i", "-k", "j"}
	require.Equal(t, "I", orient.MapAxisIn("i", axes))
	require.Equal(t, "-J", orient.MapAxisIn("k", axes))
	require.Equal(t, "F", orient.MapAxisIn("q", axes))
}

func TestDcmToGridRequiresUntransposedAxes(t *testing.T) {
	img := orient.NewImage(smallGrid(2, 2, 2), [3]float64{1, 1, 1}, axialOrient(), [3]float64{0, 0, 0}, nil)
	img.Axes[0] = "j"

	_, err := img.DcmToGrid([3]float64{1, 0, 0})
	require.Error(t, err)
}
