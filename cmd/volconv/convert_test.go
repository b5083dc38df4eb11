package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mjw/volconv/reader"
	"github.com/mjw/volconv/series"
)

func TestSliceGeometryOffsetAndDelta(t *testing.T) {
	e := &series.Entity{
		Slicesd: map[float64][3]float64{
			0: {1, 2, 3},
			1: {1, 2, 5},
		},
	}
	offset, delta := sliceGeometry(e, []float64{0, 1})
	require.Equal(t, [3]float64{1, 2, 3}, offset)
	require.NotNil(t, delta)
	require.Equal(t, [3]float64{0, 0, 2}, *delta)
}

func TestSliceGeometrySingleSliceHasNilDelta(t *testing.T) {
	e := &series.Entity{Slicesd: map[float64][3]float64{0: {1, 1, 1}}}
	offset, delta := sliceGeometry(e, []float64{0})
	require.Equal(t, [3]float64{1, 1, 1}, offset)
	require.Nil(t, delta)
}

func TestSliceGeometryFallsBackToOriginWithoutPositions(t *testing.T) {
	e := &series.Entity{Slicesd: map[float64][3]float64{}}
	offset, delta := sliceGeometry(e, []float64{0, 1})
	require.Equal(t, [3]float64{}, offset)
	require.Nil(t, delta)
}

func TestOrientVectorsDefaultsToIdentityWhenEmpty(t *testing.T) {
	e := &series.Entity{Orient: map[[6]float64]bool{}}
	vs := orientVectors(e)
	require.Equal(t, [][6]float64{{1, 0, 0, 0, 1, 0}}, vs)
}

func TestVolumeSuffix(t *testing.T) {
	require.Equal(t, "", volumeSuffix("t00001", 1, 1, 1))
	require.Equal(t, "-t00002", volumeSuffix("t00002", 1, 3, 1))
	require.Equal(t, "-e2", volumeSuffix("t00001", 2, 1, 2))
	require.Equal(t, "-t00002-e2", volumeSuffix("t00002", 2, 3, 2))
}

func TestOutputBaseWithoutMatcherUsesSeriesKey(t *testing.T) {
	require.Equal(t, "5", outputBase(nil, series.StudyKey{}, series.SeriesKey("5")))
}

func TestRepresentativeFilePicksEarliestKey(t *testing.T) {
	e := &series.Entity{File: map[series.SliceTimeEcho]string{
		{Slice: 2, Time: "t00001", Echo: 1}: "/data/b.dcm",
		{Slice: 0, Time: "t00001", Echo: 1}: "/data/a.dcm",
	}}
	require.Equal(t, "a.dcm", representativeFile(e))
}

func TestDecodeVolumeZeroFillsMissingSlice(t *testing.T) {
	e := &series.Entity{
		Cols: 2, Rows: 2,
		File:    map[series.SliceTimeEcho]string{},
		Pixels:  map[series.SliceTimeEcho]reader.PixelLocator{},
		Rescale: map[series.SliceTimeEcho]series.Rescale{},
		End:     map[series.SliceTimeEcho]series.Endian{},
	}
	report := series.NewReport()
	data, err := decodeVolume(e, []float64{0, 1}, "t00001", 1, report)
	require.NoError(t, err)
	require.Equal(t, 2, len(data))
	require.Equal(t, 0.0, data[0][0][0])
	require.Equal(t, 1, report.Warnings())
}
