package index_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mjw/volconv/index"
	"github.com/mjw/volconv/orient"
	"github.com/mjw/volconv/series"
)

func TestBuildSeriesBasicFields(t *testing.T) {
	e := &series.Entity{
		Rows: 256, Cols: 256,
		Slices: map[float64]bool{0: true, 2: true},
		Echoes: map[int]bool{1: true},
		TE:     map[int]float64{1: 4.6},
		Times:  map[string]bool{"t00001": true},
		Orient: map[[6]float64]bool{{1, 0, 0, 0, 1, 0}: true},
		Desc:   "AX T2",
		Type:   "ORIGINAL/PRIMARY",
		Date:   "20240101",
		Time:   "120000",
		TR:     2000,
		Flip:   90,
	}

	s := index.BuildSeries(series.SeriesKey("5"), e, nil, index.Outputs{Nii: "005.nii"})

	require.Equal(t, "5", s.ID)
	require.Equal(t, 256, s.Rows)
	require.Equal(t, 2, s.Slices)
	require.Equal(t, 1, s.Times)
	require.Equal(t, 1, s.Echoes)
	require.False(t, s.FlipVar)
	require.Equal(t, "005.nii", s.Nii)
	require.Equal(t, [3]string{"-x", "-y", "z"}, s.PatientAxesMap)
}

func TestBuildSeriesFlipVarWhenMerged(t *testing.T) {
	e := &series.Entity{
		Orient: map[[6]float64]bool{
			{1, 0, 0, 0, 1, 0}:          true,
			{1, 0, 0, 0, 0.999, 0.001}: true,
		},
		Slices: map[float64]bool{},
		Echoes: map[int]bool{},
		Times:  map[string]bool{},
	}
	s := index.BuildSeries(series.SeriesKey("5"), e, nil, index.Outputs{})
	require.True(t, s.FlipVar)
}

func TestBuildSeriesDiffusionGrid(t *testing.T) {
	img := orient.NewImage(nil, [3]float64{1, 1, 1}, [][6]float64{{1, 0, 0, 0, 1, 0}}, [3]float64{}, nil)
	e := &series.Entity{
		Slices: map[float64]bool{},
		Echoes: map[int]bool{},
		Times:  map[string]bool{"t00001": true},
		Diff:   map[string][3]float64{"t00001": {1, 0, 0}},
	}
	s := index.BuildSeries(series.SeriesKey("5"), e, img, index.Outputs{})
	require.Equal(t, [3]float64{1, 0, 0}, s.Diffusion["t00001"])
	require.InDeltaSlice(t, []float64{1, 0, 0}, s.DiffusionGrid["t00001"][:], 1e-9)
}

func TestBuildOrdersStudiesAndSeries(t *testing.T) {
	result := &series.Result{Studies: map[series.StudyKey]map[series.SeriesKey]*series.Entity{
		{StudyUID: "b"}: {
			series.SeriesKey("2"): {Slices: map[float64]bool{}, Echoes: map[int]bool{}, Times: map[string]bool{}},
			series.SeriesKey("1"): {Slices: map[float64]bool{}, Echoes: map[int]bool{}, Times: map[string]bool{}},
		},
		{StudyUID: "a"}: {
			series.SeriesKey("1"): {Slices: map[float64]bool{}, Echoes: map[int]bool{}, Times: map[string]bool{}},
		},
	}}

	studies := index.Build(result, nil, nil)
	require.Len(t, studies, 2)
	require.Equal(t, "a", studies[0].ID)
	require.Equal(t, "b", studies[1].ID)
	require.Equal(t, []string{"1", "2"}, []string{studies[1].Series[0].ID, studies[1].Series[1].ID})

	var buf bytes.Buffer
	require.NoError(t, index.Write(&buf, studies))
	var roundTrip []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &roundTrip))
	require.Len(t, roundTrip, 2)
}
