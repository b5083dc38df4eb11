package series

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleGroupNamesNaiveStackAsUnk(t *testing.T) {
	recs := []record{
		{
			path:      "synthetic-1",
			fields:    fieldset{instanceNumber: 1, hasInstanceNumber: true, cols: 64, rows: 64},
			orientKey: [6]float64{},
			sliceIdx:  0,
		},
		{
			path:      "synthetic-2",
			fields:    fieldset{instanceNumber: 2, hasInstanceNumber: true, cols: 64, rows: 64},
			orientKey: [6]float64{},
			sliceIdx:  1,
		},
	}

	result := &Result{Studies: map[StudyKey]map[SeriesKey]*Entity{}}
	report := NewReport()
	warnings := 0
	gk := groupKey{study: StudyKey{StudyUID: "1.2.3"}, series: 7}

	assembleGroup(result, report, gk, recs, Options{StackUnk: true}, &warnings)

	series, ok := result.Studies[gk.study]
	require.True(t, ok)
	e, ok := series[SeriesKey("7unk")]
	require.True(t, ok)
	require.Len(t, e.Slices, 2)
}
