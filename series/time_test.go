package series

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconstructTimesConsistentGroupsProduceNoWarnings(t *testing.T) {
	perGroup := map[sliceEchoKey][]instanceToken{
		{slice: 0, echo: 0}: {{instance: 1, token: 0}, {instance: 3, token: 1}},
		{slice: 1, echo: 0}: {{instance: 2, token: 2}, {instance: 4, token: 3}},
	}
	reconstructed, stats := reconstructTimes(perGroup)
	require.False(t, stats.missingPlanes)
	require.False(t, stats.spacingInconsistent)
	require.False(t, stats.multipleVolumeAxes)
	require.Equal(t, "t00001", reconstructed[0])
	require.Equal(t, "t00002", reconstructed[1])
	require.Equal(t, "t00001", reconstructed[2])
	require.Equal(t, "t00002", reconstructed[3])
}

func TestReconstructTimesFlagsMissingPlanesWhenGroupSizesDiffer(t *testing.T) {
	perGroup := map[sliceEchoKey][]instanceToken{
		{slice: 0, echo: 0}: {{instance: 1, token: 0}, {instance: 2, token: 1}, {instance: 3, token: 2}},
		{slice: 1, echo: 0}: {{instance: 4, token: 3}, {instance: 5, token: 4}},
	}
	_, stats := reconstructTimes(perGroup)
	require.True(t, stats.missingPlanes)
}

func TestReconstructTimesFlagsSpacingInconsistentOverMultipleAxes(t *testing.T) {
	// Group deltas disagree with each other (1 vs 2): spacingInconsistent
	// must win even though each group's own deltas look internally
	// constant, per the original's elif priority.
	perGroup := map[sliceEchoKey][]instanceToken{
		{slice: 0, echo: 0}: {{instance: 1, token: 0}, {instance: 2, token: 1}, {instance: 3, token: 2}},
		{slice: 1, echo: 0}: {{instance: 10, token: 3}, {instance: 12, token: 4}, {instance: 14, token: 5}},
	}
	_, stats := reconstructTimes(perGroup)
	require.True(t, stats.spacingInconsistent)
	require.False(t, stats.multipleVolumeAxes)
}

func TestReconstructTimesFlagsMultipleVolumeAxesWhenDeltasAgreeButVary(t *testing.T) {
	// Both groups see the same two-delta sequence (1, 2), so the delta
	// lists match each other, but the deltas themselves are not constant.
	perGroup := map[sliceEchoKey][]instanceToken{
		{slice: 0, echo: 0}: {{instance: 1, token: 0}, {instance: 2, token: 1}, {instance: 4, token: 2}},
		{slice: 1, echo: 0}: {{instance: 10, token: 3}, {instance: 11, token: 4}, {instance: 13, token: 5}},
	}
	_, stats := reconstructTimes(perGroup)
	require.False(t, stats.spacingInconsistent)
	require.True(t, stats.multipleVolumeAxes)
}
