package series

import (
	"fmt"
	"sort"
)

// timeKey formats a volume time index as the sortable key Entity.Times
// uses. Instances are 1-based in the reconstructed sequence.
func timeKey(instance int) string {
	return fmt.Sprintf("t%05d", instance)
}

// sliceEchoKey groups the instance numbers dynamic-time reconstruction
// treats as one independent sequence: per SPEC_FULL.md's dynamic-time
// algorithm, instances are only comparable within the same slice AND
// echo, since a multi-echo acquisition interleaves unrelated instance
// sequences at a single slice location.
type sliceEchoKey struct {
	slice float64
	echo  int
}

// reconstructStats reports which of the three distinct conditions the
// original system warns about were found while reconstructing a dynamic
// time axis from instance numbers.
type reconstructStats struct {
	// missingPlanes is set when (slice,echo) groups disagree on how many
	// volumes were seen; with instance-order stacking, the missing
	// planes migrate to the later time indices.
	missingPlanes bool

	// spacingInconsistent is set when the groups' own internal instance
	// deltas differ from each other, meaning the guessed volume
	// assignment may not line up across groups at all.
	spacingInconsistent bool

	// multipleVolumeAxes is set when every group agrees on the same set
	// of deltas but those deltas are not themselves constant, suggesting
	// the series interleaves more than one varying axis.
	multipleVolumeAxes bool
}

// reconstructTimes assigns a volume time key to every file in a
// sub-series lacking an explicit TemporalPositionIdentifier, by sorting
// the instance numbers seen at each (slice, echo) location and using
// each file's rank within its own group as the time index. This mirrors
// the original system's "guess dynamic time from instance numbers"
// fallback: it assumes every (slice,echo) recurs the same number of
// times (once per volume) and that instances increase monotonically
// with time within a group.
//
// perGroup maps a (slice, echo) pair to the ordered list of (instance
// number, opaque per-file token) pairs seen there. The returned map
// gives each token its reconstructed time key, alongside the stats the
// caller should turn into warnings.
func reconstructTimes(perGroup map[sliceEchoKey][]instanceToken) (map[interface{}]string, reconstructStats) {
	out := make(map[interface{}]string)
	var stats reconstructStats

	sizes := map[int]bool{}
	var deltaLists [][]int
	var allDeltas []int
	timesMap := map[int]int{}

	for _, toks := range perGroup {
		sorted := append([]instanceToken(nil), toks...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].instance < sorted[j].instance })
		sizes[len(sorted)] = true

		var deltas []int
		for i := 1; i < len(sorted); i++ {
			deltas = append(deltas, sorted[i].instance-sorted[i-1].instance)
		}
		if len(deltas) > 0 {
			deltaLists = append(deltaLists, deltas)
			allDeltas = append(allDeltas, deltas...)
		}

		for i, t := range sorted {
			timesMap[t.instance] = i
		}
	}

	if len(sizes) > 1 {
		stats.missingPlanes = true
	}

	distinctDeltaLists := map[string]bool{}
	for _, dl := range deltaLists {
		distinctDeltaLists[fmt.Sprint(dl)] = true
	}
	if len(distinctDeltaLists) > 1 {
		stats.spacingInconsistent = true
	} else {
		distinctDeltas := map[int]bool{}
		for _, d := range allDeltas {
			distinctDeltas[d] = true
		}
		if len(distinctDeltas) > 1 {
			stats.multipleVolumeAxes = true
		}
	}

	for _, toks := range perGroup {
		for _, t := range toks {
			out[t.token] = timeKey(timesMap[t.instance] + 1)
		}
	}

	return out, stats
}

// instanceToken pairs an instance number with an opaque caller-supplied
// identifier (typically a plane index) used as the map key in
// reconstructTimes's result.
type instanceToken struct {
	instance int
	token    interface{}
}
