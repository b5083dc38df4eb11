package series

import (
	"fmt"
	"sort"

	"github.com/mjw/volconv/orient"
)

// subSeries is the working record assemble() builds per orientation
// split before names are assigned, so naming can see every candidate for
// a given raw series number at once.
type subSeries struct {
	orientKey   [6]float64
	minInstance int
}

// assignNames implements the two-phase sub-series renaming the original
// system performs once a series has been split by orientation (SPEC_FULL
// section 4.4): sort the candidates by their lowest instance number, then
// try each naming scheme for ALL blocks at once, in order — anatomical
// short names (axi/sag/cor/obl) when every block gets a distinct one,
// else single letters (a..y) when there are at most 25 blocks, else
// zero-padded z0000, z0001, ... Options.NSubSeries skips straight to the
// zNNNN scheme.
func assignNames(candidates []subSeries, opts Options) map[[6]float64]string {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].minInstance < candidates[j].minInstance })

	names := make(map[[6]float64]string, len(candidates))
	if len(candidates) == 1 {
		names[candidates[0].orientKey] = ""
		return names
	}

	if !opts.NSubSeries {
		shorts := make([]string, len(candidates))
		seen := make(map[string]bool, len(candidates))
		distinct := true
		for i, c := range candidates {
			k := c.orientKey
			img := orient.NewImage(nil, [3]float64{1, 1, 1}, [][6]float64{{k[0], k[1], k[2], k[3], k[4], k[5]}}, [3]float64{}, nil)
			short := img.FindOrient().Short()
			if seen[short] {
				distinct = false
				break
			}
			seen[short] = true
			shorts[i] = short
		}
		if distinct {
			for i, c := range candidates {
				names[c.orientKey] = shorts[i]
			}
			return names
		}

		if len(candidates) <= 25 {
			for i, c := range candidates {
				names[c.orientKey] = alphaSuffix(i)
			}
			return names
		}
	}

	for i, c := range candidates {
		names[c.orientKey] = fmt.Sprintf("z%04d", i)
	}
	return names
}

// alphaSuffix returns the i'th single-letter suffix (a, b, c, ...).
func alphaSuffix(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < 0 || i >= len(letters) {
		return fmt.Sprintf("z%04d", i)
	}
	return string(letters[i])
}
