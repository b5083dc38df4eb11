package series

import "math"

// orientAngle returns the angle, in degrees, between two
// (i0,i1,i2,j0,j1,j2) orientation vectors: the larger of the angle
// between their row (i) vectors and the angle between their column (j)
// vectors. Grounded on the original system's per-column angular-error
// check used to decide whether two slices belong in the same volume.
func orientAngle(a, b [6]float64) float64 {
	ia, ja := [3]float64{a[0], a[1], a[2]}, [3]float64{a[3], a[4], a[5]}
	ib, jb := [3]float64{b[0], b[1], b[2]}, [3]float64{b[3], b[4], b[5]}
	return math.Max(vectorAngle(ia, ib), vectorAngle(ja, jb))
}

func vectorAngle(a, b [3]float64) float64 {
	d := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	na := math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
	nb := math.Sqrt(b[0]*b[0] + b[1]*b[1] + b[2]*b[2])
	if na == 0 || nb == 0 {
		return 0
	}
	cos := d / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// lowest picks the lexicographically smallest of two orientation keys,
// the tie-break the original applies when a candidate orientation is
// within tolerance of more than one already-seen key.
func lowest(a, b [6]float64) [6]float64 {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return a
			}
			return b
		}
	}
	return a
}

// resolveOrientKey finds the key in orient that the candidate orientation
// should be filed under: an existing key within thresh degrees when
// RoundOrient is set (ties broken by lowest), the candidate itself
// verbatim when SplitOrient is set and no existing key matches closely
// enough, or the single pre-existing key when neither option is set (the
// common, non-splitting, non-rounding default).
func resolveOrientKey(orient map[[6]float64]bool, candidate [6]float64, opts Options) [6]float64 {
	if len(orient) == 0 {
		return candidate
	}
	if !opts.SplitOrient && !opts.RoundOrient {
		for k := range orient {
			return k
		}
	}
	if opts.RoundOrient {
		best := candidate
		haveBest := false
		bestAngle := opts.RoundOrientThresh
		for k := range orient {
			a := orientAngle(candidate, k)
			if a <= bestAngle {
				if !haveBest {
					best, haveBest = k, true
				} else {
					best = lowest(best, k)
				}
				bestAngle = a
			}
		}
		if haveBest {
			return best
		}
	}
	if opts.SplitOrient {
		return candidate
	}
	for k := range orient {
		return k
	}
	return candidate
}
