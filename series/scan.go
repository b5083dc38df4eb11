package series

import (
	"context"
	"fmt"
	"strings"

	"github.com/mjw/volconv/csa"
	"github.com/mjw/volconv/dicomtag"
	"github.com/mjw/volconv/orient"
	"github.com/mjw/volconv/reader"
)

// record is one successfully-read file, carrying just enough derived
// state for the grouping and naming passes that follow.
type record struct {
	path      string
	fields    fieldset
	orientKey [6]float64
	sliceIdx  float64
	csaImage  csa.Header
	hasCSA    bool
	pixels    reader.PixelLocator
}

// groupKey identifies a raw (pre-orientation-split) series within a
// study: the series number as the scanner reported it.
type groupKey struct {
	study  StudyKey
	series int
}

// Scan reads every file reachable from paths, groups them into
// geometry-consistent sub-series, and returns the assembled result
// alongside a Report of every file skipped or guessed at along the way.
// Per SPEC_FULL.md section 5, Scan checks ctx between files and returns
// whatever has been assembled so far once ctx is done.
func Scan(ctx context.Context, paths []string, opts Options) (*Result, *Report) {
	report := NewReport()
	result := &Result{Studies: map[StudyKey]map[SeriesKey]*Entity{}}

	files, err := listFiles(paths, opts.PathGlob)
	if err != nil {
		report.Record(ReasonInputFormat, "", err)
		return result, report
	}

	groups := map[groupKey][]record{}
	orientSeen := map[groupKey]map[[6]float64]bool{}
	blockSeen := map[groupKey]map[[6]float64]int{}

	readOpts := reader.ReadOptions{Flat: false, ACRFallback: opts.ACR, CaptureCSA: opts.CSA || opts.SAR || opts.Phase}

	warnings := 0
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			break
		}

		m, err := reader.ReadFile(path, readOpts)
		if err != nil {
			report.Record(ReasonInputFormat, path, err)
			if opts.Progress != nil {
				opts.Progress(i+1, len(files), warnings)
			}
			continue
		}

		var csaImage, csaSeries csa.Header
		var hasCSAImage, hasCSASeries bool
		if readOpts.CaptureCSA {
			if e, ok := m.Get(dicomtag.CSAImageHeaderInfo); ok {
				if h, ok := e.Value.(csa.Header); ok {
					csaImage, hasCSAImage = h, true
				}
			}
			if e, ok := m.Get(dicomtag.CSASeriesHeaderInfo); ok {
				if h, ok := e.Value.(csa.Header); ok {
					csaSeries, hasCSASeries = h, true
				}
			}
		}

		f, err := extractFields(m, csaImage, hasCSAImage, csaSeries, hasCSASeries, opts)
		if err != nil {
			report.Record(ReasonMissingElement, path, err)
			if opts.Progress != nil {
				opts.Progress(i+1, len(files), warnings)
			}
			continue
		}

		if filteredOut(f, opts) {
			report.Record(ReasonFilterMiss, path, nil)
			if opts.Progress != nil {
				opts.Progress(i+1, len(files), warnings)
			}
			continue
		}

		sk := StudyKey{StudyUID: f.studyUID, Patient: f.patient}
		if opts.Single {
			sk = StudyKey{}
		}
		gk := groupKey{study: sk, series: f.seriesNumber}

		var orientKey [6]float64
		switch {
		case f.hasOrientation:
			if orientSeen[gk] == nil {
				orientSeen[gk] = map[[6]float64]bool{}
			}
			orientKey = resolveOrientKey(orientSeen[gk], f.orientation, opts)
			orientSeen[gk][orientKey] = true
		case opts.StackUnk:
			orientKey = [6]float64{}
			report.Record(ReasonGuessPerformed, path, fmt.Errorf("no orientation tags; stacking naively"))
			warnings++
		default:
			report.Record(ReasonGeometryUndetermined, path, fmt.Errorf("missing orientation and -stackunk not set"))
			if opts.Progress != nil {
				opts.Progress(i+1, len(files), warnings)
			}
			continue
		}

		sliceIdx := sliceIndex(f, opts)

		// When sub-series are not split by orientation, multiple
		// genuinely distinct orientation blocks collapse onto the same
		// orientKey (resolveOrientKey always returns the first one seen),
		// so slice indices from later blocks would otherwise collide with
		// the first. Offset each new distinct orientation block by
		// 10000 per the original's sliceoff, keyed on the raw orientation
		// rather than the resolved one.
		if f.hasOrientation && !opts.SplitOrient {
			if blockSeen[gk] == nil {
				blockSeen[gk] = map[[6]float64]int{}
			}
			idx, ok := blockSeen[gk][f.orientation]
			if !ok {
				idx = len(blockSeen[gk])
				blockSeen[gk][f.orientation] = idx
			}
			sliceIdx += 10000.0 * float64(idx)
		}

		var pixels reader.PixelLocator
		if e, ok := m.Get(dicomtag.PixelData); ok {
			if loc, ok := e.Value.(reader.PixelLocator); ok {
				pixels = loc
			}
		}

		groups[gk] = append(groups[gk], record{
			path:      path,
			fields:    f,
			orientKey: orientKey,
			sliceIdx:  sliceIdx,
			csaImage:  csaImage,
			hasCSA:    hasCSAImage,
			pixels:    pixels,
		})

		if opts.Progress != nil {
			opts.Progress(i+1, len(files), warnings)
		}
	}

	for gk, recs := range groups {
		assembleGroup(result, report, gk, recs, opts, &warnings)
	}

	return result, report
}

// sliceIndex picks the index used to order and deduplicate slices within
// a sub-series: the position projected onto the slice normal
// (Options.Slice3D), the SliceLocation tag (with its ImagePositionPatient
// fallback already applied in extractFields), or the DICOM instance
// number when neither geometry tag is present and Options.SliceInst
// allows it.
func sliceIndex(f fieldset, opts Options) float64 {
	if opts.Slice3D && f.hasPosition && f.hasOrientation {
		img := orient.NewImage(nil, [3]float64{1, 1, 1}, [][6]float64{f.orientation}, [3]float64{}, nil)
		k := img.Normk()
		return k[0]*f.position[0] + k[1]*f.position[1] + k[2]*f.position[2]
	}
	if f.hasSliceLocation {
		return f.sliceLocation
	}
	if opts.SliceInst && f.hasInstanceNumber {
		return float64(f.instanceNumber)
	}
	return 0
}

// filteredOut reports whether f should be dropped per Options.SeqInc/
// SeqExc (matched against protocol name and series description) and
// Options.TypeInc/TypeExc (matched against the ImageType string).
func filteredOut(f fieldset, opts Options) bool {
	if opts.SeqInc != nil && !opts.SeqInc.MatchString(f.protocol) && !opts.SeqInc.MatchString(f.seriesDesc) {
		return true
	}
	if opts.SeqExc != nil && (opts.SeqExc.MatchString(f.protocol) || opts.SeqExc.MatchString(f.seriesDesc)) {
		return true
	}
	if opts.TypeInc != "" && !containsFold(f.imageType, opts.TypeInc) {
		return true
	}
	if opts.TypeExc != "" && containsFold(f.imageType, opts.TypeExc) {
		return true
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return len(needle) == 0 || strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
