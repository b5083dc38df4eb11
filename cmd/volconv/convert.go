package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mjw/volconv/giplio"
	"github.com/mjw/volconv/index"
	"github.com/mjw/volconv/match"
	"github.com/mjw/volconv/niftiio"
	"github.com/mjw/volconv/orient"
	"github.com/mjw/volconv/series"
)

// convertEntity resolves one assembled sub-series' geometry, decodes its
// volume(s), writes them in the requested format(s), and returns the
// Image used for the index.json record (the first volume's, when a
// dynamic series produces more than one) plus the output filenames.
func convertEntity(cfg config, studyKey series.StudyKey, seriesKey series.SeriesKey, e *series.Entity, datatype niftiio.Type, reorientTo *orient.Plane, matcher *match.Matcher, report *series.Report) (*orient.Image, index.Outputs, error) {
	slices := sortedFloats(e.Slices)
	if len(slices) == 0 {
		return nil, index.Outputs{}, nil
	}

	offset, delta := sliceGeometry(e, slices)
	orientList := orientVectors(e)

	times := sortedStrings(e.Times)
	if len(times) == 0 {
		times = []string{""}
	}
	echoes := sortedInts(e.Echoes)
	if len(echoes) == 0 {
		echoes = []int{1}
	}

	studyID := studyKey.StudyUID
	if studyID == "" {
		studyID = "anon"
	}
	base := outputBase(matcher, studyKey, seriesKey)

	var niiFiles, giplFiles []string
	var first *orient.Image

	for _, t := range times {
		for _, echo := range echoes {
			data, err := decodeVolume(e, slices, t, echo, report)
			if err != nil {
				return nil, index.Outputs{}, err
			}

			img := orient.NewImage(data, e.Res, orientList, offset, delta)
			if reorientTo != nil {
				if err := img.ReOrient(*reorientTo); err != nil {
					report.Record(series.ReasonGuessPerformed, string(seriesKey), err)
				}
			}
			if first == nil {
				first = img
			}

			suffix := volumeSuffix(t, echo, len(times), len(echoes))
			stem := fmt.Sprintf("%s_%s%s", studyID, base, suffix)

			if cfg.format == "nii" || cfg.format == "both" {
				name := stem + ".nii"
				if cfg.gzip {
					name += ".gz"
				}
				path := filepath.Join(cfg.outDir, name)
				if err := writeNifti(path, img, datatype, cfg.gzip); err != nil {
					return nil, index.Outputs{}, err
				}
				niiFiles = append(niiFiles, name)
			}
			if cfg.format == "gipl" || cfg.format == "both" {
				name := stem + ".gipl"
				path := filepath.Join(cfg.outDir, name)
				if err := writeGipl(path, img, datatype, offset); err != nil {
					return nil, index.Outputs{}, err
				}
				giplFiles = append(giplFiles, name)
			}
		}
	}

	out := index.Outputs{
		ExDCM: representativeFile(e),
		Nii:   strings.Join(niiFiles, ";"),
		Gipl:  strings.Join(giplFiles, ";"),
	}
	return first, out, nil
}

func writeNifti(path string, img *orient.Image, datatype niftiio.Type, gz bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return niftiio.Write(f, img, niftiio.Options{Datatype: datatype, Gzip: gz, OnePadding: true})
}

func writeGipl(path string, img *orient.Image, datatype niftiio.Type, origin [3]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return giplio.Write(f, img, giplio.Options{Datatype: datatype, Origin: origin})
}

// decodeVolume builds the [cols][rows][slices] grid for one (time, echo)
// pair. A slice missing from e.File is left zero-filled and reported,
// matching the spec's missing-slice accounting.
func decodeVolume(e *series.Entity, slices []float64, t string, echo int, report *series.Report) ([][][]float64, error) {
	data := make([][][]float64, e.Cols)
	for c := range data {
		data[c] = make([][]float64, e.Rows)
		for r := range data[c] {
			data[c][r] = make([]float64, len(slices))
		}
	}

	missing := 0
	for s, slice := range slices {
		ste := series.SliceTimeEcho{Slice: slice, Time: t, Echo: echo}
		path, ok := e.File[ste]
		if !ok {
			missing++
			continue
		}
		plane, err := decodePlane(path, e.Pixels[ste], e.Rows, e.Cols, e.BitsAllocated, e.Rescale[ste], e.End[ste], e.Mosaic[ste])
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		for c := range plane {
			for r := range plane[c] {
				data[c][r][s] = plane[c][r]
			}
		}
	}
	if missing > 0 {
		report.Record(series.ReasonGuessPerformed, "", fmt.Errorf("volume (t=%s,e=%d): %d of %d slices absent, zero-filled", t, echo, missing, len(slices)))
	}
	return data, nil
}

// sliceGeometry derives Offset (the DICOM position of the first slice)
// and Delta (the vector between the first two slices) from an entity's
// recorded positions, falling back to the origin and a nil Delta when
// position tags were absent (the --stackunk path).
func sliceGeometry(e *series.Entity, slices []float64) ([3]float64, *[3]float64) {
	var offset [3]float64
	if pos, ok := e.Slicesd[slices[0]]; ok {
		offset = pos
	}
	if len(slices) < 2 {
		return offset, nil
	}
	p0, ok0 := e.Slicesd[slices[0]]
	p1, ok1 := e.Slicesd[slices[1]]
	if !ok0 || !ok1 {
		return offset, nil
	}
	delta := [3]float64{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
	return offset, &delta
}

func orientVectors(e *series.Entity) [][6]float64 {
	out := make([][6]float64, 0, len(e.Orient))
	for o := range e.Orient {
		out = append(out, o)
	}
	if len(out) == 0 {
		out = append(out, [6]float64{1, 0, 0, 0, 1, 0})
	}
	return out
}

// representativeFile names the source file e's index.json "exdcm" entry
// points at: the earliest (slice, time, echo) key's path, basenamed,
// matching the original's sorted(e.file.keys())[0] convention.
func representativeFile(e *series.Entity) string {
	var best *series.SliceTimeEcho
	var bestPath string
	for ste, path := range e.File {
		ste := ste
		if best == nil || steLess(ste, *best) {
			best = &ste
			bestPath = path
		}
	}
	if best == nil {
		return ""
	}
	return filepath.Base(bestPath)
}

func steLess(a, b series.SliceTimeEcho) bool {
	if a.Slice != b.Slice {
		return a.Slice < b.Slice
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.Echo < b.Echo
}

// outputBase resolves the filename stem for a series: a matched alias
// (with a disambiguating count suffix when the alias fired more than
// once), or the raw series key when there is no matcher or no match.
func outputBase(matcher *match.Matcher, studyKey series.StudyKey, seriesKey series.SeriesKey) string {
	if matcher == nil {
		return string(seriesKey)
	}
	alias, count, ok := matcher.Match(studyKey.StudyUID, studyKey.Patient, string(seriesKey))
	if !ok {
		return string(seriesKey)
	}
	if count >= 0 {
		return fmt.Sprintf("%s-%d", alias, count)
	}
	return alias
}

// volumeSuffix names one dynamic volume only when there is more than one
// time or echo to disambiguate; a single-volume series keeps a bare stem.
func volumeSuffix(t string, echo, nTimes, nEchoes int) string {
	var b strings.Builder
	if nTimes > 1 {
		fmt.Fprintf(&b, "-%s", t)
	}
	if nEchoes > 1 {
		fmt.Fprintf(&b, "-e%d", echo)
	}
	return b.String()
}

func sortedFloats(m map[float64]bool) []float64 {
	out := make([]float64, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func sortedStrings(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedInts(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
