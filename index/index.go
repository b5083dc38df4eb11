// Package index serializes assembled series to the index.json sidecar
// format: one array entry per study, each holding its series array, per
// SPEC_FULL.md section 6. Coordinate conventions are fixed by the spec:
// geometry fields are reported in DICOM patient coordinates (LPS);
// grid-relative fields (diffusiongrid) are in [i j normk] of the
// original, pre-reorientation image; the DICOM->NIfTI world mapping is
// always [X Y Z] = [-x, -y, z].
package index

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/mjw/volconv/orient"
	"github.com/mjw/volconv/series"
)

// patientAxesMap is the fixed DICOM(LPS)->NIfTI(RAS) world mapping every
// series record carries, independent of its own orientation.
var patientAxesMap = [3]string{"-x", "-y", "z"}

// Series is one series[] entry of a study object.
type Series struct {
	ID             string                 `json:"id"`
	Rows           int                    `json:"rows"`
	Cols           int                    `json:"cols"`
	Slices         int                    `json:"slices"`
	Times          int                    `json:"times"`
	Echoes         int                    `json:"echoes"`
	FlipVar        bool                   `json:"flip_var"`
	Flip           float64                `json:"flip"`
	RepTime        float64                `json:"reptimes"`
	EchoTimes      map[string]float64     `json:"echotimes,omitempty"`
	Table          []int                  `json:"table,omitempty"`
	PatientComment string                 `json:"patient_cmt,omitempty"`
	ImageComment   string                 `json:"image_cmt,omitempty"`
	SAR            *series.SAR            `json:"sar,omitempty"`
	Phase          *series.Phase          `json:"phase,omitempty"`
	Interval       *float64               `json:"interval,omitempty"`
	Diffusion      map[string][3]float64  `json:"diffusion,omitempty"`
	DiffusionGrid  map[string][3]float64  `json:"diffusiongrid,omitempty"`
	Desc           string                 `json:"desc"`
	Type           string                 `json:"type"`
	GridAxesMap    [3]string              `json:"grid_axes_map"`
	PatientAxesMap [3]string              `json:"patient_axes_map"`
	ExDCM          string                 `json:"exdcm,omitempty"`
	Nii            string                 `json:"nii,omitempty"`
	Gipl           string                 `json:"gipl,omitempty"`
	Date           string                 `json:"date"`
	Time           string                 `json:"time"`
}

// Study is one array entry of the index.json document.
type Study struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Series []Series `json:"series"`
}

// Outputs names the files this series was written to, filled in by the
// caller after C6 has run.
type Outputs struct {
	ExDCM, Nii, Gipl string
}

// BuildSeries converts one assembled Entity, plus the Image its geometry
// was resolved into, into a Series record. img may be nil when no image
// was built for the entity (volconv builds none for an entity without
// slices); GridAxesMap/DiffusionGrid are then left at their zero values.
func BuildSeries(key series.SeriesKey, e *series.Entity, img *orient.Image, out Outputs) Series {
	s := Series{
		ID:             string(key),
		Rows:           e.Rows,
		Cols:           e.Cols,
		Slices:         len(e.Slices),
		Times:          len(e.Times),
		Echoes:         len(e.Echoes),
		Flip:           e.Flip,
		RepTime:        e.TR,
		PatientComment: e.PatientComment,
		ImageComment:   e.ImageComment,
		SAR:            e.SAR,
		Phase:          e.Phase,
		Desc:           e.Desc,
		Type:           e.Type,
		PatientAxesMap: patientAxesMap,
		ExDCM:          out.ExDCM,
		Nii:            out.Nii,
		Gipl:           out.Gipl,
		Date:           e.Date,
		Time:           e.Time,
	}
	if len(e.TE) > 0 {
		s.EchoTimes = make(map[string]float64, len(e.TE))
		for echo, te := range e.TE {
			s.EchoTimes[itoa(echo)] = te
		}
	}
	if len(e.Table) > 0 {
		s.Table = e.Table
	}
	if len(e.Orient) > 1 {
		s.FlipVar = true
	}
	if len(e.Diff) > 0 {
		s.Diffusion = make(map[string][3]float64, len(e.Diff))
		for t, v := range e.Diff {
			s.Diffusion[t] = v
		}
		if img != nil {
			s.DiffusionGrid = make(map[string][3]float64, len(e.Diff))
			for t, v := range e.Diff {
				if g, err := img.DcmToGrid(v); err == nil {
					s.DiffusionGrid[t] = g
				}
			}
		}
	}
	if img != nil {
		s.GridAxesMap = img.Axes
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// studyName resolves a StudyKey to the display name used as a Study's
// "name" field: the patient name, or "anon" when the study was forced
// synthetic (Options.Single) or the tag was absent.
func studyName(k series.StudyKey) string {
	if k.Patient == "" {
		return "anon"
	}
	return k.Patient
}

// studyID resolves a StudyKey to the display id used as a Study's "id"
// field.
func studyID(k series.StudyKey) string {
	if k.StudyUID == "" {
		return "anon"
	}
	return k.StudyUID
}

// Build assembles the full index.json document from a scan Result, given
// a lookup from (study, series) to the Image its geometry was resolved
// into (nil when unresolved) and the output file names it was written
// to. Studies and their series are ordered by ID for deterministic
// output.
func Build(result *series.Result, images map[series.StudyKey]map[series.SeriesKey]*orient.Image, outputs map[series.StudyKey]map[series.SeriesKey]Outputs) []Study {
	var studies []Study
	for sk, seriesMap := range result.Studies {
		st := Study{ID: studyID(sk), Name: studyName(sk)}
		var keys []series.SeriesKey
		for k := range seriesMap {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			var img *orient.Image
			if m := images[sk]; m != nil {
				img = m[k]
			}
			var out Outputs
			if m := outputs[sk]; m != nil {
				out = m[k]
			}
			st.Series = append(st.Series, BuildSeries(k, seriesMap[k], img, out))
		}
		studies = append(studies, st)
	}
	sort.Slice(studies, func(i, j int) bool { return studies[i].ID < studies[j].ID })
	return studies
}

// Write marshals studies as indented JSON to w.
func Write(w io.Writer, studies []Study) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(studies)
}
