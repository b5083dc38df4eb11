package series

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mjw/volconv/csa"
	"github.com/mjw/volconv/dicomtag"
	"github.com/mjw/volconv/reader"
)

// tag is a convenience constructor, local to this package, for the
// dicomtag.Tag literals extract.go needs that dicomtag's dictionary
// exposes only by (group,element) pair rather than by name.
func tag(group, element uint16) dicomtag.Tag { return dicomtag.Tag{Group: group, Element: element} }

var (
	tagImageType           = tag(0x0008, 0x0008)
	tagStudyDate            = tag(0x0008, 0x0020)
	tagSeriesDate           = tag(0x0008, 0x0021)
	tagAcquisitionDate      = tag(0x0008, 0x0022)
	tagStudyTime            = tag(0x0008, 0x0030)
	tagSeriesTime           = tag(0x0008, 0x0031)
	tagAcquisitionTime      = tag(0x0008, 0x0032)
	tagSeriesDescription    = tag(0x0008, 0x103E)
	tagProtocolName         = tag(0x0018, 0x1030)
	tagPatientName          = tag(0x0010, 0x0010)
	tagSliceThickness       = tag(0x0018, 0x0050)
	tagRepetitionTime       = tag(0x0018, 0x0080)
	tagEchoTime             = tag(0x0018, 0x0081)
	tagEchoNumbers          = tag(0x0018, 0x0086)
	tagSpacingBetweenSlices = tag(0x0018, 0x0088)
	tagFlipAngle            = tag(0x0018, 0x1314)
	tagStudyInstanceUID     = tag(0x0020, 0x000D)
	tagSeriesInstanceUID    = tag(0x0020, 0x000E)
	tagSeriesNumber         = tag(0x0020, 0x0011)
	tagInstanceNumber       = tag(0x0020, 0x0013)
	tagImagePosition        = tag(0x0020, 0x0032)
	tagImageOrientation     = tag(0x0020, 0x0037)
	tagTemporalPosition     = tag(0x0020, 0x0100)
	tagSliceLocation        = tag(0x0020, 0x1041)
	tagRows                 = tag(0x0028, 0x0010)
	tagColumns              = tag(0x0028, 0x0011)
	tagPixelSpacing         = tag(0x0028, 0x0030)
	tagBitsAllocated        = tag(0x0028, 0x0100)
	tagRescaleIntercept     = tag(0x0028, 0x1052)
	tagRescaleSlope         = tag(0x0028, 0x1053)

	tagPhaseEncodingDirection         = tag(0x0018, 0x1312)
	tagSARBodyPredicted               = tag(0x0018, 0x1316)
	tagBValuePriv                     = tag(0x0019, 0x100c)
	tagDiffusionGradientDirectionPriv = tag(0x0019, 0x100e)
)

// getFloats reads a DS/IS-style multi-valued numeric element as float64s.
func getFloats(m reader.TagMap, t dicomtag.Tag) ([]float64, error) {
	ss, err := m.GetStrings(t)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ss))
	for i, s := range ss {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("tag %v: %w", t, err)
		}
		out[i] = v
	}
	return out, nil
}

// getFloat reads a scalar DS-style element.
func getFloat(m reader.TagMap, t dicomtag.Tag) (float64, error) {
	s, err := m.GetString(t)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// getInt reads a scalar IS-style element.
func getInt(m reader.TagMap, t dicomtag.Tag) (int, error) {
	s, err := m.GetString(t)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return int(v), err
}

// getUint16 reads a scalar US element, which decodes to uint16 or
// []uint16 rather than through the string accessors.
func getUint16(m reader.TagMap, t dicomtag.Tag) (uint16, error) {
	e, ok := m.Get(t)
	if !ok {
		return 0, fmt.Errorf("tag %v not present", t)
	}
	switch v := e.Value.(type) {
	case uint16:
		return v, nil
	case []uint16:
		if len(v) == 0 {
			return 0, fmt.Errorf("tag %v empty", t)
		}
		return v[0], nil
	default:
		return 0, fmt.Errorf("tag %v is not a US value", t)
	}
}

// fieldset groups the raw tag values extract.go pulls out of one file,
// before Scan folds them into an Entity.
type fieldset struct {
	studyUID, seriesUID string
	patient             string
	studyDate, studyTime string
	seriesDesc, protocol string
	modality, imageType  string
	seriesNumber         int
	instanceNumber       int
	hasInstanceNumber    bool
	temporalPosition     int
	hasTemporalPosition  bool
	position             [3]float64
	hasPosition          bool
	orientation          [6]float64
	hasOrientation       bool
	sliceLocation        float64
	hasSliceLocation     bool
	rows, cols           int
	pixelSpacing         [2]float64
	bitsAllocated        int
	sliceThickness       float64
	rescale              Rescale
	echoNumber           int
	echoTime             float64
	tr, flip             float64
	date, time           string
	dtime                string

	diffusion    [3]float64
	hasDiffusion bool
	bval         *float64
	sar          *SAR
	phase        *Phase
}

// extractFields pulls every field C4 needs out of one file's tag map,
// applying fallbacks modelled on the table in SPEC_FULL.md section 6
// (e.g. description falling back to protocol name, then study
// description, then "unknown"; instance number defaulting to 1; slice
// location falling back to the z component of image position). The
// series date falls back to acquisition then study date and the series
// time to study time, with no placeholder when all are absent; studyDate
// and studyTime have no fallback. Tags the table marks as required
// (ImageType, Rows/Columns, BitsAllocated, PixelSpacing) are not
// enforced: an absent one leaves its zero value, or 16 for
// BitsAllocated, and extractFields never returns an error. csaImage
// and csaSeries are the file's already-parsed CSA2 blobs (see
// reader.ReadOptions.CaptureCSA), used to recover the diffusion vector,
// B-value, SAR, and phase-encoding fields per original_source/pydcm/
// dicom.py.
func extractFields(m reader.TagMap, csaImage csa.Header, hasCSAImage bool, csaSeries csa.Header, hasCSASeries bool, opts Options) (fieldset, error) {
	var f fieldset

	f.studyUID = "anon"
	if v, err := m.GetString(tagStudyInstanceUID); err == nil {
		f.studyUID = v
	}

	if v, err := m.GetString(tagSeriesInstanceUID); err == nil {
		f.seriesUID = v
	}
	f.patient = "anon"
	if v, err := m.GetString(tagPatientName); err == nil {
		f.patient = v
	}
	if v, err := m.GetString(tagStudyDate); err == nil {
		f.studyDate = v
	}
	if v, err := m.GetString(tagStudyTime); err == nil {
		f.studyTime = v
	}

	f.date = f.studyDate
	if v, err := m.GetString(tagSeriesDate); err == nil {
		f.date = v
	} else if v, err := m.GetString(tagAcquisitionDate); err == nil {
		f.date = v
	}
	f.time = f.studyTime
	if v, err := m.GetString(tagSeriesTime); err == nil {
		f.time = v
	}

	f.dtime = f.time
	if v, err := m.GetString(tagAcquisitionTime); err == nil {
		f.dtime = v
	}

	if v, err := m.GetString(tagSeriesDescription); err == nil {
		f.seriesDesc = v
	}
	if v, err := m.GetString(tagProtocolName); err == nil {
		f.protocol = v
	}
	if f.seriesDesc == "" {
		f.seriesDesc = f.protocol
	}
	if f.seriesDesc == "" {
		if v, err := m.GetString(tag(0x0008, 0x1030)); err == nil {
			f.seriesDesc = v
		}
	}
	if f.seriesDesc == "" {
		f.seriesDesc = "unknown"
	}

	if v, err := m.GetStrings(tagImageType); err == nil {
		f.imageType = strings.Join(v, "/")
	}

	if n, err := getInt(m, tagSeriesNumber); err == nil {
		f.seriesNumber = n
	}
	f.instanceNumber = 1
	if n, err := getInt(m, tagInstanceNumber); err == nil {
		f.instanceNumber = n
		f.hasInstanceNumber = true
	}
	if n, err := getInt(m, tagTemporalPosition); err == nil {
		f.temporalPosition = n
		f.hasTemporalPosition = true
	}

	if vs, err := getFloats(m, tagImagePosition); err == nil && len(vs) == 3 {
		f.position = [3]float64{vs[0], vs[1], vs[2]}
		f.hasPosition = true
	}
	if vs, err := getFloats(m, tagImageOrientation); err == nil && len(vs) == 6 {
		f.orientation = [6]float64{vs[0], vs[1], vs[2], vs[3], vs[4], vs[5]}
		f.hasOrientation = true
	}

	if v, err := getFloat(m, tagSliceLocation); err == nil {
		f.sliceLocation = v
		f.hasSliceLocation = true
	} else if f.hasPosition {
		f.sliceLocation = f.position[2]
		f.hasSliceLocation = true
	}

	if v, err := getUint16(m, tagRows); err == nil {
		f.rows = int(v)
	}
	if v, err := getUint16(m, tagColumns); err == nil {
		f.cols = int(v)
	}
	if vs, err := getFloats(m, tagPixelSpacing); err == nil && len(vs) == 2 {
		f.pixelSpacing = [2]float64{vs[0], vs[1]}
	}
	if v, err := getUint16(m, tagBitsAllocated); err == nil {
		f.bitsAllocated = int(v)
	} else {
		f.bitsAllocated = 16
	}
	if v, err := getFloat(m, tagSliceThickness); err == nil {
		f.sliceThickness = v
	} else if v, err := getFloat(m, tagSpacingBetweenSlices); err == nil {
		f.sliceThickness = v
	} else {
		f.sliceThickness = 1.0
	}

	if v, err := getFloat(m, tagRescaleIntercept); err == nil {
		f.rescale.Intercept = v
	}
	f.rescale.Slope = 1.0
	if v, err := getFloat(m, tagRescaleSlope); err == nil {
		f.rescale.Slope = v
	}

	if ns, err := getFloats(m, tagEchoNumbers); err == nil && len(ns) > 0 {
		f.echoNumber = int(ns[0])
	} else {
		f.echoNumber = 1
	}
	if v, err := getFloat(m, tagEchoTime); err == nil {
		f.echoTime = v
	}
	if v, err := getFloat(m, tagRepetitionTime); err == nil {
		f.tr = v
	}
	if v, err := getFloat(m, tagFlipAngle); err == nil {
		f.flip = v
	}

	if v, ok := extractDiffusion(m, csaImage, hasCSAImage, opts); ok {
		f.diffusion, f.hasDiffusion = v, true
	}
	f.bval = extractBval(m, csaImage, hasCSAImage, opts)
	if opts.SAR {
		f.sar = extractSAR(m, csaSeries, hasCSASeries)
	}
	if opts.Phase {
		f.phase = extractPhase(m, csaImage, hasCSAImage)
	}

	return f, nil
}
