package series

import (
	"strconv"
	"strings"

	"github.com/mjw/volconv/csa"
	"github.com/mjw/volconv/reader"
)

// csaFloat reads the first item of a CSA field as a float64.
func csaFloat(hdr csa.Header, has bool, name string) (float64, bool) {
	if !has {
		return 0, false
	}
	f, ok := hdr[name]
	if !ok || len(f.Items) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.Items[0]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func csaInt(hdr csa.Header, has bool, name string) (int, bool) {
	v, ok := csaFloat(hdr, has, name)
	return int(v), ok
}

func csaString(hdr csa.Header, has bool, name string) (string, bool) {
	if !has {
		return "", false
	}
	f, ok := hdr[name]
	if !ok || len(f.Items) == 0 {
		return "", false
	}
	return f.Items[0], true
}

// csaFloats3 reads a CSA field's first three items as a 3-vector.
func csaFloats3(hdr csa.Header, has bool, name string) ([3]float64, bool) {
	if !has {
		return [3]float64{}, false
	}
	f, ok := hdr[name]
	if !ok || len(f.Items) < 3 {
		return [3]float64{}, false
	}
	var out [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.Items[i]), 64)
		if err != nil {
			return [3]float64{}, false
		}
		out[i] = v
	}
	return out, true
}

// csaFloatsN reads every parseable item of a CSA field as floats,
// skipping entries that don't parse (the original's SAR aspect list has
// no fixed length).
func csaFloatsN(hdr csa.Header, has bool, name string) []float64 {
	if !has {
		return nil
	}
	f, ok := hdr[name]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(f.Items))
	for _, it := range f.Items {
		v, err := strconv.ParseFloat(strings.TrimSpace(it), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func parseFloats3(ss []string) ([3]float64, bool) {
	if len(ss) != 3 {
		return [3]float64{}, false
	}
	var out [3]float64
	for i, s := range ss {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return [3]float64{}, false
		}
		out[i] = v
	}
	return out, true
}

// extractDiffusion recovers the Siemens diffusion gradient direction, a
// 3-vector in the DICOM patient coordinate system, grounded on
// original_source/pydcm/dicom.py's DiffusionGradientDirection handling:
// prefer the CSA image header when Options.CSA is set, otherwise the
// private (0019,100e) tag, falling back to CSA when that tag fails to
// parse as three floats (observed garbled to a UN VR by some PACS
// relays).
func extractDiffusion(m reader.TagMap, csaImage csa.Header, hasCSAImage bool, opts Options) ([3]float64, bool) {
	if opts.CSA {
		return csaFloats3(csaImage, hasCSAImage, "DiffusionGradientDirection")
	}
	if ss, err := m.GetStrings(tagDiffusionGradientDirectionPriv); err == nil {
		if v, ok := parseFloats3(ss); ok {
			return v, true
		}
	}
	return csaFloats3(csaImage, hasCSAImage, "DiffusionGradientDirection")
}

// extractBval recovers the diffusion B-value, preferring the CSA image
// header when Options.CSA is set and otherwise the private (0019,100c)
// tag, per the same source as extractDiffusion.
func extractBval(m reader.TagMap, csaImage csa.Header, hasCSAImage bool, opts Options) *float64 {
	if opts.CSA {
		if v, ok := csaFloat(csaImage, hasCSAImage, "B_value"); ok {
			return &v
		}
		return nil
	}
	if v, err := getFloat(m, tagBValuePriv); err == nil {
		return &v
	}
	return nil
}

// extractSAR builds the SAR record from the CSA series header plus the
// predicted-body-SAR tag (0018,1316), only when Options.SAR is set.
func extractSAR(m reader.TagMap, csaSeries csa.Header, hasCSASeries bool) *SAR {
	bodyPred, err := getFloat(m, tagSARBodyPredicted)
	if err != nil {
		return nil
	}
	mostCrit, _ := csaString(csaSeries, hasCSASeries, "RFSWDMostCriticalAspect")
	mode, _ := csaInt(csaSeries, hasCSASeries, "RFSWDOperationMode")
	return &SAR{
		Values:   csaFloatsN(csaSeries, hasCSASeries, "SARMostCriticalAspect"),
		Body:     bodyPred,
		MostCrit: mostCrit,
		Mode:     mode,
	}
}

// extractPhase builds the Phase record from the in-plane phase-encoding
// direction tag (0018,1312) and the CSA image header's
// PhaseEncodingDirectionPositive flag, only when Options.Phase is set.
func extractPhase(m reader.TagMap, csaImage csa.Header, hasCSAImage bool) *Phase {
	direction, err := m.GetString(tagPhaseEncodingDirection)
	if err != nil {
		return nil
	}
	positive, ok := csaInt(csaImage, hasCSAImage, "PhaseEncodingDirectionPositive")
	if !ok {
		return nil
	}
	axis := ""
	switch direction {
	case "ROW":
		axis = "i"
	case "COL":
		axis = "j"
	}
	if positive == 0 && axis != "" {
		axis = "-" + axis
	}
	return &Phase{
		Direction: direction,
		Positive:  positive != 0,
		Axis:      axis,
	}
}
