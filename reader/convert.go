package reader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxMultiplicity parses a dictionary VM string ("1", "3", "1-n", ...) into
// the maximum number of backslash-separated components a string value may
// be split into. A VM containing "-" (open) or "n" (unlimited) means no
// cap.
func maxMultiplicity(vm string) int {
	if strings.Contains(vm, "-") || strings.Contains(vm, "n") {
		return -1
	}
	if n, err := strconv.Atoi(vm); err == nil {
		return n
	}
	return -1
}

// convertString implements convertVal for the string VRs: right-trim
// whitespace, drop a single trailing NUL pad byte, split on backslash up
// to the dictionary's multiplicity, and unwrap a single-element result to
// a scalar string.
func convertString(raw []byte, vm string) interface{} {
	s := string(raw)
	if n := len(s); n > 0 && s[n-1] == 0x00 {
		s = s[:n-1]
	}
	s = strings.TrimRight(s, " \t\x00")

	limit := maxMultiplicity(vm)
	var parts []string
	if limit > 0 {
		parts = strings.SplitN(s, `\`, limit)
	} else {
		parts = strings.Split(s, `\`)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts
}

// unwrap returns v[0] when v has exactly one element, else v itself. This
// implements the scalar-unwrapping rule shared by every numeric VR.
func unwrap(v interface{}) interface{} {
	switch s := v.(type) {
	case []uint16:
		if len(s) == 1 {
			return s[0]
		}
	case []uint32:
		if len(s) == 1 {
			return s[0]
		}
	case []int16:
		if len(s) == 1 {
			return s[0]
		}
	case []int32:
		if len(s) == 1 {
			return s[0]
		}
	case []float32:
		if len(s) == 1 {
			return s[0]
		}
	case []float64:
		if len(s) == 1 {
			return s[0]
		}
	}
	return v
}

func readUint16List(order binary.ByteOrder, raw []byte) (interface{}, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("US/AT value length %d is not a multiple of 2", len(raw))
	}
	out := make([]uint16, len(raw)/2)
	for i := range out {
		out[i] = order.Uint16(raw[i*2:])
	}
	return unwrap(out), nil
}

func readUint32List(order binary.ByteOrder, raw []byte) (interface{}, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("UL value length %d is not a multiple of 4", len(raw))
	}
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = order.Uint32(raw[i*4:])
	}
	return unwrap(out), nil
}

func readInt16List(order binary.ByteOrder, raw []byte) (interface{}, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("SS value length %d is not a multiple of 2", len(raw))
	}
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(order.Uint16(raw[i*2:]))
	}
	return unwrap(out), nil
}

func readInt32List(order binary.ByteOrder, raw []byte) (interface{}, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("SL value length %d is not a multiple of 4", len(raw))
	}
	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(order.Uint32(raw[i*4:]))
	}
	return unwrap(out), nil
}

func readFloat32List(order binary.ByteOrder, raw []byte) (interface{}, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("FL value length %d is not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := order.Uint32(raw[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return unwrap(out), nil
}

func readFloat64List(order binary.ByteOrder, raw []byte) (interface{}, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("FD value length %d is not a multiple of 8", len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		bits := order.Uint64(raw[i*8:])
		out[i] = math.Float64frombits(bits)
	}
	return unwrap(out), nil
}

// convertVal decodes an element's raw value bytes according to its VR, per
// SPEC_FULL.md 4.1's convertVal description.
func convertVal(order binary.ByteOrder, vr string, vm string, raw []byte) (interface{}, error) {
	switch vr {
	case "AE", "AS", "CS", "DA", "DS", "DT", "IS", "LO", "LT", "PN", "SH", "ST", "TM", "UI", "UT":
		return convertString(raw, vm), nil

	case "OB", "OW", "UN":
		return raw, nil

	case "AT", "US":
		return readUint16List(order, raw)
	case "UL":
		return readUint32List(order, raw)
	case "SS":
		return readInt16List(order, raw)
	case "SL":
		return readInt32List(order, raw)
	case "FL":
		return readFloat32List(order, raw)
	case "FD":
		return readFloat64List(order, raw)
	}

	return nil, fmt.Errorf("unsupported VR %q", vr)
}
