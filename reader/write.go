package reader

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mjw/volconv/dicomio"
	"github.com/mjw/volconv/dicomtag"
)

// longVR reuses the explicit-VR header shape used by longVRs in read.go: a
// 2-byte reserved field followed by a 4-byte length.
func longVR(vr string) bool { return longVRs[vr] }

// sortedTags returns m's tags in ascending (group, element) order, the
// order a conforming DICOM data set must be written in.
func sortedTags(m TagMap) []dicomtag.Tag {
	tags := make([]dicomtag.Tag, 0, len(m))
	for t := range m {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Compare(tags[j]) < 0 })
	return tags
}

// WriteDataSet re-encodes m as a bare data set (no preamble, no file meta
// group) under the given transfer syntax. pixelSource, when non-nil, is
// the original file bytes a PixelLocator value refers to; it is required
// only if m contains a PixelData element.
func WriteDataSet(m TagMap, order binary.ByteOrder, implicit dicomio.IsImplicitVR, pixelSource []byte) ([]byte, error) {
	e := dicomio.NewBytesEncoder(order, implicit)
	writeTagMap(e, m, pixelSource)
	if e.Error() != nil {
		return nil, e.Error()
	}
	return e.Bytes(), nil
}

func writeTagMap(e *dicomio.Encoder, m TagMap, pixelSource []byte) {
	for _, tag := range sortedTags(m) {
		writeElement(e, m[tag], pixelSource)
		if e.Error() != nil {
			return
		}
	}
}

func encodeElementHeader(e *dicomio.Encoder, tag dicomtag.Tag, vr string, length uint32) {
	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)

	_, implicit := e.TransferSyntax()
	if implicit == dicomio.ExplicitVR {
		e.WriteString(vr)
		if longVR(vr) {
			e.WriteZeros(2)
			e.WriteUInt32(length)
		} else {
			e.WriteUInt16(uint16(length))
		}
	} else {
		e.WriteUInt32(length)
	}
}

func writeElement(e *dicomio.Encoder, elem *Element, pixelSource []byte) {
	vr := elem.VR
	if vr == "" {
		vr = "UN"
	}

	switch v := elem.Value.(type) {
	case []TagMap:
		writeSequence(e, elem.Tag, vr, v, pixelSource)
		return

	case PixelLocator:
		if pixelSource == nil {
			e.SetErrorf("%v: cannot re-encode pixel data without the original file bytes", elem.Tag)
			return
		}
		end := v.Offset + int64(v.Length)
		if v.Offset < 0 || end > int64(len(pixelSource)) {
			e.SetErrorf("%v: pixel locator out of range of source data", elem.Tag)
			return
		}
		encodeElementHeader(e, elem.Tag, vr, v.Length)
		e.WriteBytes(pixelSource[v.Offset:end])
		return
	}

	raw, err := convertBack(e, vr, elem.Value)
	if err != nil {
		e.SetErrorf("%v: %v", elem.Tag, err)
		return
	}
	encodeElementHeader(e, elem.Tag, vr, uint32(len(raw)))
	e.WriteBytes(raw)
}

func writeSequence(e *dicomio.Encoder, tag dicomtag.Tag, vr string, items []TagMap, pixelSource []byte) {
	_, implicit := e.TransferSyntax()
	order, _ := e.TransferSyntax()
	sub := dicomio.NewBytesEncoder(order, implicit)
	for _, item := range items {
		itemBytes, ierr := encodeItem(order, implicit, item, pixelSource)
		if ierr != nil {
			e.SetError(ierr)
			return
		}
		encodeElementHeader(sub, dicomtag.Item, "NA", uint32(len(itemBytes)))
		sub.WriteBytes(itemBytes)
	}
	if sub.Error() != nil {
		e.SetError(sub.Error())
		return
	}
	body := sub.Bytes()
	encodeElementHeader(e, tag, vr, uint32(len(body)))
	e.WriteBytes(body)
}

func encodeItem(order binary.ByteOrder, implicit dicomio.IsImplicitVR, item TagMap, pixelSource []byte) ([]byte, error) {
	e := dicomio.NewBytesEncoder(order, implicit)
	writeTagMap(e, item, pixelSource)
	if e.Error() != nil {
		return nil, e.Error()
	}
	return e.Bytes(), nil
}

// convertBack is the inverse of convertVal: it reconstructs the raw element
// bytes from the Go value convertVal would have produced.
func convertBack(e *dicomio.Encoder, vr string, value interface{}) ([]byte, error) {
	order, _ := e.TransferSyntax()

	switch vr {
	case "AE", "AS", "CS", "DA", "DS", "DT", "IS", "LO", "LT", "PN", "SH", "ST", "TM", "UI", "UT":
		return encodeString(vr, value)

	case "OB", "OW", "UN":
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected []byte, got %T", value)
		}
		if len(b)%2 == 1 {
			b = append(append([]byte{}, b...), 0)
		}
		return b, nil

	case "AT", "US":
		return encodeUint16List(order, value)
	case "UL":
		return encodeUint32List(order, value)
	case "SS":
		return encodeInt16List(order, value)
	case "SL":
		return encodeInt32List(order, value)
	case "FL":
		return encodeFloat32List(order, value)
	case "FD":
		return encodeFloat64List(order, value)
	}
	return nil, fmt.Errorf("unsupported VR %q", vr)
}

func encodeString(vr string, value interface{}) ([]byte, error) {
	var parts []string
	switch v := value.(type) {
	case string:
		parts = []string{v}
	case []string:
		parts = v
	default:
		return nil, fmt.Errorf("expected string or []string, got %T", value)
	}
	s := strings.Join(parts, `\`)
	b := []byte(s)
	if len(b)%2 == 1 {
		if vr == "UI" {
			b = append(b, 0)
		} else {
			b = append(b, ' ')
		}
	}
	return b, nil
}

func asSlice(value interface{}) []interface{} {
	switch v := value.(type) {
	case []uint16:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	case []uint32:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	case []int16:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	case []int32:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	case []float32:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	case []float64:
		out := make([]interface{}, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out
	default:
		return []interface{}{v}
	}
}

func encodeUint16List(order binary.ByteOrder, value interface{}) ([]byte, error) {
	items := asSlice(value)
	out := make([]byte, 2*len(items))
	for i, it := range items {
		v, ok := it.(uint16)
		if !ok {
			return nil, fmt.Errorf("expected uint16, got %T", it)
		}
		order.PutUint16(out[i*2:], v)
	}
	return out, nil
}

func encodeUint32List(order binary.ByteOrder, value interface{}) ([]byte, error) {
	items := asSlice(value)
	out := make([]byte, 4*len(items))
	for i, it := range items {
		v, ok := it.(uint32)
		if !ok {
			return nil, fmt.Errorf("expected uint32, got %T", it)
		}
		order.PutUint32(out[i*4:], v)
	}
	return out, nil
}

func encodeInt16List(order binary.ByteOrder, value interface{}) ([]byte, error) {
	items := asSlice(value)
	out := make([]byte, 2*len(items))
	for i, it := range items {
		v, ok := it.(int16)
		if !ok {
			return nil, fmt.Errorf("expected int16, got %T", it)
		}
		order.PutUint16(out[i*2:], uint16(v))
	}
	return out, nil
}

func encodeInt32List(order binary.ByteOrder, value interface{}) ([]byte, error) {
	items := asSlice(value)
	out := make([]byte, 4*len(items))
	for i, it := range items {
		v, ok := it.(int32)
		if !ok {
			return nil, fmt.Errorf("expected int32, got %T", it)
		}
		order.PutUint32(out[i*4:], uint32(v))
	}
	return out, nil
}

func encodeFloat32List(order binary.ByteOrder, value interface{}) ([]byte, error) {
	items := asSlice(value)
	out := make([]byte, 4*len(items))
	for i, it := range items {
		v, ok := it.(float32)
		if !ok {
			return nil, fmt.Errorf("expected float32, got %T", it)
		}
		order.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out, nil
}

func encodeFloat64List(order binary.ByteOrder, value interface{}) ([]byte, error) {
	items := asSlice(value)
	out := make([]byte, 8*len(items))
	for i, it := range items {
		v, ok := it.(float64)
		if !ok {
			return nil, fmt.Errorf("expected float64, got %T", it)
		}
		order.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out, nil
}
