// Package reader implements the DICOM element reader (component C1): it
// parses one file into a tag map, handling explicit/implicit VR, mid-file
// endian switches, sequences, and the two Siemens CSA blobs.
//
// The ACR-NEMA big-endian fallback heuristic (first 16-bit word in
// 0x0100..0x0800 selects big-endian implicit parsing) has no cited
// reference in the system this module was built from; it is preserved
// here as provisional, documented behavior, not as a verified standard.
package reader

import (
	"fmt"

	"github.com/mjw/volconv/dicomio"
	"github.com/mjw/volconv/dicomtag"
)

// Element is one decoded DICOM element. Value's concrete type depends on
// VRKind (see dicomtag.GetVRKind):
//
//	VRStringList  -> []string, or string when len==1
//	VRString      -> string
//	VRBytes       -> []byte
//	VRUInt16List  -> []uint16, or uint16 when len==1
//	VRUInt32List  -> []uint32, or uint32 when len==1
//	VRInt16List   -> []int16, or int16 when len==1
//	VRInt32List   -> []int32, or int32 when len==1
//	VRFloat32List -> []float32, or float32 when len==1
//	VRFloat64List -> []float64, or float64 when len==1
//	VRTagList     -> []uint16 (group/element words), or uint16 when len==1
//	VRSequence    -> []TagMap, one per item
//	VRPixelData   -> PixelLocator
type Element struct {
	Tag             dicomtag.Tag
	VR              string
	Value           interface{}
	UndefinedLength bool
}

// PixelLocator records where pixel data lives in the source file without
// loading it into memory.
type PixelLocator struct {
	Offset int64
	Length uint32
}

// TagMap holds the decoded elements of one data set, keyed by tag. In Flat
// mode, elements nested inside sequences are promoted into the single
// top-level map (see ReadOptions.Flat).
type TagMap map[dicomtag.Tag]*Element

// flattenedPlaceholder is the literal value a flattened sequence's own
// slot is given once its children have been promoted to the parent map.
const flattenedPlaceholder = "(flattened)"

// Get implements the dynamic tag accessor (Design Notes 9.1).
func (m TagMap) Get(tag dicomtag.Tag) (*Element, bool) {
	e, ok := m[tag]
	return e, ok
}

// GetByName implements the dynamic name accessor (Design Notes 9.1): it
// resolves name to a tag via the dictionary's short-name reverse map, then
// looks it up in m.
func (m TagMap) GetByName(name string) (*Element, bool) {
	info, err := dicomtag.FindByShortName(name)
	if err != nil {
		return nil, false
	}
	return m.Get(info.Tag)
}

// GetString returns a scalar string value, unwrapping a single-element
// string list if necessary.
func (m TagMap) GetString(tag dicomtag.Tag) (string, error) {
	e, ok := m[tag]
	if !ok {
		return "", fmt.Errorf("tag %v not present", tag)
	}
	switch v := e.Value.(type) {
	case string:
		return v, nil
	case []string:
		if len(v) == 0 {
			return "", fmt.Errorf("tag %v has empty string list", tag)
		}
		return v[0], nil
	default:
		return "", fmt.Errorf("tag %v is not a string (VR=%s)", tag, e.VR)
	}
}

// GetStrings returns the full multi-valued string list for a tag.
func (m TagMap) GetStrings(tag dicomtag.Tag) ([]string, error) {
	e, ok := m[tag]
	if !ok {
		return nil, fmt.Errorf("tag %v not present", tag)
	}
	switch v := e.Value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("tag %v is not a string (VR=%s)", tag, e.VR)
	}
}
