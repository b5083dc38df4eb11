// Package dicomtag implements the DICOM data dictionary: a process-wide,
// read-only table mapping a (group,element) tag to its VR, value
// multiplicity, long name and short name.
package dicomtag

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is the <group, element> pair that identifies one DICOM element.
// The standard tags known to this module are listed in dictionary.go; see
// also ftp://medical.nema.org/medical/dicom/2011/11_06pu.pdf.
type Tag struct {
	Group   uint16
	Element uint16
}

// Compare returns -1/0/1 if t<other, t==other, t>other. A tag is ordered
// first by group, then by element.
func (t Tag) Compare(other Tag) int {
	if t.Group < other.Group {
		return -1
	}
	if t.Group > other.Group {
		return 1
	}
	if t.Element < other.Element {
		return -1
	}
	if t.Element > other.Element {
		return 1
	}
	return 0
}

// IsPrivate reports whether a group number denotes a private (vendor)
// element: odd group numbers are private by DICOM convention.
func IsPrivate(group uint16) bool {
	return group%2 == 1
}

// String renders a tag as "(0008, 1234)".
func (t Tag) String() string {
	return fmt.Sprintf("(%04x, %04x)", t.Group, t.Element)
}

// TagInfo holds the dictionary entry for one tag.
type TagInfo struct {
	Tag Tag
	// VR, e.g. "UL", "CS".
	VR string
	// Name is the long, human-readable tag name, e.g. "CommandDataSetType".
	Name string
	// ShortName is Name lowercased, with an underscore at each
	// lower-to-upper CamelCase boundary, non-alphanumerics replaced by
	// underscores and any "(RET)" suffix removed.
	ShortName string
	// VM is the value multiplicity, e.g. "1", "1-n", "3".
	VM string
}

// MetadataGroup is the value of Tag.Group for file meta information tags.
const MetadataGroup = 2

// VRKind classifies how an element's value is represented in Go.
type VRKind int

const (
	// VRStringList means the element stores a list of strings.
	VRStringList VRKind = iota
	// VRBytes means the element stores a []byte.
	VRBytes
	// VRString means the element stores a string.
	VRString
	// VRUInt16List means the element stores a list of uint16s.
	VRUInt16List
	// VRUInt32List means the element stores a list of uint32s.
	VRUInt32List
	// VRInt16List means the element stores a list of int16s.
	VRInt16List
	// VRInt32List means the element stores a list of int32s.
	VRInt32List
	// VRFloat32List means the element stores a list of float32s.
	VRFloat32List
	// VRFloat64List means the element stores a list of float64s.
	VRFloat64List
	// VRSequence means the element stores a nested tag map, keyed by Item.
	VRSequence
	// VRItem means the element stores a list of nested elements.
	VRItem
	// VRTagList means the element stores a list of Tags (VR=AT).
	VRTagList
	// VRDate means the element stores a date string; see ParseDate.
	VRDate
	// VRPixelData means the element stores a (file_offset, byte_length)
	// locator rather than decoded pixel bytes.
	VRPixelData
)

// GetVRKind returns the Go-side value encoding for an element with the
// given <tag, vr>.
func GetVRKind(tag Tag, vr string) VRKind {
	if tag == Item {
		return VRItem
	} else if tag == PixelData {
		return VRPixelData
	}
	switch vr {
	case "DA":
		return VRDate
	case "AT":
		return VRTagList
	case "OW", "OB":
		return VRBytes
	case "LT", "UT":
		return VRString
	case "UL":
		return VRUInt32List
	case "SL":
		return VRInt32List
	case "US":
		return VRUInt16List
	case "SS":
		return VRInt16List
	case "FL":
		return VRFloat32List
	case "FD":
		return VRFloat64List
	case "SQ":
		return VRSequence
	default:
		return VRStringList
	}
}

// Find looks up the dictionary entry for a tag. Unknown group-length tags
// (element 0x0000 of an even group) synthesize a GenericGroupLength entry
// per the DICOM standard; any other unknown tag is an error.
func Find(tag Tag) (TagInfo, error) {
	maybeInitTagDict()
	entry, ok := tagDict[tag]
	if !ok {
		if tag.Group%2 == 0 && tag.Element == 0x0000 {
			entry = TagInfo{tag, "UL", "GenericGroupLength", "generic_group_length", "1"}
		} else {
			return TagInfo{}, fmt.Errorf("could not find tag %v in dictionary", tag)
		}
	}
	return entry, nil
}

// MustFind is like Find but panics on error.
func MustFind(tag Tag) TagInfo {
	e, err := Find(tag)
	if err != nil {
		panic(fmt.Sprintf("tag %v not found: %s", tag, err))
	}
	return e
}

// FindByName looks up a tag by its long dictionary name, e.g.
// FindByName("TransferSyntaxUID").
func FindByName(name string) (TagInfo, error) {
	maybeInitTagDict()
	if tag, ok := nameToTag[name]; ok {
		return tagDict[tag], nil
	}
	return TagInfo{}, fmt.Errorf("could not find tag with name %s", name)
}

// FindByShortName looks up a tag by its dictionary short name, e.g.
// FindByShortName("series_description"). Used by the dynamic name
// accessor (Design Notes 9.1).
func FindByShortName(name string) (TagInfo, error) {
	maybeInitTagDict()
	if tag, ok := shortNameToTag[name]; ok {
		return tagDict[tag], nil
	}
	return TagInfo{}, fmt.Errorf("could not find tag with short name %s", name)
}

// DebugString renders a tag as "(group, element)[name]" for diagnostics.
func DebugString(tag Tag) string {
	e, err := Find(tag)
	if err != nil {
		if IsPrivate(tag.Group) {
			return fmt.Sprintf("(%04x,%04x)[private]", tag.Group, tag.Element)
		}
		return fmt.Sprintf("(%04x,%04x)[??]", tag.Group, tag.Element)
	}
	return fmt.Sprintf("(%04x,%04x)[%s]", tag.Group, tag.Element, e.Name)
}

// ParseTag splits a string like "(0008,0010)" into its Tag value.
// TODO: support group ranges, e.g. (6000-60FF,0803).
func ParseTag(tag string) (Tag, error) {
	parts := strings.Split(strings.Trim(tag, "()"), ",")
	if len(parts) != 2 {
		return Tag{}, fmt.Errorf("malformed tag string %q", tag)
	}
	group, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 16, 0)
	if err != nil {
		return Tag{}, err
	}
	elem, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 16, 0)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: uint16(group), Element: uint16(elem)}, nil
}
