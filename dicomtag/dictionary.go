package dicomtag

import (
	"strings"
	"sync"
	"unicode"
)

// Item is the tag used for sequence item delimiters (FFFE,E000).
var Item = Tag{0xFFFE, 0xE000}

// ItemDelimitationItem closes one item within an undefined-length
// sequence (FFFE,E00D).
var ItemDelimitationItem = Tag{0xFFFE, 0xE00D}

// SequenceDelimitationItem closes an undefined-length sequence
// (FFFE,E0DD).
var SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}

// PixelData is the tag whose value is recorded as a (file_offset,
// byte_length) locator rather than loaded into memory (7FE0,0010).
var PixelData = Tag{0x7FE0, 0x0010}

// FileMetaInformationGroupLength is (0002,0000), used to compute switch_at
// for the transfer-syntax mid-file switch.
var FileMetaInformationGroupLength = Tag{0x0002, 0x0000}

// TransferSyntaxUID is (0002,0010).
var TransferSyntaxUID = Tag{0x0002, 0x0010}

// CSAImageHeaderInfo and CSASeriesHeaderInfo are the two Siemens private
// CSA2 blobs this module captures opaquely during the scan.
var (
	CSAImageHeaderInfo  = Tag{0x0029, 0x1010}
	CSASeriesHeaderInfo = Tag{0x0029, 0x1020}
)

var (
	tagDict        map[Tag]TagInfo
	nameToTag      map[string]Tag
	shortNameToTag map[string]Tag
	initTagDict    sync.Once
)

// rawDict lists every standard tag this module relies on: the full
// external-interface subset from SPEC_FULL.md section 6, plus the
// surrounding tags needed to decode the data sets that carry them
// (e.g. Rows/Columns/BitsAllocated).
var rawDict = []TagInfo{
	{Tag{0x0002, 0x0000}, "UL", "FileMetaInformationGroupLength", "", "1"},
	{Tag{0x0002, 0x0001}, "OB", "FileMetaInformationVersion", "", "1"},
	{Tag{0x0002, 0x0002}, "UI", "MediaStorageSOPClassUID", "", "1"},
	{Tag{0x0002, 0x0003}, "UI", "MediaStorageSOPInstanceUID", "", "1"},
	{Tag{0x0002, 0x0010}, "UI", "TransferSyntaxUID", "", "1"},
	{Tag{0x0002, 0x0012}, "UI", "ImplementationClassUID", "", "1"},
	{Tag{0x0002, 0x0013}, "SH", "ImplementationVersionName", "", "1"},

	{Tag{0x0008, 0x0005}, "CS", "SpecificCharacterSet", "", "1-n"},
	{Tag{0x0008, 0x0008}, "CS", "ImageType", "", "2-n"},
	{Tag{0x0008, 0x0016}, "UI", "SOPClassUID", "", "1"},
	{Tag{0x0008, 0x0018}, "UI", "SOPInstanceUID", "", "1"},
	{Tag{0x0008, 0x0020}, "DA", "StudyDate", "", "1"},
	{Tag{0x0008, 0x0021}, "DA", "SeriesDate", "", "1"},
	{Tag{0x0008, 0x0022}, "DA", "AcquisitionDate", "", "1"},
	{Tag{0x0008, 0x0030}, "TM", "StudyTime", "", "1"},
	{Tag{0x0008, 0x0031}, "TM", "SeriesTime", "", "1"},
	{Tag{0x0008, 0x0032}, "TM", "AcquisitionTime", "", "1"},
	{Tag{0x0008, 0x0060}, "CS", "Modality", "", "1"},
	{Tag{0x0008, 0x0070}, "LO", "Manufacturer", "", "1"},
	{Tag{0x0008, 0x1030}, "LO", "StudyDescription", "", "1"},
	{Tag{0x0008, 0x103E}, "LO", "SeriesDescription", "", "1"},
	{Tag{0x0008, 0x1090}, "LO", "ManufacturerModelName", "", "1"},

	{Tag{0x0010, 0x0010}, "PN", "PatientName", "", "1"},
	{Tag{0x0010, 0x0020}, "LO", "PatientID", "", "1"},
	{Tag{0x0010, 0x0030}, "DA", "PatientBirthDate", "", "1"},
	{Tag{0x0010, 0x0040}, "CS", "PatientSex", "", "1"},

	{Tag{0x0018, 0x0050}, "DS", "SliceThickness", "", "1"},
	{Tag{0x0018, 0x0080}, "DS", "RepetitionTime", "", "1"},
	{Tag{0x0018, 0x0081}, "DS", "EchoTime", "", "1"},
	{Tag{0x0018, 0x0086}, "IS", "EchoNumbers", "", "1-n"},
	{Tag{0x0018, 0x0088}, "DS", "SpacingBetweenSlices", "", "1"},
	{Tag{0x0018, 0x1030}, "LO", "ProtocolName", "", "1"},
	{Tag{0x0018, 0x1312}, "CS", "InPlanePhaseEncodingDirection", "", "1"},
	{Tag{0x0018, 0x1314}, "DS", "FlipAngle", "", "1"},
	{Tag{0x0018, 0x1316}, "DS", "SAR", "", "1"},

	// Siemens private group 0019 fields used as the non-CSA fallback for
	// diffusion/B-value when CSA parsing is skipped; VR is whatever the
	// sending scanner wrote (often DS, sometimes garbled to UN by PACS
	// relays), so this entry only governs implicit-VR lookups.
	{Tag{0x0019, 0x100c}, "DS", "B_value (private)", "", "1"},
	{Tag{0x0019, 0x100e}, "DS", "DiffusionGradientDirection (private)", "", "1-n"},

	{Tag{0x0020, 0x000D}, "UI", "StudyInstanceUID", "", "1"},
	{Tag{0x0020, 0x000E}, "UI", "SeriesInstanceUID", "", "1"},
	{Tag{0x0020, 0x0011}, "IS", "SeriesNumber", "", "1"},
	{Tag{0x0020, 0x0013}, "IS", "InstanceNumber", "", "1"},
	{Tag{0x0020, 0x0032}, "DS", "ImagePositionPatient", "", "3"},
	{Tag{0x0020, 0x0037}, "DS", "ImageOrientationPatient", "", "6"},
	{Tag{0x0020, 0x0100}, "IS", "TemporalPositionIdentifier", "", "1"},
	{Tag{0x0020, 0x1041}, "DS", "SliceLocation", "", "1"},

	{Tag{0x0028, 0x0002}, "US", "SamplesPerPixel", "", "1"},
	{Tag{0x0028, 0x0010}, "US", "Rows", "", "1"},
	{Tag{0x0028, 0x0011}, "US", "Columns", "", "1"},
	{Tag{0x0028, 0x0030}, "DS", "PixelSpacing", "", "2"},
	{Tag{0x0028, 0x0100}, "US", "BitsAllocated", "", "1"},
	{Tag{0x0028, 0x0101}, "US", "BitsStored", "", "1"},
	{Tag{0x0028, 0x0103}, "US", "PixelRepresentation", "", "1"},
	{Tag{0x0028, 0x1052}, "DS", "RescaleIntercept", "", "1"},
	{Tag{0x0028, 0x1053}, "DS", "RescaleSlope", "", "1"},

	// Siemens private CSA2 blobs. Private creator VRs are not part of
	// the public standard; this module treats them as opaque OB/UN and
	// hands them to the csa package rather than decoding them here.
	{Tag{0x0029, 0x1010}, "OB", "CSAImageHeaderInfo (RET)", "", "1"},
	{Tag{0x0029, 0x1020}, "OB", "CSASeriesHeaderInfo (RET)", "", "1"},

	{Tag{0x7FE0, 0x0010}, "OW", "PixelData", "", "1"},

	{Tag{0xFFFE, 0xE000}, "NONE", "Item", "", "1"},
	{Tag{0xFFFE, 0xE00D}, "NONE", "ItemDelimitationItem", "", "1"},
	{Tag{0xFFFE, 0xE0DD}, "NONE", "SequenceDelimitationItem", "", "1"},
}

// toShortName derives the dictionary short name from the long name: strip
// a trailing "(RET)" marker, split on word boundaries, lowercase, and join
// with underscores.
func toShortName(name string) string {
	name = strings.TrimSpace(strings.Replace(name, "(RET)", "", 1))
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if b.Len() > 0 && b.String()[b.Len()-1] != '_' {
				b.WriteByte('_')
			}
			continue
		}
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Trim(b.String(), "_")
}

func maybeInitTagDict() {
	initTagDict.Do(func() {
		tagDict = make(map[Tag]TagInfo, len(rawDict))
		nameToTag = make(map[string]Tag, len(rawDict))
		shortNameToTag = make(map[string]Tag, len(rawDict))
		for _, e := range rawDict {
			longName := strings.TrimSpace(strings.Replace(e.Name, "(RET)", "", 1))
			e.ShortName = toShortName(e.Name)
			tagDict[e.Tag] = e
			nameToTag[longName] = e.Tag
			shortNameToTag[e.ShortName] = e.Tag
		}
	})
}
