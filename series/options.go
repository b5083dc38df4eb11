// Package series assembles per-file DICOM scans into oriented, time-sorted
// volumetric series: the orientation sub-series splitter/merger, Siemens
// mosaic unpacker, dynamic-time reconstructor, and sub-series namer.
package series

import "regexp"

// Options configures Scan. The zero value turns every option off,
// including ACR and CSA parsing.
type Options struct {
	// SplitOrient splits a series into sub-series when its slices carry
	// differing orientations.
	SplitOrient bool

	// RoundOrient merges orientations whose per-column angular error is
	// below RoundOrientThresh degrees.
	RoundOrient       bool
	RoundOrientThresh float64

	// NSubSeries forces z-padded sub-series names instead of anatomical
	// short names or alphabetic suffixes.
	NSubSeries bool

	// Mosaic forces Siemens mosaic unpacking with a fixed tile count.
	// Zero means "not forced": a file is then unpacked as a mosaic only
	// when CSA parsing is on and its CSA NumberOfImagesInMosaic field
	// says so. ImageType is not consulted.
	Mosaic int

	// CSA enables CSA2 parsing per file for mosaic/diffusion/SAR/phase
	// detection.
	CSA bool

	// ACR enables the ACR-NEMA fallback parse in the reader.
	ACR bool

	// Single forces every input file into one synthetic study/name/series.
	Single bool

	// Slice3D sorts slices by the projection of position onto i x j
	// instead of the orthogonal slice location tag.
	Slice3D bool

	// SliceInst uses the instance number as slice index when no geometry
	// tags are present.
	SliceInst bool

	// StackUnk accepts and naively stacks files lacking orientation or
	// position tags.
	StackUnk bool

	// SeqInc/SeqExc are include/exclude regexes over protocol
	// description.
	SeqInc *regexp.Regexp
	SeqExc *regexp.Regexp

	// TypeInc/TypeExc are include/exclude literals over an ImageType
	// component.
	TypeInc string
	TypeExc string

	// Phase/SAR extract phase-encoding direction and SAR fields from CSA.
	Phase bool
	SAR   bool

	// TimeHack is reserved for future use by instance-time
	// reconstruction; it is currently a no-op (DESIGN.md open-question
	// decision).
	TimeHack bool

	// PathGlob optionally restricts which directory-walk paths are read
	// at all, applied before the reader is invoked.
	PathGlob string

	// Progress, when non-nil, is invoked between files with the running
	// count of files processed, the total, and the warning count so far.
	Progress func(done, total, warnings int)
}
