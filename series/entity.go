package series

import "github.com/mjw/volconv/reader"

// StudyKey identifies one DICOM study: (study_instance_uid, patient_name).
// When Options.Single is set every file collapses onto one synthetic
// StudyKey instead.
type StudyKey struct {
	StudyUID string
	Patient  string
}

// SeriesKey is the raw series number suffixed by the sub-series suffix
// C4 computes during orientation splitting. A series whose geometry could
// not be placed gets the literal suffix "unk".
type SeriesKey string

// SliceTimeEcho identifies one plane within a sub-series: a slice index,
// a volume time key, and an echo number. Entity's per-plane maps are all
// keyed by this triple.
type SliceTimeEcho struct {
	Slice float64
	Time  string
	Echo  int
}

// Endian records which byte order a slice's pixel data was written in,
// so the writer can byte-swap if the output target differs.
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

// Rescale is a DICOM modality LUT rescale pair.
type Rescale struct {
	Intercept float64
	Slope     float64
}

// MosaicDescriptor records where one tile sits within a Siemens mosaic
// image, so the pixel-decoding pipeline (an external collaborator, per
// SPEC_FULL.md) knows how to carve it out of the parent file's pixel
// payload.
type MosaicDescriptor struct {
	// MRows, MCols is the tile-grid shape (e.g. 6x6 for a 36-tile mosaic).
	MRows, MCols int
	N            int
	// RPos, CPos is this tile's row/column position within the grid.
	RPos, CPos int
	// FullRows, FullCols is the padded mosaic image's own pixel shape, as
	// stored in the file's Rows/Columns tags (side*tileRows, side*tileCols).
	FullRows, FullCols int
}

// SAR holds the extracted CSA SAR fields (Options.SAR).
type SAR struct {
	Values    []float64
	Body      float64
	MostCrit  string
	Mode      int
}

// Phase holds the extracted phase-encoding direction fields
// (Options.Phase).
type Phase struct {
	Direction string
	Positive  bool
	Axis      string
}

// Entity is one assembled sub-series: a set of slices, times, and echoes
// that can be safely stacked into a single output volume, per
// SPEC_FULL.md section 3. It is an explicit struct rather than an open
// attribute bag, per Design Notes 9 ("The Entity catch-all record").
type Entity struct {
	// Cols, Rows is the in-plane shape.
	Cols, Rows int

	// BitsAllocated is the DICOM (0028,0100) value shared across the
	// sub-series, used to size the raw pixel decode.
	BitsAllocated int

	// Res is the voxel resolution (dx, dy, dz) in millimetres.
	Res [3]float64

	// Orient maps an orientation vector (i0,i1,i2,j0,j1,j2) to true.
	// More than one entry only occurs when RoundOrient merged slices
	// within tolerance.
	Orient map[[6]float64]bool

	// Slices is the set of slice indices present in this sub-series.
	Slices map[float64]bool
	// Slicesd maps a slice index to its 3-vector DICOM position.
	Slicesd map[float64][3]float64

	// Echoes is the set of echo numbers; TE holds the echo time for
	// each.
	Echoes map[int]bool
	TE     map[int]float64

	// Times is the set of volume time keys.
	Times map[string]bool

	File    map[SliceTimeEcho]string
	Pixels  map[SliceTimeEcho]reader.PixelLocator
	End     map[SliceTimeEcho]Endian
	Rescale map[SliceTimeEcho]Rescale
	Mosaic  map[SliceTimeEcho]*MosaicDescriptor
	Dtimes  map[SliceTimeEcho]string
	Descrip map[SliceTimeEcho]string

	Diff map[string][3]float64
	Bval map[string]*float64

	SAR   *SAR
	Phase *Phase

	TR, Flip float64
	VFlip    string
	Table    []int

	ImType string // modality-specific ImageType component, lowercased
	Desc   string // SeriesDescription (or fallback)
	Type   string // full ImageType, slash-joined

	Date, Time     string
	StudyDate      string
	StudyTime      string
	Instance       int
	InstanceTime   bool
	PatientComment string
	ImageComment   string

	// Missing maps a (time,echo) pair to the count of slices absent from
	// that volume.
	Missing map[[2]interface{}]int
}

// newEntity allocates an Entity with every map initialized, matching the
// teacher's "always present, possibly empty" map convention.
func newEntity() *Entity {
	return &Entity{
		Orient:  map[[6]float64]bool{},
		Slices:  map[float64]bool{},
		Slicesd: map[float64][3]float64{},
		Echoes:  map[int]bool{},
		TE:      map[int]float64{},
		Times:   map[string]bool{},
		File:    map[SliceTimeEcho]string{},
		Pixels:  map[SliceTimeEcho]reader.PixelLocator{},
		End:     map[SliceTimeEcho]Endian{},
		Rescale: map[SliceTimeEcho]Rescale{},
		Mosaic:  map[SliceTimeEcho]*MosaicDescriptor{},
		Dtimes:  map[SliceTimeEcho]string{},
		Descrip: map[SliceTimeEcho]string{},
		Diff:    map[string][3]float64{},
		Bval:    map[string]*float64{},
		Missing: map[[2]interface{}]int{},
	}
}

// Result is the output of Scan: every assembled sub-series, grouped by
// study then series key.
type Result struct {
	Studies map[StudyKey]map[SeriesKey]*Entity
}

// OrientKey returns e's sole orientation vector, for entities that were
// never merged across orientations (the common case). On a mixed entity
// it returns one of the keys, unspecified which; with no keys it returns
// the zero vector.
func (e *Entity) OrientKey() [6]float64 {
	for k := range e.Orient {
		return k
	}
	return [6]float64{}
}
