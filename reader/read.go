package reader

import (
	"fmt"
	"os"

	"github.com/mjw/volconv/csa"
	"github.com/mjw/volconv/dicomio"
	"github.com/mjw/volconv/dicomtag"
)

// undefinedLength is the 32-bit sentinel marking a sequence or item whose
// end is signalled by a delimiter element instead of a fixed byte count.
const undefinedLength = 0xFFFFFFFF

// longVRs take a 2-byte reserved field and a 4-byte length in explicit VR,
// instead of the usual 2-byte length.
var longVRs = map[string]bool{
	"OB": true, "OW": true, "OF": true, "SQ": true, "UT": true, "UN": true,
}

// ReadFile parses one DICOM file into a TagMap.
func ReadFile(path string, opts ReadOptions) (TagMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data, opts)
}

// ParseBytes parses an in-memory DICOM file, exactly as ReadFile does for
// bytes already read off disk.
func ParseBytes(data []byte, opts ReadOptions) (TagMap, error) {
	start, order, implicit, err := detectPreamble(data, opts.ACRFallback)
	if err != nil {
		return nil, err
	}

	d := dicomio.NewBytesDecoder(data[start:], order, implicit)
	m := TagMap{}

	hasMetaGroup := start > 0
	if hasMetaGroup {
		if err := readMetaGroup(d, m); err != nil {
			return m, err
		}
		uid, err := m.GetString(dicomtag.TransferSyntaxUID)
		if err != nil {
			return m, fmt.Errorf("reader: file meta group missing TransferSyntaxUID: %w", err)
		}
		newOrder, newImplicit, err := dicomio.ParseTransferSyntaxUID(uid)
		if err != nil {
			return m, fmt.Errorf("reader: %w", err)
		}
		d.PushTransferSyntax(newOrder, newImplicit)
	}

	for !d.EOF() {
		e, ok := readElement(d, opts, start)
		if d.Error() != nil {
			return m, d.Error()
		}
		if !ok {
			break
		}
		if e == nil {
			continue
		}
		addElement(m, e, opts)
	}
	return m, d.Finish()
}

// readMetaGroup reads file meta information (group 0002), which is always
// explicit VR little endian regardless of the dataset's own transfer
// syntax, per PS3.10.
func readMetaGroup(d *dicomio.Decoder, m TagMap) error {
	lengthElem, ok := readElement(d, ReadOptions{}, 0)
	if !ok || lengthElem == nil {
		return fmt.Errorf("reader: could not read file meta information group length")
	}
	addElement(m, lengthElem, ReadOptions{})

	groupLength, ok := lengthElem.Value.(uint32)
	if !ok {
		return fmt.Errorf("reader: file meta information group length has unexpected type %T", lengthElem.Value)
	}

	d.PushLimit(int64(groupLength))
	defer d.PopLimit()

	for !d.EOF() {
		e, ok := readElement(d, ReadOptions{}, 0)
		if d.Error() != nil {
			return d.Error()
		}
		if !ok {
			break
		}
		if e == nil {
			continue
		}
		addElement(m, e, ReadOptions{})
	}
	return nil
}

// addElement inserts e into m, flattening sequence children into the
// top-level map when opts.Flat is set.
func addElement(m TagMap, e *Element, opts ReadOptions) {
	if opts.Flat {
		if children, ok := e.Value.([]TagMap); ok {
			for _, child := range children {
				for tag, ce := range child {
					m[tag] = ce
				}
			}
			e = &Element{Tag: e.Tag, VR: e.VR, Value: flattenedPlaceholder}
		}
	}
	m[e.Tag] = e
}

// readElement reads one data element, including recursing into sequences.
// It returns (nil, true) for delimiter elements, which carry no value of
// their own, and (nil, false) once the decoder has hit its limit or EOF.
func readElement(d *dicomio.Decoder, opts ReadOptions, fileOffset int64) (*Element, bool) {
	if d.EOF() {
		return nil, false
	}

	group := d.ReadUInt16()
	elem := d.ReadUInt16()
	if d.Error() != nil {
		return nil, false
	}
	tag := dicomtag.Tag{Group: group, Element: elem}

	if tag == dicomtag.ItemDelimitationItem || tag == dicomtag.SequenceDelimitationItem {
		d.Skip(4) // zero length field
		return nil, true
	}

	order, implicit := d.TransferSyntax()

	var vr string
	var length uint32
	if implicit == dicomio.ImplicitVR {
		info, err := dicomtag.Find(tag)
		if err != nil {
			vr = "UN"
		} else {
			vr = info.VR
		}
		length = d.ReadUInt32()
	} else {
		vr = string(d.ReadBytes(2))
		if longVRs[vr] {
			d.Skip(2) // reserved
			length = d.ReadUInt32()
		} else {
			length = uint32(d.ReadUInt16())
		}
	}
	if d.Error() != nil {
		return nil, false
	}

	info, infoErr := dicomtag.Find(tag)
	vm := ""
	if infoErr == nil {
		vm = info.VM
	}

	switch {
	case vr == "SQ":
		items, err := readSequence(d, length)
		if err != nil {
			d.SetError(err)
			return nil, false
		}
		return &Element{Tag: tag, VR: vr, Value: items, UndefinedLength: length == undefinedLength}, true

	case tag == dicomtag.PixelData:
		if length == undefinedLength {
			d.SetError(fmt.Errorf("reader: encapsulated (undefined-length) pixel data is not supported"))
			return nil, false
		}
		offset := fileOffset + d.BytesRead()
		d.Skip(int(length))
		return &Element{Tag: tag, VR: vr, Value: PixelLocator{Offset: offset, Length: length}}, true

	default:
		raw := d.ReadBytes(int(length))
		if d.Error() != nil {
			return nil, false
		}
		if opts.CaptureCSA && (tag == dicomtag.CSAImageHeaderInfo || tag == dicomtag.CSASeriesHeaderInfo) {
			return &Element{Tag: tag, VR: vr, Value: csa.Parse(raw)}, true
		}
		val, err := convertVal(order, vr, vm, raw)
		if err != nil {
			d.SetError(fmt.Errorf("%v: %w", tag, err))
			return nil, false
		}
		return &Element{Tag: tag, VR: vr, Value: val}, true
	}
}

// readSequence parses the items of an SQ element, either bounded by length
// or terminated by a SequenceDelimitationItem when length is undefined.
func readSequence(d *dicomio.Decoder, length uint32) ([]TagMap, error) {
	var items []TagMap
	if length != undefinedLength {
		d.PushLimit(int64(length))
		defer d.PopLimit()
	}

	for {
		if length != undefinedLength && d.EOF() {
			break
		}
		if d.EOF() {
			return nil, fmt.Errorf("reader: sequence ran past end of file before its delimiter")
		}

		group := d.ReadUInt16()
		elem := d.ReadUInt16()
		if d.Error() != nil {
			return nil, d.Error()
		}
		itemTag := dicomtag.Tag{Group: group, Element: elem}
		if itemTag == dicomtag.SequenceDelimitationItem {
			d.Skip(4)
			break
		}
		if itemTag != dicomtag.Item {
			return nil, fmt.Errorf("reader: expected item tag inside sequence, got %v", itemTag)
		}
		itemLength := d.ReadUInt32()

		item, err := readItem(d, itemLength)
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if length == undefinedLength {
			continue
		}
	}
	return items, nil
}

// readItem parses one sequence item's nested element list.
func readItem(d *dicomio.Decoder, itemLength uint32) (TagMap, error) {
	m := TagMap{}
	if itemLength != undefinedLength {
		d.PushLimit(int64(itemLength))
		defer d.PopLimit()
	}

	for {
		if itemLength != undefinedLength && d.EOF() {
			break
		}
		if d.EOF() {
			return nil, fmt.Errorf("reader: item ran past end of file before its delimiter")
		}
		e, ok := readElement(d, ReadOptions{}, 0)
		if d.Error() != nil {
			return nil, d.Error()
		}
		if !ok {
			break
		}
		if e == nil {
			// Delimiter: if it was the item delimiter, we are done.
			if itemLength == undefinedLength {
				break
			}
			continue
		}
		m[e.Tag] = e
	}
	return m, nil
}
