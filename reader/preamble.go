package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mjw/volconv/dicomio"
)

// acrImplicitLow/High and acrBigEndianLow/High are the two 16-bit ranges
// the ACR-NEMA fallback heuristic recognizes in the first group word of a
// file lacking the DICM magic.
const (
	acrImplicitLow   = 0x0001
	acrImplicitHigh  = 0x0008
	acrBigEndianLow  = 0x0100
	acrBigEndianHigh = 0x0800
)

// detectPreamble reads the leading bytes of buf and decides where data-set
// parsing should start and in which transfer syntax, following the
// preamble-detection rule: DICM magic at offset 128 wins outright; failing
// that, an optional ACR-NEMA heuristic inspects the first group word.
func detectPreamble(buf []byte, acrFallback bool) (start int64, byteorder binary.ByteOrder, implicit dicomio.IsImplicitVR, err error) {
	if len(buf) >= 132 && bytes.Equal(buf[128:132], []byte("DICM")) {
		return 132, binary.LittleEndian, dicomio.ExplicitVR, nil
	}

	if !acrFallback {
		return 0, nil, dicomio.UnknownVR, fmt.Errorf("not a DICOM file: missing DICM magic at offset 128")
	}
	if len(buf) < 2 {
		return 0, nil, dicomio.UnknownVR, io.ErrUnexpectedEOF
	}

	word := binary.LittleEndian.Uint16(buf[0:2])
	switch {
	case word >= acrImplicitLow && word <= acrImplicitHigh:
		return 0, binary.LittleEndian, dicomio.ImplicitVR, nil
	case word >= acrBigEndianLow && word <= acrBigEndianHigh:
		return 0, binary.BigEndian, dicomio.ImplicitVR, nil
	default:
		return 0, nil, dicomio.UnknownVR, fmt.Errorf("not a DICOM file: unrecognized leading group word 0x%04x", word)
	}
}
