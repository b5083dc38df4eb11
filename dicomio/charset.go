package dicomio

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// CodingSystem defines how a []byte is translated into a UTF-8 string.
type CodingSystem struct {
	// Three decoders exist only for VR="PN"; every other VR uses only
	// the Ideographic decoder. See PS3.5 6.2.
	Alphabetic  *encoding.Decoder
	Ideographic *encoding.Decoder
	Phonetic    *encoding.Decoder
}

// CodingSystemType selects which of the three PN component decoders is in
// play.
type CodingSystemType int

const (
	// AlphabeticCodingSystem is for writing a name in (English) alphabets.
	AlphabeticCodingSystem CodingSystemType = iota
	// IdeographicCodingSystem is for writing the name in the native writing
	// system (Kanji).
	IdeographicCodingSystem
	// PhoneticCodingSystem is for hirakana and/or katakana.
	PhoneticCodingSystem
)

// htmlEncodingNames maps a DICOM charset name to a golang.org/x/text/encoding/htmlindex
// name. "" means 7-bit ASCII.
var htmlEncodingNames = map[string]string{
	"ISO 2022 IR 6":   "iso-8859-1",
	"ISO_IR 13":       "shift_jis",
	"ISO 2022 IR 13":  "shift_jis",
	"ISO_IR 100":      "iso-8859-1",
	"ISO 2022 IR 100": "iso-8859-1",
	"ISO_IR 101":      "iso-8859-2",
	"ISO 2022 IR 101": "iso-8859-2",
	"ISO_IR 109":      "iso-8859-3",
	"ISO 2022 IR 109": "iso-8859-3",
	"ISO_IR 110":      "iso-8859-4",
	"ISO 2022 IR 110": "iso-8859-4",
	"ISO_IR 126":      "iso-ir-126",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO_IR 127":      "iso-ir-127",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO_IR 138":      "iso-ir-138",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO_IR 144":      "iso-ir-144",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO_IR 148":      "iso-ir-148",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 149": "euc-kr",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO_IR 166":      "iso-ir-166",
	"ISO 2022 IR 166": "iso-ir-166",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO_IR 192":      "utf-8",
	"GB18030":         "utf-8",
}

// ParseSpecificCharacterSet resolves the DICOM (0008,0005) Specific
// Character Set value to a CodingSystem. See PS3.2 D.6.2.
func ParseSpecificCharacterSet(encodingNames []string) (CodingSystem, error) {
	var decoders []*encoding.Decoder

	for _, name := range encodingNames {
		var c *encoding.Decoder
		logrus.Warnf("dicomio.ParseSpecificCharacterSet: using coding system %s", name)

		htmlName, ok := htmlEncodingNames[name]
		if !ok {
			return CodingSystem{}, fmt.Errorf("dicomio.ParseSpecificCharacterSet: unknown character set %q", name)
		}
		if htmlName != "" {
			d, err := htmlindex.Get(htmlName)
			if err != nil {
				logrus.Panic(fmt.Sprintf("encoding name %s (for %s) not found", name, htmlName))
			}
			c = d.NewDecoder()
		}

		decoders = append(decoders, c)
	}

	switch len(decoders) {
	case 0:
		return CodingSystem{nil, nil, nil}, nil
	case 1:
		return CodingSystem{decoders[0], decoders[0], decoders[0]}, nil
	case 2:
		return CodingSystem{decoders[0], decoders[1], decoders[1]}, nil
	default:
		return CodingSystem{decoders[0], decoders[1], decoders[2]}, nil
	}
}
