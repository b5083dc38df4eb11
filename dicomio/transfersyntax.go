package dicomio

import (
	"encoding/binary"
	"fmt"
)

// The three transfer syntax UIDs this reader understands. Compressed and
// deflated transfer syntaxes are out of scope; any other UID is rejected by
// ParseTransferSyntaxUID.
const (
	ImplicitVRLittleEndianUID = "1.2.840.10008.1.2"
	ExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndianUID    = "1.2.840.10008.1.2.2"
)

// StandardTransferSyntaxes is the list of transfer syntaxes this module
// accepts.
var StandardTransferSyntaxes = []string{
	ImplicitVRLittleEndianUID,
	ExplicitVRLittleEndianUID,
	ExplicitVRBigEndianUID,
}

// ParseTransferSyntaxUID parses a transfer syntax UID into its byte order
// and implicit/explicit VR mode. Any UID outside StandardTransferSyntaxes
// is an error: this module does not support compressed or deflated
// transfer syntaxes.
func ParseTransferSyntaxUID(uid string) (byteorder binary.ByteOrder, implicit IsImplicitVR, err error) {
	switch uid {
	case ImplicitVRLittleEndianUID:
		return binary.LittleEndian, ImplicitVR, nil
	case ExplicitVRLittleEndianUID:
		return binary.LittleEndian, ExplicitVR, nil
	case ExplicitVRBigEndianUID:
		return binary.BigEndian, ExplicitVR, nil
	default:
		return nil, UnknownVR, fmt.Errorf("dicomio: unhandled transfer syntax uid %q", uid)
	}
}
