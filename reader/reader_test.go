package reader_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mjw/volconv/dicomio"
	"github.com/mjw/volconv/dicomtag"
	"github.com/mjw/volconv/reader"
	"github.com/stretchr/testify/require"
)

// buildMinimalFile assembles a tiny, valid DICOM file: the 128-byte
// preamble, "DICM" magic, a file meta group (explicit VR little endian,
// transfer syntax given by tsUID), and one CS element and one US element
// in the body under tsUID.
func buildMinimalFile(t *testing.T, tsUID string, bodyOrder binary.ByteOrder, bodyImplicit dicomio.IsImplicitVR) []byte {
	t.Helper()

	meta := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	writeMetaElem(meta, dicomtag.Tag{Group: 0x0002, Element: 0x0002}, "UI", "1.2.840.10008.5.1.4.1.1.4")
	writeMetaElem(meta, dicomtag.Tag{Group: 0x0002, Element: 0x0003}, "UI", "1.2.3.4.5")
	writeMetaElem(meta, dicomtag.Tag{Group: 0x0002, Element: 0x0010}, "UI", tsUID)
	require.NoError(t, meta.Error())
	metaBytes := meta.Bytes()

	body := dicomio.NewBytesEncoder(bodyOrder, bodyImplicit)
	writeBodyElem(body, bodyImplicit, dicomtag.Tag{Group: 0x0008, Element: 0x0060}, "CS", []byte("MR"))
	us := make([]byte, 2)
	bodyOrder.PutUint16(us, 128)
	writeBodyElem(body, bodyImplicit, dicomtag.Tag{Group: 0x0028, Element: 0x0010}, "US", us)
	require.NoError(t, body.Error())
	bodyBytes := body.Bytes()

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")

	head := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	head.WriteUInt16(0x0002)
	head.WriteUInt16(0x0000)
	head.WriteString("UL")
	head.WriteUInt16(4)
	head.WriteUInt32(uint32(len(metaBytes)))
	require.NoError(t, head.Error())
	out.Write(head.Bytes())
	out.Write(metaBytes)
	out.Write(bodyBytes)

	return out.Bytes()
}

func writeMetaElem(e *dicomio.Encoder, tag dicomtag.Tag, vr string, value string) {
	if len(value)%2 == 1 {
		value += "\x00"
	}
	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)
	e.WriteString(vr)
	e.WriteUInt16(uint16(len(value)))
	e.WriteString(value)
}

func writeBodyElem(e *dicomio.Encoder, implicit dicomio.IsImplicitVR, tag dicomtag.Tag, vr string, value []byte) {
	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)
	if implicit == dicomio.ExplicitVR {
		e.WriteString(vr)
		e.WriteUInt16(uint16(len(value)))
	} else {
		e.WriteUInt32(uint32(len(value)))
	}
	e.WriteBytes(value)
}

func TestParseBytesExplicitLittleEndian(t *testing.T) {
	data := buildMinimalFile(t, dicomio.ExplicitVRLittleEndianUID, binary.LittleEndian, dicomio.ExplicitVR)

	m, err := reader.ParseBytes(data, reader.ReadOptions{ACRFallback: true})
	require.NoError(t, err)

	modality, err := m.GetString(dicomtag.Tag{Group: 0x0008, Element: 0x0060})
	require.NoError(t, err)
	require.Equal(t, "MR", modality)

	rows, ok := m.Get(dicomtag.Tag{Group: 0x0028, Element: 0x0010})
	require.True(t, ok)
	require.Equal(t, uint16(128), rows.Value)
}

func TestParseBytesImplicitLittleEndian(t *testing.T) {
	data := buildMinimalFile(t, dicomio.ImplicitVRLittleEndianUID, binary.LittleEndian, dicomio.ImplicitVR)

	m, err := reader.ParseBytes(data, reader.ReadOptions{ACRFallback: true})
	require.NoError(t, err)

	modality, err := m.GetString(dicomtag.Tag{Group: 0x0008, Element: 0x0060})
	require.NoError(t, err)
	require.Equal(t, "MR", modality)
}

func TestParseBytesUnhandledTransferSyntaxFails(t *testing.T) {
	data := buildMinimalFile(t, "1.2.840.10008.1.2.4.50", binary.LittleEndian, dicomio.ExplicitVR)

	_, err := reader.ParseBytes(data, reader.ReadOptions{ACRFallback: true})
	require.Error(t, err)
}

func TestParseBytesNotADicomFile(t *testing.T) {
	_, err := reader.ParseBytes([]byte("not a dicom file at all, padded out"), reader.ReadOptions{ACRFallback: false})
	require.Error(t, err)
}

func TestRoundTripExplicitLittleEndian(t *testing.T) {
	data := buildMinimalFile(t, dicomio.ExplicitVRLittleEndianUID, binary.LittleEndian, dicomio.ExplicitVR)

	m, err := reader.ParseBytes(data, reader.ReadOptions{ACRFallback: true})
	require.NoError(t, err)

	reencoded, err := reader.WriteDataSet(m, binary.LittleEndian, dicomio.ExplicitVR, nil)
	require.NoError(t, err)

	m2, err := reader.ParseBytes(append(append([]byte{}, data[:132]...), reencoded...), reader.ReadOptions{ACRFallback: true})
	require.NoError(t, err)

	modality, err := m2.GetString(dicomtag.Tag{Group: 0x0008, Element: 0x0060})
	require.NoError(t, err)
	require.Equal(t, "MR", modality)
}

func TestGetByNameUsesShortNameDictionary(t *testing.T) {
	data := buildMinimalFile(t, dicomio.ExplicitVRLittleEndianUID, binary.LittleEndian, dicomio.ExplicitVR)
	m, err := reader.ParseBytes(data, reader.ReadOptions{ACRFallback: true})
	require.NoError(t, err)

	e, ok := m.GetByName("modality")
	require.True(t, ok)
	require.Equal(t, "MR", e.Value)
}
