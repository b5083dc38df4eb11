// Package dicomio provides low-level encoding and decoding primitives for
// DICOM data types: integers of various widths, strings, and byte runs,
// all aware of the currently active transfer syntax (byte order and
// implicit/explicit VR).
package dicomio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
)

// NativeByteOrder is the byte order of this machine.
var NativeByteOrder = binary.LittleEndian

type transferSyntaxStackEntry struct {
	byteorder binary.ByteOrder
	implicit  IsImplicitVR
}

type stackEntry struct {
	limit int64
	err   error
}

// Encoder encodes low-level DICOM data types to a byte stream.
type Encoder struct {
	err error

	out io.Writer

	byteorder binary.ByteOrder

	// implicit is not used internally; it lets callers inspect the
	// currently active transfer syntax.
	implicit IsImplicitVR

	// Stack of old transfer syntaxes, used by {Push,Pop}TransferSyntax.
	oldTransferSyntaxes []transferSyntaxStackEntry
}

// NewBytesEncoder creates an encoder that writes to an in-memory buffer,
// retrievable later via Bytes().
func NewBytesEncoder(byteorder binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{
		err:       nil,
		out:       &bytes.Buffer{},
		byteorder: byteorder,
		implicit:  implicit,
	}
}

// NewBytesEncoderWithTransferSyntax is like NewBytesEncoder but takes a
// transfer syntax UID.
func NewBytesEncoderWithTransferSyntax(transferSyntaxUID string) *Encoder {
	endian, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err == nil {
		return NewBytesEncoder(endian, implicit)
	}
	e := NewBytesEncoder(binary.LittleEndian, ExplicitVR)
	e.SetErrorf("%v: unknown transfer syntax uid", transferSyntaxUID)
	return e
}

// NewEncoderWithTransferSyntax is like NewEncoder but takes a transfer
// syntax UID.
func NewEncoderWithTransferSyntax(out io.Writer, transferSyntaxUID string) *Encoder {
	endian, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err == nil {
		return NewEncoder(out, endian, implicit)
	}
	e := NewEncoder(out, binary.LittleEndian, ExplicitVR)
	e.SetErrorf("%v: unknown transfer syntax uid", transferSyntaxUID)
	return e
}

// NewEncoder creates a new encoder that writes to "out".
func NewEncoder(out io.Writer, byteorder binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{
		err:       nil,
		out:       out,
		byteorder: byteorder,
		implicit:  implicit,
	}
}

// TransferSyntax returns the current transfer syntax.
func (e *Encoder) TransferSyntax() (binary.ByteOrder, IsImplicitVR) {
	return e.byteorder, e.implicit
}

// PushTransferSyntax temporarily changes the encoding transfer syntax.
// PopTransferSyntax restores the previous one.
func (e *Encoder) PushTransferSyntax(byteorder binary.ByteOrder, implicit IsImplicitVR) {
	e.oldTransferSyntaxes = append(e.oldTransferSyntaxes,
		transferSyntaxStackEntry{e.byteorder, e.implicit})
	e.byteorder = byteorder
	e.implicit = implicit
}

// PopTransferSyntax undoes the last PushTransferSyntax.
func (e *Encoder) PopTransferSyntax() {
	ts := e.oldTransferSyntaxes[len(e.oldTransferSyntaxes)-1]
	e.byteorder = ts.byteorder
	e.implicit = ts.implicit
	e.oldTransferSyntaxes = e.oldTransferSyntaxes[:len(e.oldTransferSyntaxes)-1]
}

// SetError sets the error to be reported by future Error() calls. If called
// multiple times with different errors, Error() will return one of them,
// but exactly which is unspecified.
//
// REQUIRES: err != nil
func (e *Encoder) SetError(err error) {
	if err != nil && e.err == nil {
		e.err = err
	}
}

// SetErrorf is similar to SetError, but takes a printf format string.
func (e *Encoder) SetErrorf(format string, args ...interface{}) {
	e.SetError(fmt.Errorf(format, args...))
}

// Error returns the error set by SetError, or nil if none was set.
func (e *Encoder) Error() error {
	return e.err
}

// Bytes returns the encoded data.
//
// REQUIRES: the encoder was created by NewBytesEncoder, not NewEncoder.
// REQUIRES: e.Error() == nil
func (e *Encoder) Bytes() []byte {
	DoAssert(len(e.oldTransferSyntaxes) == 0)
	if e.err != nil {
		logrus.Panic(e.err)
	}
	return e.out.(*bytes.Buffer).Bytes()
}

func (e *Encoder) WriteByte(v byte) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt16(v uint16) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt32(v uint32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt16(v int16) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt32(v int32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteFloat32(v float32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteFloat64(v float64) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

// WriteString writes the string, without any length prefix or padding.
func (e *Encoder) WriteString(v string) {
	if _, err := e.out.Write([]byte(v)); err != nil {
		e.SetError(err)
	}
}

// WriteZeros encodes a run of zero bytes.
func (e *Encoder) WriteZeros(len int) {
	zeros := make([]byte, len)
	e.out.Write(zeros)
}

// WriteBytes copies the given data to the output.
func (e *Encoder) WriteBytes(v []byte) {
	e.out.Write(v)
}

// IsImplicitVR defines whether a 2-character VR tag is emitted alongside
// each data element.
type IsImplicitVR int

const (
	// ImplicitVR encodes a data element with no VR tag; the VR is looked
	// up from the static dictionary instead.
	ImplicitVR IsImplicitVR = iota

	// ExplicitVR carries the 2-byte VR value inline with each data
	// element.
	ExplicitVR

	// UnknownVR is used when a DataElement is never encoded or decoded.
	UnknownVR
)

// Decoder decodes low-level DICOM data types from a byte stream.
type Decoder struct {
	in        *bufio.Reader
	err       error
	byteorder binary.ByteOrder

	// implicit is not used internally; it lets callers inspect the
	// currently active transfer syntax.
	implicit IsImplicitVR

	// Maximum number of bytes that may still be read.
	limit int64

	// Cumulative number of bytes read.
	pos int64

	// codingSystem decodes raw DICOM bytes to UTF-8; a nil decoder
	// implies plain ASCII. See PS3.5 6.1.2.1.
	codingSystem CodingSystem

	// Stack of old transfer syntaxes, used by {Push,Pop}TransferSyntax.
	oldTransferSyntaxes []transferSyntaxStackEntry
	// Stack of old limits, used by {Push,Pop}Limit; stored in descending
	// order.
	stateStack []stackEntry
}

// NewDecoder creates a decoder reading from "in". The read limit starts
// unbounded (math.MaxInt64); PushLimit narrows it.
func NewDecoder(
	in io.Reader,
	byteorder binary.ByteOrder,
	implicit IsImplicitVR) *Decoder {
	return &Decoder{
		in:        bufio.NewReader(in),
		err:       nil,
		byteorder: byteorder,
		implicit:  implicit,
		pos:       0,
		limit:     math.MaxInt64,
	}
}

// NewBytesDecoder creates a decoder over a byte slice. See NewDecoder.
func NewBytesDecoder(data []byte, byteorder binary.ByteOrder, implicit IsImplicitVR) *Decoder {
	return NewDecoder(bytes.NewReader(data), byteorder, implicit)
}

// NewBytesDecoderWithTransferSyntax is like NewBytesDecoder, but takes a
// transfer syntax UID instead of an explicit <byteorder, IsImplicitVR>
// pair.
func NewBytesDecoderWithTransferSyntax(data []byte, transferSyntaxUID string) *Decoder {
	endian, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err == nil {
		return NewBytesDecoder(data, endian, implicit)
	}
	d := NewBytesDecoder(data, binary.LittleEndian, ExplicitVR)
	d.SetError(fmt.Errorf("%v: unknown transfer syntax uid", transferSyntaxUID))
	return d
}

// SetError marks err to be reported by future Error() or Finish() calls.
// REQUIRES: err != nil
func (d *Decoder) SetError(err error) {
	if err != nil && d.err == nil {
		if err != io.EOF {
			err = fmt.Errorf("%s (file offset %d)", err.Error(), d.pos)
		}
		d.err = err
	}
}

// SetErrorf is similar to SetError, but takes a printf format string.
func (d *Decoder) SetErrorf(format string, args ...interface{}) {
	d.SetError(fmt.Errorf(format, args...))
}

// TransferSyntax returns the current transfer syntax.
func (d *Decoder) TransferSyntax() (byteorder binary.ByteOrder, implicit IsImplicitVR) {
	return d.byteorder, d.implicit
}

// PushTransferSyntax temporarily changes the decoding transfer syntax.
// PopTransferSyntax restores the previous one.
func (d *Decoder) PushTransferSyntax(byteorder binary.ByteOrder, implicit IsImplicitVR) {
	d.oldTransferSyntaxes = append(d.oldTransferSyntaxes, transferSyntaxStackEntry{d.byteorder, d.implicit})
	d.byteorder = byteorder
	d.implicit = implicit
}

// PushTransferSyntaxByUID is similar to PushTransferSyntax, but takes a
// transfer syntax UID.
func (d *Decoder) PushTransferSyntaxByUID(uid string) {
	endian, implicit, err := ParseTransferSyntaxUID(uid)
	if err != nil {
		d.SetError(err)
	}
	d.PushTransferSyntax(endian, implicit)
}

// SetCodingSystem overrides the default (7-bit ASCII) decoder used when
// converting raw bytes to a string.
func (d *Decoder) SetCodingSystem(cs CodingSystem) {
	d.codingSystem = cs
}

// PopTransferSyntax restores the transfer syntax active before the last
// PushTransferSyntax call.
func (d *Decoder) PopTransferSyntax() {
	e := d.oldTransferSyntaxes[len(d.oldTransferSyntaxes)-1]
	d.byteorder = e.byteorder
	d.implicit = e.implicit
	d.oldTransferSyntaxes = d.oldTransferSyntaxes[:len(d.oldTransferSyntaxes)-1]
}

// PushLimit temporarily tightens the end-of-buffer limit and clears
// d.err. PopLimit restores the previous limit and error.
//
// REQUIRES: the new limit is smaller than the current one.
func (d *Decoder) PushLimit(bytes int64) {
	newLimit := d.pos + bytes
	if newLimit > d.limit {
		d.SetError(fmt.Errorf("trying to read %d bytes beyond buffer end", newLimit-d.limit))
		newLimit = d.pos
	}
	d.stateStack = append(d.stateStack, stackEntry{limit: d.limit, err: d.err})
	d.limit = newLimit
	d.err = nil
}

// PopLimit restores the limit overridden by the matching PushLimit.
func (d *Decoder) PopLimit() {
	if d.pos < d.limit {
		// d.pos < d.limit iff a parse error happened and the caller
		// didn't fully consume the input. Skip over the unparsed part;
		// this is a heuristic to parse as much of a corrupt file as
		// possible.
		d.Skip(int(d.limit - d.pos))
	}
	last := len(d.stateStack) - 1
	d.limit = d.stateStack[last].limit
	if d.stateStack[last].err != nil {
		d.err = d.stateStack[last].err
	}
	d.stateStack = d.stateStack[:last]
}

// Error returns an error encountered so far.
func (d *Decoder) Error() error { return d.err }

// Finish must be called after the decoder is done being used. It returns
// any error encountered, including leftover unparsed data.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if !d.EOF() {
		return fmt.Errorf("decoder found junk")
	}
	return nil
}

func (d *Decoder) Read(p []byte) (int, error) {
	desired := d.len()
	if desired == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	if desired < int64(len(p)) {
		p = p[:desired]
	}

	n, err := d.in.Read(p)
	if n >= 0 {
		d.pos += int64(n)
	}
	return n, err
}

// EOF reports whether there is no more data to read.
func (d *Decoder) EOF() bool {
	if d.err != nil {
		return true
	}
	if d.limit-d.pos <= 0 {
		return true
	}
	data, _ := d.in.Peek(1)
	return len(data) == 0
}

// BytesRead returns the cumulative number of bytes read so far.
func (d *Decoder) BytesRead() int64 { return d.pos }

func (d *Decoder) len() int64 {
	return d.limit - d.pos
}

// ReadByte reads a single byte. On EOF it returns a junk value and sets an
// error to be returned by Error() or Finish().
func (d *Decoder) ReadByte() (v byte) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
		return 0
	}
	return v
}

func (d *Decoder) ReadUInt32() (v uint32) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt32() (v int32) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadUInt16() (v uint16) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt16() (v int16) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadFloat32() (v float32) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadFloat64() (v float64) {
	err := binary.Read(d, d.byteorder, &v)
	if err != nil {
		d.SetError(err)
	}
	return v
}

func internalReadString(d *Decoder, sd *encoding.Decoder, length int) string {
	raw := d.ReadBytes(length)
	if len(raw) == 0 {
		return ""
	}

	if sd == nil {
		// Assume UTF-8 is a superset of whatever 7-bit encoding is in
		// use.
		return string(raw)
	}

	decoded, err := sd.Bytes(raw)
	if err != nil {
		d.SetError(err)
		return ""
	}
	return string(decoded)
}

func (d *Decoder) ReadStringWithCodingSystem(csType CodingSystemType, length int) string {
	var sd *encoding.Decoder
	switch csType {
	case AlphabeticCodingSystem:
		sd = d.codingSystem.Alphabetic
	case IdeographicCodingSystem:
		sd = d.codingSystem.Ideographic
	case PhoneticCodingSystem:
		sd = d.codingSystem.Phonetic
	default:
		panic(csType)
	}
	return internalReadString(d, sd, length)
}

func (d *Decoder) ReadString(length int) string {
	return internalReadString(d, d.codingSystem.Ideographic, length)
}

func (d *Decoder) ReadBytes(length int) []byte {
	if d.len() < int64(length) {
		d.SetError(fmt.Errorf("ReadBytes: requested %d, available %d", length, d.len()))
		return nil
	}
	v := make([]byte, length)
	remaining := v
	for len(remaining) > 0 {
		n, err := d.Read(remaining)
		if err != nil {
			d.SetError(err)
			break
		}
		if n < 0 || n > len(remaining) {
			panic(fmt.Sprintf("remaining: %d %d", n, len(remaining)))
		}
		remaining = remaining[n:]
	}
	DoAssert(d.err != nil || len(remaining) == 0)
	return v
}

func (d *Decoder) Skip(length int) {
	if d.len() < int64(length) {
		d.SetError(fmt.Errorf("Skip: requested %d, available %d",
			length, d.len()))
		return
	}

	junkSize := 1 << 16
	if length < junkSize {
		junkSize = length
	}
	junk := make([]byte, junkSize)

	remaining := length
	for remaining > 0 {
		tempLength := len(junk)
		if remaining < tempLength {
			tempLength = remaining
		}

		tempBuf := junk[:tempLength]
		n, err := d.Read(tempBuf)
		if err != nil {
			d.SetError(err)
			break
		}
		DoAssert(n > 0)
		remaining -= n
	}

	DoAssert(d.err != nil || remaining == 0)
}

// DoAssert panics via logrus if condition is false. Used for invariants
// that should never be violated by correct callers.
func DoAssert(condition bool, values ...interface{}) {
	if !condition {
		var s string
		for _, value := range values {
			s += fmt.Sprintf("%v", value)
		}
		logrus.Panic(s)
	}
}
