// Package buffer implements the binary codec used for every message payload.
// A ByteBuffer is either a writer (accumulating into a growable buffer) or a
// reader (consuming a fixed input); using it the wrong way round is an
// invalid-state error, never a panic.
package buffer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"reflect"

	"github.com/google/uuid"
)

var (
	ErrReadOnlyBuffer    = errors.New("cannot write to a read-only buffer")
	ErrWriteOnlyBuffer   = errors.New("cannot read from a write-only buffer")
	ErrBufferUnderrun    = errors.New("read past the end of the buffer")
	ErrVarIntTooBig      = errors.New("varint is too big")
	ErrVarLongTooBig     = errors.New("varlong is too big")
	ErrOrdinalOutOfRange = errors.New("enum ordinal out of range")
	ErrNoTypeCodec       = errors.New("buffer has no custom type codec")
)

// TypeCodec resolves serialization for types the codec does not know
// natively. Implemented by data.CustomTypeRegistry.
type TypeCodec interface {
	Serialize(buf *ByteBuffer, value any) error
	Deserialize(buf *ByteBuffer, target reflect.Type) (any, error)
}

// ByteBuffer reads or writes protocol values to a byte sequence. Exactly one
// of the two underlying buffers is set; the zero value is unusable. Instances
// are not safe for concurrent use, one is created per send or receive.
type ByteBuffer struct {
	types TypeCodec

	in  *bytes.Reader
	out *bytes.Buffer
}

// NewWriter returns a write-mode buffer. types may be nil if no custom types
// are written through this buffer.
func NewWriter(types TypeCodec) *ByteBuffer {
	return &ByteBuffer{types: types, out: new(bytes.Buffer)}
}

// NewReader returns a read-mode buffer over data. types may be nil if no
// custom types are read through this buffer.
func NewReader(types TypeCodec, data []byte) *ByteBuffer {
	return &ByteBuffer{types: types, in: bytes.NewReader(data)}
}

func (b *ByteBuffer) ensureReading() error {
	if b.in == nil {
		return ErrWriteOnlyBuffer
	}
	return nil
}

func (b *ByteBuffer) ensureWriting() error {
	if b.out == nil {
		return ErrReadOnlyBuffer
	}
	return nil
}

// Bytes returns the accumulated output of a write-mode buffer, or nil for a
// read-mode buffer.
func (b *ByteBuffer) Bytes() []byte {
	if b.out == nil {
		return nil
	}
	return b.out.Bytes()
}

// Remaining reports how many bytes are left to read. Zero for writers.
func (b *ByteBuffer) Remaining() int {
	if b.in == nil {
		return 0
	}
	return b.in.Len()
}

// WriteByte writes a single raw byte.
func (b *ByteBuffer) WriteByte(value byte) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	b.out.WriteByte(value)
	return nil
}

// ReadByte reads a single raw byte.
func (b *ByteBuffer) ReadByte() (byte, error) {
	if err := b.ensureReading(); err != nil {
		return 0, err
	}
	value, err := b.in.ReadByte()
	if err != nil {
		return 0, ErrBufferUnderrun
	}
	return value, nil
}

// WriteInt32 writes a 4 byte integer, most significant byte first.
func (b *ByteBuffer) WriteInt32(value int32) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(value))
	b.out.Write(scratch[:])
	return nil
}

// ReadInt32 reads a 4 byte integer, most significant byte first.
func (b *ByteBuffer) ReadInt32() (int32, error) {
	if err := b.ensureReading(); err != nil {
		return 0, err
	}
	var scratch [4]byte
	if _, err := io.ReadFull(b.in, scratch[:]); err != nil {
		return 0, ErrBufferUnderrun
	}
	return int32(binary.BigEndian.Uint32(scratch[:])), nil
}

// WriteInt64 writes an 8 byte integer, most significant byte first.
func (b *ByteBuffer) WriteInt64(value int64) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], uint64(value))
	b.out.Write(scratch[:])
	return nil
}

// ReadInt64 reads an 8 byte integer, most significant byte first.
func (b *ByteBuffer) ReadInt64() (int64, error) {
	if err := b.ensureReading(); err != nil {
		return 0, err
	}
	var scratch [8]byte
	if _, err := io.ReadFull(b.in, scratch[:]); err != nil {
		return 0, ErrBufferUnderrun
	}
	return int64(binary.BigEndian.Uint64(scratch[:])), nil
}

// WriteVarInt writes a variable-length integer in groups of 7 bits, low
// order group first, with the high bit of each byte set while more groups
// follow.
func (b *ByteBuffer) WriteVarInt(value uint32) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	for {
		if value&^0x7F == 0 {
			b.out.WriteByte(byte(value))
			return nil
		}
		b.out.WriteByte(byte(value&0x7F) | 0x80)
		value >>= 7
	}
}

// ReadVarInt reads a variable-length integer. Inputs spanning more than 5
// groups encode values beyond 32 bits and fail with ErrVarIntTooBig.
func (b *ByteBuffer) ReadVarInt() (uint32, error) {
	if err := b.ensureReading(); err != nil {
		return 0, err
	}

	var value uint32
	length := 0
	for {
		current, err := b.in.ReadByte()
		if err != nil {
			return 0, ErrBufferUnderrun
		}

		value |= uint32(current&0x7F) << (length * 7)

		length++
		if length > 5 {
			return 0, ErrVarIntTooBig
		}

		if current&0x80 == 0 {
			return value, nil
		}
	}
}

// WriteVarLong writes a variable-length long using the same scheme as
// WriteVarInt.
func (b *ByteBuffer) WriteVarLong(value uint64) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	for {
		if value&^0x7F == 0 {
			b.out.WriteByte(byte(value))
			return nil
		}
		b.out.WriteByte(byte(value&0x7F) | 0x80)
		value >>= 7
	}
}

// ReadVarLong reads a variable-length long. Inputs spanning more than 10
// groups fail with ErrVarLongTooBig.
func (b *ByteBuffer) ReadVarLong() (uint64, error) {
	if err := b.ensureReading(); err != nil {
		return 0, err
	}

	var value uint64
	length := 0
	for {
		current, err := b.in.ReadByte()
		if err != nil {
			return 0, ErrBufferUnderrun
		}

		value |= uint64(current&0x7F) << (length * 7)

		length++
		if length > 10 {
			return 0, ErrVarLongTooBig
		}

		if current&0x80 == 0 {
			return value, nil
		}
	}
}

// WriteFloat32 writes a 4 byte IEEE float through the fixed integer form.
func (b *ByteBuffer) WriteFloat32(value float32) error {
	return b.WriteInt32(int32(math.Float32bits(value)))
}

// ReadFloat32 reads a 4 byte IEEE float.
func (b *ByteBuffer) ReadFloat32() (float32, error) {
	bits, err := b.ReadInt32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(bits)), nil
}

// WriteFloat64 writes an 8 byte IEEE double through the fixed integer form.
func (b *ByteBuffer) WriteFloat64(value float64) error {
	return b.WriteInt64(int64(math.Float64bits(value)))
}

// ReadFloat64 reads an 8 byte IEEE double.
func (b *ByteBuffer) ReadFloat64() (float64, error) {
	bits, err := b.ReadInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

// WriteBool writes a boolean as a single byte, 1 for true and 0 for false.
func (b *ByteBuffer) WriteBool(value bool) error {
	if value {
		return b.WriteByte(1)
	}
	return b.WriteByte(0)
}

// ReadBool reads a boolean. Only the byte value 1 decodes as true; every
// other value, zero or not, decodes as false. Remote peers depend on this
// exact mapping, so it is kept even though nonzero-is-true would be the
// conventional reading.
func (b *ByteBuffer) ReadBool() (bool, error) {
	value, err := b.ReadByte()
	if err != nil {
		return false, err
	}
	return value == 1, nil
}

// WriteString writes a UTF-8 string prefixed with its byte length as a
// varint.
func (b *ByteBuffer) WriteString(value string) error {
	return b.WriteByteArray([]byte(value))
}

// ReadString reads a varint-length-prefixed UTF-8 string.
func (b *ByteBuffer) ReadString() (string, error) {
	data, err := b.ReadByteArray()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteUUID writes a UUID as its most significant 8 bytes followed by its
// least significant 8 bytes.
func (b *ByteBuffer) WriteUUID(value uuid.UUID) error {
	if err := b.WriteInt64(int64(binary.BigEndian.Uint64(value[:8]))); err != nil {
		return err
	}
	return b.WriteInt64(int64(binary.BigEndian.Uint64(value[8:])))
}

// ReadUUID reads a UUID written by WriteUUID.
func (b *ByteBuffer) ReadUUID() (uuid.UUID, error) {
	msb, err := b.ReadInt64()
	if err != nil {
		return uuid.Nil, err
	}
	lsb, err := b.ReadInt64()
	if err != nil {
		return uuid.Nil, err
	}

	var value uuid.UUID
	binary.BigEndian.PutUint64(value[:8], uint64(msb))
	binary.BigEndian.PutUint64(value[8:], uint64(lsb))
	return value, nil
}

// WriteBytes writes raw bytes with no length prefix.
func (b *ByteBuffer) WriteBytes(data []byte) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	b.out.Write(data)
	return nil
}

// WriteByteArray writes a byte array prefixed with its length as a varint.
func (b *ByteBuffer) WriteByteArray(data []byte) error {
	if err := b.WriteVarInt(uint32(len(data))); err != nil {
		return err
	}
	return b.WriteBytes(data)
}

// ReadByteArray reads a varint-length-prefixed byte array.
func (b *ByteBuffer) ReadByteArray() ([]byte, error) {
	size, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	return b.ReadBytesN(int(size))
}

// ReadBytes reads all remaining bytes.
func (b *ByteBuffer) ReadBytes() ([]byte, error) {
	if err := b.ensureReading(); err != nil {
		return nil, err
	}
	return b.ReadBytesN(b.in.Len())
}

// ReadBytesN reads exactly size bytes.
func (b *ByteBuffer) ReadBytesN(size int) ([]byte, error) {
	if err := b.ensureReading(); err != nil {
		return nil, err
	}
	if size > b.in.Len() {
		return nil, ErrBufferUnderrun
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(b.in, data); err != nil {
		return nil, ErrBufferUnderrun
	}
	return data, nil
}

// WriteCustom writes a value whose serialization is provided by the owning
// protocol's custom type registry, resolved by the value's runtime type.
func (b *ByteBuffer) WriteCustom(value any) error {
	if err := b.ensureWriting(); err != nil {
		return err
	}
	if b.types == nil {
		return ErrNoTypeCodec
	}
	return b.types.Serialize(b, value)
}

// ReadCustom reads a value of type T with deserialization provided by the
// owning protocol's custom type registry.
func ReadCustom[T any](b *ByteBuffer) (T, error) {
	var zero T
	if err := b.ensureReading(); err != nil {
		return zero, err
	}
	if b.types == nil {
		return zero, ErrNoTypeCodec
	}

	value, err := b.types.Deserialize(b, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return value.(T), nil
}
