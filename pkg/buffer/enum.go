package buffer

import "fmt"

// Ordinal constrains enumerated values written to the wire as their varint
// ordinal.
type Ordinal interface {
	~int | ~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32
}

// WriteEnum writes an enumerated value as its varint ordinal.
func WriteEnum[E Ordinal](b *ByteBuffer, value E) error {
	return b.WriteVarInt(uint32(value))
}

// ReadEnum reads a varint ordinal and indexes it into universe, the ordered
// table of all values of the enumerated type.
func ReadEnum[E Ordinal](b *ByteBuffer, universe []E) (E, error) {
	var zero E

	ordinal, err := b.ReadVarInt()
	if err != nil {
		return zero, err
	}
	if int(ordinal) >= len(universe) {
		return zero, fmt.Errorf("%w: ordinal %d, universe size %d", ErrOrdinalOutOfRange, ordinal, len(universe))
	}

	return universe[ordinal], nil
}
