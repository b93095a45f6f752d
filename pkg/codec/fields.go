package codec

import "fmt"

// FieldWidth is the number of ASCII digits used for one value.
const FieldWidth = 5

// FieldError indicates a field contains non-digit characters.
type FieldError struct {
	Index int
	Field [FieldWidth]byte
}

// Error implements error.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %d: invalid decimal %q", e.Index, e.Field[:])
}

// EncodedLen returns the number of bytes n values are encoded into.
func EncodedLen(n int) int {
	return n * FieldWidth
}

// Encode writes values into dst as zero-padded decimal fields and returns
// the number of bytes written. dst must hold EncodedLen(len(values)) bytes.
func Encode(dst []byte, values []uint16) int {
	size := EncodedLen(len(values))
	if len(dst) < size {
		panic("codec: encode buffer too small")
	}
	for i, v := range values {
		field := dst[i*FieldWidth : (i+1)*FieldWidth]
		for j := FieldWidth - 1; j >= 0; j-- {
			field[j] = '0' + byte(v%10)
			v /= 10
		}
	}
	return size
}

// Decode parses len(dst) fields from src. Values above 65535 are narrowed
// to 16 bits. A field with any non-digit character fails with *FieldError,
// in which case the content of dst is unspecified.
func Decode(dst []uint16, src []byte) error {
	if len(src) < EncodedLen(len(dst)) {
		panic("codec: decode buffer too small")
	}
	for i := range dst {
		field := src[i*FieldWidth : (i+1)*FieldWidth]
		var n uint32
		for _, c := range field {
			if c < '0' || c > '9' {
				fe := &FieldError{Index: i}
				copy(fe.Field[:], field)
				return fe
			}
			n = n*10 + uint32(c-'0')
		}
		dst[i] = uint16(n)
	}
	return nil
}

// DecodeLenient parses fields the way the legacy firmware did: leading
// blanks and an optional '+' are skipped, digits are consumed up to the
// first other character and a field without digits yields 0. It never fails.
func DecodeLenient(dst []uint16, src []byte) {
	if len(src) < EncodedLen(len(dst)) {
		panic("codec: decode buffer too small")
	}
	for i := range dst {
		dst[i] = uint16(lenientField(src[i*FieldWidth : (i+1)*FieldWidth]))
	}
}

func lenientField(field []byte) (n uint32) {
	pos := 0
	for pos < len(field) && (field[pos] == ' ' || field[pos] == '\t') {
		pos++
	}
	if pos < len(field) && field[pos] == '+' {
		pos++
	}
	for ; pos < len(field); pos++ {
		c := field[pos]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + uint32(c-'0')
	}
	return
}
