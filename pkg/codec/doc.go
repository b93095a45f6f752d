// Package codec converts bus values to wireless fields and back.
package codec

// The wireless link carries fixed-width ASCII decimal fields.
// Each unsigned 16-bit value occupies exactly FieldWidth characters,
// zero-padded on the left, and fields are concatenated without
// separators, so field boundaries are purely positional.
//
//   [1, 65535, 0] <-> "000016553500000"
//
// Producer: bridge node (telemetry), operator application (commands)
// Consumer: the other side
