package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector packs v as consecutive little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector unpacks a blob written by EncodeVector. When dims > 0 the
// decoded length must match; a mismatch means the blob was written with a
// different model.
func DecodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	n := len(blob) / 4
	if dims > 0 && n != dims {
		return nil, fmt.Errorf("vector has %d dimensions, want %d", n, dims)
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return v, nil
}
