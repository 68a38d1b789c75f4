package ttc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VectorElementType selects the VECTOR payload's element encoding
// (§4.D, §8: "f32/f64/i8 vectors with optional normalization flag").
type VectorElementType byte

const (
	VectorFloat32 VectorElementType = iota
	VectorFloat64
	VectorInt8
)

const (
	vectorMagic   = "\xffVEC"
	vectorVersion = 1

	vectorFlagNormalized byte = 1 << 0
)

// Vector is a decoded VECTOR column value.
type Vector struct {
	ElementType VectorElementType
	Normalized  bool
	Float32s    []float32
	Float64s    []float64
	Int8s       []int8
}

// EncodeVector serializes a Vector to Oracle's binary VECTOR wire
// format: magic, version, element-type tag, flags, element count, then
// the packed elements.
func EncodeVector(v Vector) ([]byte, error) {
	buf := &growBuffer{}
	buf.writeString(vectorMagic)
	buf.writeByte(vectorVersion)
	buf.writeByte(byte(v.ElementType))
	flags := byte(0)
	if v.Normalized {
		flags |= vectorFlagNormalized
	}
	buf.writeByte(flags)

	switch v.ElementType {
	case VectorFloat32:
		buf.writeUint32(uint32(len(v.Float32s)))
		for _, f := range v.Float32s {
			var tmp [4]byte
			binary.BigEndian.PutUint32(tmp[:], math.Float32bits(f))
			buf.b = append(buf.b, tmp[:]...)
		}
	case VectorFloat64:
		buf.writeUint32(uint32(len(v.Float64s)))
		for _, f := range v.Float64s {
			buf.writeUint64(math.Float64bits(f))
		}
	case VectorInt8:
		buf.writeUint32(uint32(len(v.Int8s)))
		for _, b := range v.Int8s {
			buf.writeByte(byte(b))
		}
	default:
		return nil, fmt.Errorf("ttc: unknown vector element type %d", v.ElementType)
	}
	return buf.bytes(), nil
}

// DecodeVector parses a VECTOR wire blob produced by EncodeVector.
func DecodeVector(data []byte) (Vector, error) {
	if len(data) < len(vectorMagic)+3 || string(data[:len(vectorMagic)]) != vectorMagic {
		return Vector{}, fmt.Errorf("ttc: VECTOR missing magic header")
	}
	pos := len(vectorMagic)
	pos++ // version
	elemType := VectorElementType(data[pos])
	pos++
	flags := data[pos]
	pos++
	if pos+4 > len(data) {
		return Vector{}, fmt.Errorf("ttc: VECTOR truncated element count")
	}
	n := binary.BigEndian.Uint32(data[pos:])
	pos += 4

	v := Vector{ElementType: elemType, Normalized: flags&vectorFlagNormalized != 0}
	switch elemType {
	case VectorFloat32:
		if pos+int(n)*4 > len(data) {
			return Vector{}, fmt.Errorf("ttc: VECTOR truncated float32 payload")
		}
		v.Float32s = make([]float32, n)
		for i := uint32(0); i < n; i++ {
			v.Float32s[i] = math.Float32frombits(binary.BigEndian.Uint32(data[pos:]))
			pos += 4
		}
	case VectorFloat64:
		if pos+int(n)*8 > len(data) {
			return Vector{}, fmt.Errorf("ttc: VECTOR truncated float64 payload")
		}
		v.Float64s = make([]float64, n)
		for i := uint32(0); i < n; i++ {
			v.Float64s[i] = math.Float64frombits(binary.BigEndian.Uint64(data[pos:]))
			pos += 8
		}
	case VectorInt8:
		if pos+int(n) > len(data) {
			return Vector{}, fmt.Errorf("ttc: VECTOR truncated int8 payload")
		}
		v.Int8s = make([]int8, n)
		for i := uint32(0); i < n; i++ {
			v.Int8s[i] = int8(data[pos])
			pos++
		}
	default:
		return Vector{}, fmt.Errorf("ttc: unknown vector element type %d", elemType)
	}
	return v, nil
}
