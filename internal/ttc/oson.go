package ttc

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// OSON is Oracle's binary JSON wire format (§4.D constants, §8's
// round-trip law). This core implements the type-tagged tree codec
// over Go's generic JSON value shapes (nil, bool, float64/int64,
// string, []any, map[string]any, wire.DateTime) without attempting to
// replicate Oracle's internal field-id dictionary compression — every
// value round-trips, which is the invariant this core is held to.
const (
	osonMagic   = "\xffOSN"
	osonVersion = 1
)

const (
	osonTagNull byte = iota
	osonTagFalse
	osonTagTrue
	osonTagInt64
	osonTagFloat64
	osonTagString
	osonTagArray
	osonTagObject
	osonTagDate
	osonTagTimestamp
)

// EncodeOSON serializes a Go value tree to the OSON wire format.
func EncodeOSON(v any) ([]byte, error) {
	buf := &growBuffer{}
	buf.writeString(osonMagic)
	buf.writeByte(osonVersion)
	if err := encodeOSONValue(buf, v); err != nil {
		return nil, err
	}
	return buf.bytes(), nil
}

// DecodeOSON parses an OSON byte string back into a Go value tree.
func DecodeOSON(data []byte) (any, error) {
	if len(data) < len(osonMagic)+1 || string(data[:len(osonMagic)]) != osonMagic {
		return nil, fmt.Errorf("ttc: OSON missing magic header")
	}
	pos := len(osonMagic) + 1 // skip magic + version byte
	v, _, err := decodeOSONValue(data, pos)
	return v, err
}

func encodeOSONValue(buf *growBuffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.writeByte(osonTagNull)
	case bool:
		if t {
			buf.writeByte(osonTagTrue)
		} else {
			buf.writeByte(osonTagFalse)
		}
	case int:
		buf.writeByte(osonTagInt64)
		buf.writeInt64(int64(t))
	case int64:
		buf.writeByte(osonTagInt64)
		buf.writeInt64(t)
	case float64:
		buf.writeByte(osonTagFloat64)
		buf.writeUint64(math.Float64bits(t))
	case string:
		buf.writeByte(osonTagString)
		buf.writeLengthPrefixed([]byte(t))
	case wire.DateTime:
		if t.Nanosecond != 0 {
			buf.writeByte(osonTagTimestamp)
			buf.writeLengthPrefixed(wire.EncodeTimestamp(t))
		} else {
			buf.writeByte(osonTagDate)
			buf.writeLengthPrefixed(wire.EncodeDate(t))
		}
	case []any:
		buf.writeByte(osonTagArray)
		buf.writeUint32(uint32(len(t)))
		for _, elem := range t {
			if err := encodeOSONValue(buf, elem); err != nil {
				return err
			}
		}
	case map[string]any:
		buf.writeByte(osonTagObject)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.writeUint32(uint32(len(keys)))
		for _, k := range keys {
			buf.writeLengthPrefixed([]byte(k))
			if err := encodeOSONValue(buf, t[k]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("ttc: OSON cannot encode value of type %T", v)
	}
	return nil
}

func decodeOSONValue(data []byte, pos int) (any, int, error) {
	if pos >= len(data) {
		return nil, pos, fmt.Errorf("ttc: OSON truncated tag")
	}
	tag := data[pos]
	pos++
	switch tag {
	case osonTagNull:
		return nil, pos, nil
	case osonTagFalse:
		return false, pos, nil
	case osonTagTrue:
		return true, pos, nil
	case osonTagInt64:
		if pos+8 > len(data) {
			return nil, pos, fmt.Errorf("ttc: OSON truncated int64")
		}
		v := int64(binary.BigEndian.Uint64(data[pos:]))
		return v, pos + 8, nil
	case osonTagFloat64:
		if pos+8 > len(data) {
			return nil, pos, fmt.Errorf("ttc: OSON truncated float64")
		}
		v := math.Float64frombits(binary.BigEndian.Uint64(data[pos:]))
		return v, pos + 8, nil
	case osonTagString:
		s, next, err := readLengthPrefixed(data, pos)
		return string(s), next, err
	case osonTagDate:
		b, next, err := readLengthPrefixed(data, pos)
		if err != nil {
			return nil, pos, err
		}
		d, err := wire.DecodeDate(b)
		return d, next, err
	case osonTagTimestamp:
		b, next, err := readLengthPrefixed(data, pos)
		if err != nil {
			return nil, pos, err
		}
		d, err := wire.DecodeTimestamp(b)
		return d, next, err
	case osonTagArray:
		if pos+4 > len(data) {
			return nil, pos, fmt.Errorf("ttc: OSON truncated array length")
		}
		n := binary.BigEndian.Uint32(data[pos:])
		pos += 4
		out := make([]any, 0, n)
		for i := uint32(0); i < n; i++ {
			v, next, err := decodeOSONValue(data, pos)
			if err != nil {
				return nil, pos, err
			}
			out = append(out, v)
			pos = next
		}
		return out, pos, nil
	case osonTagObject:
		if pos+4 > len(data) {
			return nil, pos, fmt.Errorf("ttc: OSON truncated object length")
		}
		n := binary.BigEndian.Uint32(data[pos:])
		pos += 4
		out := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			key, next, err := readLengthPrefixed(data, pos)
			if err != nil {
				return nil, pos, err
			}
			pos = next
			v, next2, err := decodeOSONValue(data, pos)
			if err != nil {
				return nil, pos, err
			}
			out[string(key)] = v
			pos = next2
		}
		return out, pos, nil
	default:
		return nil, pos, fmt.Errorf("ttc: unknown OSON tag 0x%02x", tag)
	}
}

func readLengthPrefixed(data []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("ttc: OSON truncated length prefix")
	}
	n := binary.BigEndian.Uint32(data[pos:])
	pos += 4
	if pos+int(n) > len(data) {
		return nil, pos, fmt.Errorf("ttc: OSON truncated string body")
	}
	return data[pos : pos+int(n)], pos + int(n), nil
}

// growBuffer is a minimal append-only byte buffer used by the OSON and
// VECTOR codecs, which build a whole in-memory blob before it is
// handed to a WriteBuffer as one long/raw field.
type growBuffer struct{ b []byte }

func (g *growBuffer) writeByte(b byte)      { g.b = append(g.b, b) }
func (g *growBuffer) writeString(s string)  { g.b = append(g.b, s...) }
func (g *growBuffer) writeUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	g.b = append(g.b, tmp[:]...)
}
func (g *growBuffer) writeUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	g.b = append(g.b, tmp[:]...)
}
func (g *growBuffer) writeInt64(v int64) { g.writeUint64(uint64(v)) }
func (g *growBuffer) writeLengthPrefixed(b []byte) {
	g.writeUint32(uint32(len(b)))
	g.b = append(g.b, b...)
}
func (g *growBuffer) bytes() []byte { return g.b }
