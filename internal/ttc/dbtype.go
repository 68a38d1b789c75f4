package ttc

import (
	"fmt"

	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// ObjectAttribute describes one attribute of a described object type
// (§4.I): its position-stable name, wire data type, and, for nested
// object attributes, the type name to resolve lazily.
type ObjectAttribute struct {
	Name          string
	Type          DataType
	NestedSchema  string
	NestedPackage string
	NestedName    string
}

// DescribeTypeMessage requests the attribute layout of a named object
// type, keyed by (schema, package_or_null, name) per §4.I.
type DescribeTypeMessage struct {
	Schema  string
	Package string
	Name    string

	OID        []byte
	Attributes []ObjectAttribute
}

func (m *DescribeTypeMessage) Encode(w *wire.WriteBuffer) error {
	if err := w.WriteUint8(wire.MsgFunction); err != nil {
		return err
	}
	if err := w.WriteUint8(funcDescribeType); err != nil {
		return err
	}
	if err := w.WriteString(m.Schema); err != nil {
		return err
	}
	if err := w.WriteString(m.Package); err != nil {
		return err
	}
	return w.WriteString(m.Name)
}

func (m *DescribeTypeMessage) Decode(r *wire.ReadBuffer) error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if tag == wire.MsgError {
		code, err := r.ReadUint16()
		if err != nil {
			return err
		}
		msg, err := r.ReadString()
		if err != nil {
			return err
		}
		return fmt.Errorf("ttc: ORA-%05d: %s", code, msg)
	}
	oid, err := r.ReadBytesShort()
	if err != nil {
		return err
	}
	numAttrs, err := r.ReadUint16()
	if err != nil {
		return err
	}
	attrs := make([]ObjectAttribute, 0, numAttrs)
	for i := 0; i < int(numAttrs); i++ {
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		typeTag, err := r.ReadUint8()
		if err != nil {
			return err
		}
		attr := ObjectAttribute{Name: name, Type: DataType(typeTag)}
		if attr.Type == DataTypeObject {
			if attr.NestedSchema, err = r.ReadString(); err != nil {
				return err
			}
			if attr.NestedPackage, err = r.ReadString(); err != nil {
				return err
			}
			if attr.NestedName, err = r.ReadString(); err != nil {
				return err
			}
		}
		attrs = append(attrs, attr)
	}
	m.OID = oid
	m.Attributes = attrs
	return nil
}

func (m *DescribeTypeMessage) Retry() bool         { return false }
func (m *DescribeTypeMessage) FlushOutBinds() bool { return false }

const funcDescribeType byte = 0x62
