package il

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Binary module encoding: a self-contained, versioned stream of
// length-prefixed little-endian records. Layout:
//
//	magic "OILM", version u16
//	module name
//	type count, then per type:
//	  name, base index (i32, -1 for none)
//	  fields: count, then (name, storage)
//	  ctors and methods: count, then method records
//	entry: type index i32, method index i32 (-1/-1 when absent)
//
// Method record: name, flags u8 (1 static, 2 ctor), slot i32, return
// storage, param storages, local storages, instruction count, then per
// instruction: opcode u8 + operand (see writeInstr).
const (
	encMagic   = "OILM"
	encVersion = uint16(1)

	flagStatic = 1 << 0
	flagCtor   = 1 << 1
)

// Encode serialises the finalised module. Every type must have been
// created and every label marked.
func (m *ModuleBuilder) Encode() ([]byte, error) {
	for _, t := range m.Types {
		if !t.created {
			return nil, fmt.Errorf("type '%s' was never finalised", t.Name)
		}
		for _, mb := range append(append([]*MethodBuilder{}, t.Ctors...), t.Methods...) {
			if unresolved := mb.Unresolved(); len(unresolved) > 0 {
				return nil, fmt.Errorf("method '%s::%s' has %d unresolved label(s)", t.Name, mb.Name, len(unresolved))
			}
		}
	}

	typeIndex := make(map[*TypeBuilder]int, len(m.Types))
	for i, t := range m.Types {
		typeIndex[t] = i
	}

	var buf bytes.Buffer
	buf.WriteString(encMagic)
	writeU16(&buf, encVersion)
	writeString(&buf, m.Name)

	writeU32(&buf, uint32(len(m.Types)))
	for _, t := range m.Types {
		writeString(&buf, t.Name)
		base := int32(-1)
		if t.Base != nil {
			base = int32(typeIndex[t.Base])
		}
		writeI32(&buf, base)

		writeU32(&buf, uint32(len(t.Fields)))
		for _, f := range t.Fields {
			writeString(&buf, f.Name)
			writeString(&buf, string(f.Storage))
		}

		writeU32(&buf, uint32(len(t.Ctors)))
		for _, c := range t.Ctors {
			if err := writeMethod(&buf, c, t, typeIndex); err != nil {
				return nil, err
			}
		}
		writeU32(&buf, uint32(len(t.Methods)))
		for _, mb := range t.Methods {
			if err := writeMethod(&buf, mb, t, typeIndex); err != nil {
				return nil, err
			}
		}
	}

	entryType, entryMethod := int32(-1), int32(-1)
	if m.Entry != nil {
		entryType = int32(typeIndex[m.Entry.Owner])
		for i, mb := range m.Entry.Owner.Methods {
			if mb == m.Entry {
				entryMethod = int32(i)
			}
		}
	}
	writeI32(&buf, entryType)
	writeI32(&buf, entryMethod)

	return buf.Bytes(), nil
}

func writeMethod(buf *bytes.Buffer, m *MethodBuilder, owner *TypeBuilder, typeIndex map[*TypeBuilder]int) error {
	writeString(buf, m.Name)
	flags := byte(0)
	if m.Static {
		flags |= flagStatic
	}
	if m.Ctor {
		flags |= flagCtor
	}
	buf.WriteByte(flags)
	writeI32(buf, int32(m.Slot))
	writeString(buf, string(m.Return))

	writeU32(buf, uint32(len(m.Params)))
	for _, p := range m.Params {
		writeString(buf, string(p))
	}
	writeU32(buf, uint32(len(m.Locals)))
	for _, l := range m.Locals {
		writeString(buf, string(l))
	}

	writeU32(buf, uint32(len(m.Instrs)))
	for _, ins := range m.Instrs {
		if err := writeInstr(buf, m, ins, typeIndex); err != nil {
			return fmt.Errorf("method '%s::%s': %w", owner.Name, m.Name, err)
		}
	}
	return nil
}

func writeInstr(buf *bytes.Buffer, m *MethodBuilder, ins Instr, typeIndex map[*TypeBuilder]int) error {
	buf.WriteByte(byte(ins.Op))
	switch ins.Op {
	case OpLdarg, OpStarg, OpLdloc, OpStloc, OpLdcI8, OpLdcBool:
		writeI64(buf, ins.Int)
	case OpLdcR8:
		writeI64(buf, int64(math.Float64bits(ins.Float)))
	case OpLdstr, OpBox, OpUnbox:
		writeString(buf, ins.Str)
	case OpBr, OpBrfalse:
		target := m.LabelTarget(ins.Label)
		if target < 0 {
			return fmt.Errorf("branch through unmarked label %d", ins.Label)
		}
		writeI32(buf, int32(target))
	case OpLdfld, OpStfld:
		writeI32(buf, int32(typeIndex[ins.Field.Owner]))
		writeI32(buf, int32(ins.Field.Index))
	case OpNewobj, OpCall, OpCallvirt:
		callee := ins.Method
		writeI32(buf, int32(typeIndex[callee.Owner]))
		writeString(buf, callee.Name)
		writeU32(buf, uint32(len(callee.Params)))
		writeI32(buf, int32(callee.Slot))
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeI32(buf *bytes.Buffer, v int32) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeI64(buf *bytes.Buffer, v int64) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}
