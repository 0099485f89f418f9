package il

import (
	"fmt"
	"strings"
)

// Dump renders the module as readable stack-machine assembly. The text
// form is what the REPL shows and what tests assert against; the binary
// form in encode.go is the executable artefact.
func (m *ModuleBuilder) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, ".module %s\n", m.Name)
	if m.Entry != nil {
		fmt.Fprintf(&b, ".entry %s::%s\n", m.Entry.Owner.Name, m.Entry.Name)
	}
	for _, t := range m.Types {
		b.WriteString("\n")
		dumpType(&b, t)
	}
	return b.String()
}

func dumpType(b *strings.Builder, t *TypeBuilder) {
	if t.Base != nil {
		fmt.Fprintf(b, ".class %s extends %s\n", t.Name, t.Base.Name)
	} else {
		fmt.Fprintf(b, ".class %s\n", t.Name)
	}
	for _, f := range t.Fields {
		fmt.Fprintf(b, "  .field %s %s\n", f.Storage, f.Name)
	}
	for _, c := range t.Ctors {
		dumpMethod(b, c)
	}
	for _, mth := range t.Methods {
		dumpMethod(b, mth)
	}
}

func dumpMethod(b *strings.Builder, m *MethodBuilder) {
	kind := ".method"
	if m.Ctor {
		kind = ".ctor"
	}
	flags := ""
	if m.Static {
		flags = " static"
	} else if m.Overrides != nil {
		flags = fmt.Sprintf(" override(slot %d)", m.Slot)
	}
	params := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		params = append(params, string(p))
	}
	fmt.Fprintf(b, "  %s%s %s %s(%s)\n", kind, flags, m.Return, m.Name, strings.Join(params, ", "))
	for i, loc := range m.Locals {
		fmt.Fprintf(b, "    .local %d %s\n", i, loc)
	}
	for i, ins := range m.Instrs {
		fmt.Fprintf(b, "    IL_%04d: %s\n", i, formatInstr(m, ins))
	}
}

func formatInstr(m *MethodBuilder, ins Instr) string {
	switch ins.Op {
	case OpLdarg, OpStarg, OpLdloc, OpStloc, OpLdcI8:
		return fmt.Sprintf("%s %d", ins.Op, ins.Int)
	case OpLdcR8:
		return fmt.Sprintf("%s %g", ins.Op, ins.Float)
	case OpLdcBool:
		return fmt.Sprintf("%s %t", ins.Op, ins.Int != 0)
	case OpLdstr:
		return fmt.Sprintf("%s %q", ins.Op, ins.Str)
	case OpBox, OpUnbox:
		return fmt.Sprintf("%s %s", ins.Op, ins.Str)
	case OpLdfld, OpStfld:
		return fmt.Sprintf("%s %s::%s", ins.Op, ins.Field.Owner.Name, ins.Field.Name)
	case OpNewobj, OpCall, OpCallvirt:
		return fmt.Sprintf("%s %s::%s/%d", ins.Op, ins.Method.Owner.Name, ins.Method.Name, len(ins.Method.Params))
	case OpBr, OpBrfalse:
		return fmt.Sprintf("%s IL_%04d", ins.Op, m.LabelTarget(ins.Label))
	}
	return ins.Op.String()
}
