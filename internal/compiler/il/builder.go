package il

import "fmt"

// ModuleBuilder owns the class descriptors of one compile session. Types
// are defined in declaration order and finalised exactly once each.
type ModuleBuilder struct {
	Name  string
	Types []*TypeBuilder
	Entry *MethodBuilder

	byName map[string]*TypeBuilder
}

func NewModule(name string) *ModuleBuilder {
	return &ModuleBuilder{Name: name, byName: make(map[string]*TypeBuilder)}
}

// DefineType creates a class descriptor. base is nil for object-rooted
// classes.
func (m *ModuleBuilder) DefineType(name string, base *TypeBuilder) (*TypeBuilder, error) {
	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("type '%s' already defined in module", name)
	}
	tb := &TypeBuilder{Name: name, Base: base, fieldsByName: make(map[string]*FieldBuilder)}
	if base != nil {
		tb.slotCount = base.slotCount
	}
	m.Types = append(m.Types, tb)
	m.byName[name] = tb
	return tb, nil
}

func (m *ModuleBuilder) Type(name string) (*TypeBuilder, bool) {
	tb, ok := m.byName[name]
	return tb, ok
}

// SetEntryPoint registers the module's zero-argument static entry method.
func (m *ModuleBuilder) SetEntryPoint(method *MethodBuilder) error {
	if !method.Static {
		return fmt.Errorf("entry point '%s' must be static", method.Name)
	}
	if len(method.Params) != 0 {
		return fmt.Errorf("entry point '%s' must take no arguments", method.Name)
	}
	m.Entry = method
	return nil
}

// TypeBuilder is one class descriptor under construction.
type TypeBuilder struct {
	Name    string
	Base    *TypeBuilder
	Fields  []*FieldBuilder
	Methods []*MethodBuilder
	Ctors   []*MethodBuilder

	fieldsByName map[string]*FieldBuilder
	slotCount    int // virtual slots including inherited ones
	created      bool
}

func (t *TypeBuilder) DefineField(name string, storage StorageType) (*FieldBuilder, error) {
	if _, exists := t.fieldsByName[name]; exists {
		return nil, fmt.Errorf("field '%s' already defined on '%s'", name, t.Name)
	}
	fb := &FieldBuilder{Name: name, Owner: t, Storage: storage, Index: t.fieldCount()}
	t.Fields = append(t.Fields, fb)
	t.fieldsByName[name] = fb
	return fb, nil
}

func (t *TypeBuilder) fieldCount() int {
	n := len(t.Fields)
	for base := t.Base; base != nil; base = base.Base {
		n += len(base.Fields)
	}
	return n
}

// Field resolves a field on this type or any ancestor.
func (t *TypeBuilder) Field(name string) (*FieldBuilder, bool) {
	for cur := t; cur != nil; cur = cur.Base {
		if fb, ok := cur.fieldsByName[name]; ok {
			return fb, true
		}
	}
	return nil, false
}

// DefineMethod declares a virtual method. When an ancestor declares a
// method with the same name and parameter storage types, the new method
// reuses its slot (override semantics); otherwise it occupies a fresh one.
func (t *TypeBuilder) DefineMethod(name string, params []StorageType, ret StorageType) *MethodBuilder {
	mb := &MethodBuilder{Name: name, Owner: t, Params: params, Return: ret}
	if t.Base != nil {
		if overridden, ok := t.Base.FindMethod(name, params); ok {
			mb.Overrides = overridden
			mb.Slot = overridden.Slot
		}
	}
	if mb.Overrides == nil {
		// Ancestors may have gained methods after this type was defined;
		// fresh slots start past every inherited one.
		for base := t.Base; base != nil; base = base.Base {
			if base.slotCount > t.slotCount {
				t.slotCount = base.slotCount
			}
		}
		mb.Slot = t.slotCount
		t.slotCount++
	}
	t.Methods = append(t.Methods, mb)
	return mb
}

// FindMethod resolves a method by name and exact parameter storage types,
// walking the base chain.
func (t *TypeBuilder) FindMethod(name string, params []StorageType) (*MethodBuilder, bool) {
	for cur := t; cur != nil; cur = cur.Base {
		for _, mb := range cur.Methods {
			if mb.Name == name && storageEqual(mb.Params, params) {
				return mb, true
			}
		}
	}
	return nil, false
}

func storageEqual(a, b []StorageType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *TypeBuilder) DefineConstructor(params []StorageType) *MethodBuilder {
	mb := &MethodBuilder{Name: ".ctor", Owner: t, Params: params, Return: StVoid, Ctor: true}
	t.Ctors = append(t.Ctors, mb)
	return mb
}

func (t *TypeBuilder) DefineStaticMethod(name string, params []StorageType, ret StorageType) *MethodBuilder {
	mb := &MethodBuilder{Name: name, Owner: t, Params: params, Return: ret, Static: true}
	t.Methods = append(t.Methods, mb)
	return mb
}

// CreateType finalises the descriptor. It must be called exactly once,
// after every method body is emitted.
func (t *TypeBuilder) CreateType() error {
	if t.created {
		return fmt.Errorf("type '%s' already created", t.Name)
	}
	t.created = true
	return nil
}

func (t *TypeBuilder) Created() bool { return t.created }

// FieldBuilder is one field descriptor.
type FieldBuilder struct {
	Name    string
	Owner   *TypeBuilder
	Storage StorageType
	Index   int
}

// MethodBuilder is one method or constructor descriptor together with its
// instruction stream.
type MethodBuilder struct {
	Name   string
	Owner  *TypeBuilder
	Params []StorageType
	Return StorageType
	Static bool
	Ctor   bool

	Slot      int            // virtual slot; meaningful for instance methods
	Overrides *MethodBuilder // ancestor method sharing the slot, if any

	Locals []StorageType
	Instrs []Instr

	labels []int // label id → instruction index, -1 while unmarked
}

// DeclareLocal allocates a local slot and returns its index.
func (m *MethodBuilder) DeclareLocal(storage StorageType) int {
	m.Locals = append(m.Locals, storage)
	return len(m.Locals) - 1
}

// NewLabel creates an unmarked branch target.
func (m *MethodBuilder) NewLabel() Label {
	m.labels = append(m.labels, -1)
	return Label(len(m.labels) - 1)
}

// MarkLabel pins a label to the next emitted instruction.
func (m *MethodBuilder) MarkLabel(l Label) {
	m.labels[l] = len(m.Instrs)
}

// LabelTarget returns the instruction index a label was marked at.
func (m *MethodBuilder) LabelTarget(l Label) int {
	if int(l) < len(m.labels) {
		return m.labels[l]
	}
	return -1
}

func (m *MethodBuilder) Emit(op OpCode)                 { m.Instrs = append(m.Instrs, Instr{Op: op}) }
func (m *MethodBuilder) EmitInt(op OpCode, v int64)     { m.Instrs = append(m.Instrs, Instr{Op: op, Int: v}) }
func (m *MethodBuilder) EmitFloat(op OpCode, v float64) { m.Instrs = append(m.Instrs, Instr{Op: op, Float: v}) }
func (m *MethodBuilder) EmitString(op OpCode, s string) { m.Instrs = append(m.Instrs, Instr{Op: op, Str: s}) }
func (m *MethodBuilder) EmitBranch(op OpCode, l Label)  { m.Instrs = append(m.Instrs, Instr{Op: op, Label: l}) }
func (m *MethodBuilder) EmitCall(op OpCode, callee *MethodBuilder) {
	m.Instrs = append(m.Instrs, Instr{Op: op, Method: callee})
}
func (m *MethodBuilder) EmitField(op OpCode, f *FieldBuilder) {
	m.Instrs = append(m.Instrs, Instr{Op: op, Field: f})
}

// Unresolved returns the ids of labels that were created but never marked.
// A finished body must have none.
func (m *MethodBuilder) Unresolved() []Label {
	var out []Label
	for id, target := range m.labels {
		if target < 0 {
			out = append(out, Label(id))
		}
	}
	return out
}
