package emitter

import (
	"github.com/pepegx/olang/internal/compiler/builtins"
	"github.com/pepegx/olang/internal/compiler/il"
	"github.com/pepegx/olang/internal/compiler/semantics"
)

// localBinding ties a name to a local slot, its storage type, and its real
// (pre-erasure) type.
type localBinding struct {
	Slot    int
	Storage il.StorageType
	Real    string
}

// paramBinding ties a name to a 1-based argument index (the receiver is
// index 0 for instance code), the declared storage type, and the real type.
type paramBinding struct {
	Index   int
	Storage il.StorageType
	Real    string
}

// buildContext is the per-method emitter state: name → binding maps, the
// element real types of Array/List slots, and the class under compilation.
// User classes erase to opaque references in storage; the real type kept
// here is what dispatch and field lookup are reconstructed from at use
// sites.
type buildContext struct {
	e      *Emitter
	class  *semantics.ClassInfo
	owner  *il.TypeBuilder
	method *il.MethodBuilder

	returnType string // declared return type name, "" for none

	locals map[string]*localBinding
	params map[string]*paramBinding
	elems  map[string]string // Array/List binding name → element real type
}

func (e *Emitter) newContext(ci *semantics.ClassInfo, owner *il.TypeBuilder, method *il.MethodBuilder, returnType string) *buildContext {
	return &buildContext{
		e:          e,
		class:      ci,
		owner:      owner,
		method:     method,
		returnType: returnType,
		locals:     make(map[string]*localBinding),
		params:     make(map[string]*paramBinding),
		elems:      make(map[string]string),
	}
}

// defineLocal allocates a slot for name and records both type views. The
// element type of an Array/List binding is tracked separately so access
// sites can box and unbox correctly.
func (c *buildContext) defineLocal(name string, storage il.StorageType, real string) *localBinding {
	slot := c.method.DeclareLocal(storage)
	b := &localBinding{Slot: slot, Storage: storage, Real: real}
	c.locals[name] = b
	c.trackElem(name, real)
	return b
}

func (c *buildContext) defineParameter(name string, index int, storage il.StorageType, real string) {
	c.params[name] = &paramBinding{Index: index, Storage: storage, Real: real}
	c.trackElem(name, real)
}

func (c *buildContext) trackElem(name, real string) {
	head := builtins.Head(real)
	if head == builtins.Array || head == builtins.List {
		if elem := builtins.Elem(real); elem != "" {
			c.elems[name] = elem
		}
	}
}

// TypeOfName implements semantics.TypeEnv over the context's bindings so
// the analyzer's inference drives opcode selection here too.
func (c *buildContext) TypeOfName(name string) (string, bool) {
	if name == "this" {
		if c.class != nil {
			return c.class.Name, true
		}
		return "", false
	}
	if b, ok := c.locals[name]; ok {
		return b.Real, b.Real != ""
	}
	if b, ok := c.params[name]; ok {
		return b.Real, b.Real != ""
	}
	if c.class != nil {
		if t, _, ok := c.e.ix.FindField(c.class.Name, name); ok {
			return t, t != ""
		}
	}
	return "", false
}

// resolveStorage maps a source-level type name onto its storage shape:
// primitive wrappers to primitive storage, Array/List to the opaque
// container shapes, user classes and unknowns to opaque references.
func (e *Emitter) resolveStorage(typeName string) il.StorageType {
	switch builtins.Head(typeName) {
	case builtins.Integer:
		return il.StInt
	case builtins.Real:
		return il.StReal
	case builtins.Boolean:
		return il.StBool
	case builtins.String:
		return il.StString
	case builtins.Array:
		return il.StArray
	case builtins.List:
		return il.StList
	case builtins.Void:
		return il.StVoid
	}
	return il.StObject
}

// findField performs the cascading field lookup through base classes,
// returning the IL field descriptor and the field's real type.
func (c *buildContext) findField(class, name string) (*il.FieldBuilder, string, bool) {
	real, owner, ok := c.e.ix.FindField(class, name)
	if !ok {
		return nil, "", false
	}
	ownerType, ok := c.e.mod.Type(owner)
	if !ok {
		return nil, "", false
	}
	fb, ok := ownerType.Field(name)
	if !ok {
		return nil, "", false
	}
	return fb, real, true
}
