package semantics

import (
	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/builtins"
)

// MethodSig is the analyzable shape of a declared method.
type MethodSig struct {
	Name    string
	Params  []string // declared parameter type names, canonical form
	Return  string   // "" when the method declares no return type
	Forward bool
	Owner   string
	Decl    *ast.MethodDecl
}

// CtorSig is the analyzable shape of a declared constructor.
type CtorSig struct {
	Params []string
	Owner  string
	Decl   *ast.ConstructorDecl
}

// ClassInfo indexes one class: resolved field types, method and
// constructor signatures, and the declared base.
type ClassInfo struct {
	Name       string
	Base       string
	Decl       *ast.ClassDecl
	Fields     map[string]string // field name → inferred type
	FieldOrder []string
	Methods    []*MethodSig
	Ctors      []*CtorSig
}

// Index is the program-wide class table shared by the analyzer and the
// emitter. The analyzer's type inference over this index is the sole
// source of truth the emitter dispatches on.
type Index struct {
	Classes map[string]*ClassInfo
	Order   []string // declaration order
}

func NewIndex() *Index {
	return &Index{Classes: make(map[string]*ClassInfo)}
}

func (ix *Index) Class(name string) (*ClassInfo, bool) {
	ci, ok := ix.Classes[builtins.Head(name)]
	return ci, ok
}

// BaseChain returns the class and its ancestors, nearest first. The chain
// is finite once the analyzer has rejected cycles; a visited set guards
// traversals that run before that check.
func (ix *Index) BaseChain(name string) []*ClassInfo {
	var chain []*ClassInfo
	seen := make(map[string]bool)
	for cur := name; cur != "" && !seen[cur]; {
		seen[cur] = true
		ci, ok := ix.Classes[cur]
		if !ok {
			break
		}
		chain = append(chain, ci)
		cur = ci.Base
	}
	return chain
}

// FindField resolves a field by cascading lookup through base classes.
func (ix *Index) FindField(class, field string) (typeName, owner string, ok bool) {
	for _, ci := range ix.BaseChain(class) {
		if t, found := ci.Fields[field]; found {
			return t, ci.Name, true
		}
	}
	return "", "", false
}

// FindMethodByName returns the first method with the given name along the
// base chain, regardless of signature. Used for zero-argument member
// access and return-type inference.
func (ix *Index) FindMethodByName(class, name string) *MethodSig {
	for _, ci := range ix.BaseChain(class) {
		for _, m := range ci.Methods {
			if m.Name == name && !m.Forward {
				return m
			}
		}
		// A forward declaration still carries the signature.
		for _, m := range ci.Methods {
			if m.Name == name {
				return m
			}
		}
	}
	return nil
}

// FindMethod implements overload resolution: (1) exact match on arity and
// parameter types, name equality treated as identity; (2) failing that,
// same arity where opaque Object arguments match any parameter type;
// (3) failing that, recurse into the base class.
func (ix *Index) FindMethod(class, name string, argTypes []string) *MethodSig {
	ci, ok := ix.Classes[class]
	if !ok {
		return nil
	}
	if m := matchMethod(ci.Methods, name, argTypes); m != nil {
		return m
	}
	if ci.Base != "" && ci.Base != class {
		return ix.FindMethod(ci.Base, name, argTypes)
	}
	return nil
}

func matchMethod(methods []*MethodSig, name string, argTypes []string) *MethodSig {
	var exact, loose *MethodSig
	for _, m := range methods {
		if m.Name != name {
			continue
		}
		// A forward declaration only wins when no implementation matches.
		if paramsEqual(m.Params, argTypes) {
			if !m.Forward {
				return m
			}
			if exact == nil {
				exact = m
			}
		} else if paramsCompatible(m.Params, argTypes) {
			if loose == nil || (loose.Forward && !m.Forward) {
				loose = m
			}
		}
	}
	if exact != nil {
		return exact
	}
	return loose
}

// FindCtor resolves a constructor with the same three-round scheme, minus
// the base-chain recursion: constructors are not inherited.
func (ix *Index) FindCtor(class string, argTypes []string) *CtorSig {
	ci, ok := ix.Classes[class]
	if !ok {
		return nil
	}
	for _, c := range ci.Ctors {
		if paramsEqual(c.Params, argTypes) {
			return c
		}
	}
	for _, c := range ci.Ctors {
		if paramsCompatible(c.Params, argTypes) {
			return c
		}
	}
	return nil
}

func paramsEqual(params, args []string) bool {
	if len(params) != len(args) {
		return false
	}
	for i := range params {
		if params[i] != args[i] {
			return false
		}
	}
	return true
}

// paramsCompatible matches on arity alone when either side degraded to the
// opaque Object storage type.
func paramsCompatible(params, args []string) bool {
	if len(params) != len(args) {
		return false
	}
	for i := range params {
		if params[i] != args[i] && params[i] != builtins.Object && args[i] != builtins.Object {
			return false
		}
	}
	return true
}

// BuildIndex collects class, field, method, and constructor signatures in
// declaration order. Field types are inferred from initialisers; an
// initialiser that is just a type name carries that type.
func BuildIndex(prog *ast.Program) *Index {
	ix := NewIndex()
	for _, cls := range prog.Classes {
		if _, dup := ix.Classes[cls.Name]; dup {
			continue // duplicate classes are the analyzer's to reject
		}
		ci := &ClassInfo{
			Name:   cls.Name,
			Base:   cls.Base,
			Decl:   cls,
			Fields: make(map[string]string),
		}
		ix.Classes[cls.Name] = ci
		ix.Order = append(ix.Order, cls.Name)
	}
	// Second sweep so field/member type inference can see every class name.
	for _, name := range ix.Order {
		ci := ix.Classes[name]
		for _, member := range ci.Decl.Members {
			switch m := member.(type) {
			case *ast.FieldDecl:
				if _, dup := ci.Fields[m.Name]; !dup {
					t := m.TypeName
					if t == "" {
						t = ix.fieldType(m.Init)
					}
					ci.Fields[m.Name] = t
					ci.FieldOrder = append(ci.FieldOrder, m.Name)
				}
			case *ast.ConstructorDecl:
				ci.Ctors = append(ci.Ctors, &CtorSig{
					Params: paramTypes(m.Parameters),
					Owner:  name,
					Decl:   m,
				})
			case *ast.MethodDecl:
				ci.Methods = append(ci.Methods, &MethodSig{
					Name:    m.Name,
					Params:  paramTypes(m.Parameters),
					Return:  m.ReturnType,
					Forward: m.Kind == ast.BodyForward,
					Owner:   name,
					Decl:    m,
				})
			}
		}
	}
	return ix
}

func paramTypes(params []*ast.Parameter) []string {
	types := make([]string, 0, len(params))
	for _, p := range params {
		types = append(types, p.TypeName)
	}
	return types
}

// fieldType infers a field's type from its initialiser without any local
// bindings in scope: literals map to wrapper classes, a bare type name
// means that type's default, construction yields the constructed class.
func (ix *Index) fieldType(init ast.Expression) string {
	return ix.InferType(init, emptyEnv{})
}

type emptyEnv struct{}

func (emptyEnv) TypeOfName(string) (string, bool) { return "", false }
