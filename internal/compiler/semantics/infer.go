package semantics

import (
	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/builtins"
)

// TypeEnv supplies the types of name bindings visible at an expression
// site: "this", parameters, locals, and fields. Both the analyzer (scopes)
// and the emitter (build context) implement it.
type TypeEnv interface {
	// TypeOfName returns the real type bound to name, when known.
	TypeOfName(name string) (string, bool)
}

// InferType performs the lightweight type inference shared by the check
// pass and the emitter. Unknown shapes degrade to Object, never to an
// error: inference informs dispatch, validation rejects.
func (ix *Index) InferType(e ast.Expression, env TypeEnv) string {
	switch n := e.(type) {
	case *ast.IntLit:
		return builtins.Integer
	case *ast.RealLit:
		return builtins.Real
	case *ast.BoolLit:
		return builtins.Boolean
	case *ast.StringLit:
		return builtins.String
	case *ast.This:
		if t, ok := env.TypeOfName("this"); ok {
			return t
		}
		return builtins.Object
	case *ast.New:
		return n.ClassName
	case *ast.Ident:
		if t, ok := env.TypeOfName(n.Name); ok && t != "" {
			return t
		}
		// A bare class name stands for that type (a default value site).
		if _, ok := ix.Classes[builtins.Head(n.Name)]; ok {
			return n.Name
		}
		if builtins.IsBuiltinClass(n.Name) {
			return n.Name
		}
		return builtins.Object
	case *ast.MemberAccess:
		return ix.inferMember(n, nil, env)
	case *ast.Call:
		if access, ok := n.Callee.(*ast.MemberAccess); ok {
			argTypes := make([]string, 0, len(n.Args))
			for _, a := range n.Args {
				argTypes = append(argTypes, ix.InferType(a, env))
			}
			return ix.inferMember(access, argTypes, env)
		}
		return builtins.Object
	}
	return builtins.Object
}

// inferMember types target.member, with argTypes nil for a bare access and
// non-nil (possibly empty) for a call.
func (ix *Index) inferMember(access *ast.MemberAccess, argTypes []string, env TypeEnv) string {
	// Implicit this.Name(...) where Name is a class is construction.
	if _, isThis := access.Target.(*ast.This); isThis && argTypes != nil {
		if _, ok := ix.Classes[access.Member]; ok {
			return access.Member
		}
		if builtins.IsBuiltinClass(access.Member) {
			return access.Member
		}
	}

	recv := ix.InferType(access.Target, env)

	if builtins.HasMethodTable(recv) {
		if ret, ok := builtins.MethodReturn(recv, access.Member, argTypes); ok {
			return ret
		}
	}

	if _, ok := ix.Classes[builtins.Head(recv)]; ok {
		if m := ix.FindMethodByName(builtins.Head(recv), access.Member); m != nil {
			if m.Return == "" {
				return builtins.Void
			}
			return m.Return
		}
		if t, _, ok := ix.FindField(builtins.Head(recv), access.Member); ok {
			return t
		}
	}
	return builtins.Object
}
