package semantics

import (
	"strings"
	"testing"

	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string) (*Analyzer, *Index, *ast.Program) {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	a := NewAnalyzer()
	ix := a.Analyze(prog)
	return a, ix, prog
}

func hasError(errs []string, fragment string) bool {
	for _, e := range errs {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}

func TestDuplicateClassRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class A is end
class A is end`)
	assert.True(t, hasError(a.Errors(), "already declared"), "errors: %v", a.Errors())
}

func TestUnknownBaseRejected(t *testing.T) {
	a, _, _ := analyze(t, `class A extends Zed is end`)
	assert.True(t, hasError(a.Errors(), "base class 'Zed'"), "errors: %v", a.Errors())
}

func TestCyclicInheritanceRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class A extends B is end
class B extends A is end`)
	assert.True(t, hasError(a.Errors(), "cyclic inheritance"), "errors: %v", a.Errors())
}

func TestInheritanceChainAccepted(t *testing.T) {
	a, ix, _ := analyze(t, `
class A is end
class B extends A is end
class C extends B is end`)
	assert.Empty(t, a.Errors())
	chain := ix.BaseChain("C")
	require.Len(t, chain, 3)
	assert.Equal(t, "C", chain[0].Name)
	assert.Equal(t, "A", chain[2].Name)
}

func TestUndeclaredIdentifierRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    print(y)
  end
end`)
	assert.True(t, hasError(a.Errors(), "undeclared identifier 'y'"), "errors: %v", a.Errors())
}

func TestAssignmentCompatibility(t *testing.T) {
	testData := []struct {
		stmt      string
		expectErr bool
	}{
		{`x := Integer(2)`, false},
		{`x := Real(2.5)`, false}, // Integer and Real convert either way
		{`x := "oops"`, true},
		{`x := Boolean(true)`, true},
	}
	for _, data := range testData {
		src := `
class M is
  method main() is
    var x : Integer(1)
    ` + data.stmt + `
    print(x)
  end
end`
		a, _, _ := analyze(t, src)
		if data.expectErr {
			assert.True(t, hasError(a.Errors(), "cannot assign"), "stmt %s: errors %v", data.stmt, a.Errors())
		} else {
			assert.Empty(t, a.Errors(), "stmt %s", data.stmt)
		}
	}
}

func TestAssignToClassRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    Integer := Integer(1)
  end
end`)
	assert.True(t, hasError(a.Errors(), "cannot assign to class"), "errors: %v", a.Errors())
}

func TestConditionMustBeBoolean(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    if Integer(1) then
      print(Integer(1))
    end
  end
end`)
	assert.True(t, hasError(a.Errors(), "condition must be Boolean"), "errors: %v", a.Errors())
}

func TestTypedMethodMustReturnValue(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method f(): Integer is
    return
  end
end`)
	assert.True(t, hasError(a.Errors(), "must return a value"), "errors: %v", a.Errors())
}

func TestValueReturnFromTypelessWarns(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method g() is
    return Integer(1)
  end
end`)
	assert.Empty(t, a.Errors())
	require.NotEmpty(t, a.Warnings())
	assert.Contains(t, a.Warnings()[0], "without a declared return type")
}

func TestBuiltinArityEnforced(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    print(Integer(1).Plus())
  end
end`)
	assert.True(t, hasError(a.Errors(), "expects 1 argument(s), got 0"), "errors: %v", a.Errors())
}

func TestBuiltinUnknownMethodRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    print(Integer(1).Frobnicate(Integer(2)))
  end
end`)
	assert.True(t, hasError(a.Errors(), "has no method 'Frobnicate'"), "errors: %v", a.Errors())
}

func TestIndexMustBeInteger(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    var xs: Array[Integer] := Array[Integer](3)
    print(xs.get(Real(1.5)))
  end
end`)
	assert.True(t, hasError(a.Errors(), "must be Integer"), "errors: %v", a.Errors())
}

func TestUnusedVariableWarns(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method main() is
    var u : Integer(1)
    print(Integer(2))
  end
end`)
	assert.Empty(t, a.Errors())
	found := false
	for _, w := range a.Warnings() {
		if strings.Contains(w, "unused variable 'u'") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", a.Warnings())
}

func TestDuplicateMethodRejectedForwardAllowed(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  method f(x: Integer): Integer
  method f(x: Integer): Integer => x
  method f(x: Real): Real => x
end`)
	assert.Empty(t, a.Errors(), "forward + implementation and a distinct overload are fine")

	a, _, _ = analyze(t, `
class M is
  method f(x: Integer): Integer => x
  method f(y: Integer): Integer => y
end`)
	assert.True(t, hasError(a.Errors(), "duplicate method"), "errors: %v", a.Errors())
}

func TestDuplicateConstructorRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  this(x: Integer) is end
  this(y: Integer) is end
end`)
	assert.True(t, hasError(a.Errors(), "duplicate constructor"), "errors: %v", a.Errors())
}

func TestDuplicateFieldRejected(t *testing.T) {
	a, _, _ := analyze(t, `
class M is
  var x : Integer
  var x : Real
end`)
	assert.True(t, hasError(a.Errors(), "field 'x' is already declared"), "errors: %v", a.Errors())
}

func TestInheritedFieldVisible(t *testing.T) {
	a, _, _ := analyze(t, `
class A is
  var x : Integer
end
class B extends A is
  method main() is
    this.x := Integer(3)
    print(x)
  end
end`)
	assert.Empty(t, a.Errors(), "errors: %v", a.Errors())
}

// Overload determinism: repeated resolution with the same argument types
// returns the same candidate.
func TestFindMethodDeterministic(t *testing.T) {
	_, ix, _ := analyze(t, `
class M is
  method f(x: Integer): Integer => x
  method f(x: Real): Real => x
end`)
	first := ix.FindMethod("M", "f", []string{"Integer"})
	require.NotNil(t, first)
	assert.Equal(t, []string{"Integer"}, first.Params)
	for i := 0; i < 5; i++ {
		assert.Same(t, first, ix.FindMethod("M", "f", []string{"Integer"}))
	}
}

func TestFindMethodObjectWildcard(t *testing.T) {
	_, ix, _ := analyze(t, `
class M is
  method f(x: Integer): Integer => x
end`)
	sig := ix.FindMethod("M", "f", []string{"Object"})
	require.NotNil(t, sig, "opaque Object arguments match on arity")
	assert.Equal(t, []string{"Integer"}, sig.Params)
}

func TestFindMethodWalksBaseChain(t *testing.T) {
	_, ix, _ := analyze(t, `
class A is
  method f(): Integer => Integer(1)
end
class B extends A is end`)
	sig := ix.FindMethod("B", "f", nil)
	require.NotNil(t, sig)
	assert.Equal(t, "A", sig.Owner)
}

type mapEnv map[string]string

func (m mapEnv) TypeOfName(name string) (string, bool) {
	t, ok := m[name]
	return t, ok
}

func TestInferTypeRules(t *testing.T) {
	_, ix, prog := analyze(t, `
class A is
  var n : Integer
  method f(): Real => Real(1.0)
end
class M is
  method main() is
    var a : A := A()
    print(a.f())
    print(a.n)
  end
end`)
	env := mapEnv{"a": "A"}
	main := prog.Classes[1].Members[0].(*ast.MethodDecl)

	calls := main.Body.Statements
	require.Len(t, calls, 2)

	fCall := calls[0].(*ast.ExprStmt).Expr.(*ast.Call).Args[0]
	assert.Equal(t, "Real", ix.InferType(fCall, env))

	nAccess := calls[1].(*ast.ExprStmt).Expr.(*ast.Call).Args[0]
	assert.Equal(t, "Integer", ix.InferType(nAccess, env))

	assert.Equal(t, "Boolean", ix.InferType(mustExpr(t, "Integer(1).Less(Integer(2))"), env))
	assert.Equal(t, "Real", ix.InferType(mustExpr(t, "Integer(1).Plus(Real(2.0))"), env))
	assert.Equal(t, "Integer", ix.InferType(mustExpr(t, "Real(1.0).toInteger"), env))
	assert.Equal(t, "Integer", ix.InferType(mustExpr(t, "Array[Integer](3).get(Integer(0))"), env))
}

// mustExpr parses a single expression by wrapping it in a print statement.
func mustExpr(t *testing.T, expr string) ast.Expression {
	t.Helper()
	prog, err := parser.Parse("class T is method m() is print(" + expr + ") end end")
	require.NoError(t, err)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	return body.Statements[0].(*ast.ExprStmt).Expr.(*ast.Call).Args[0]
}
