package emitter

import (
	"testing"

	"github.com/pepegx/olang/internal/compiler/il"
	"github.com/pepegx/olang/internal/compiler/parser"
	"github.com/pepegx/olang/internal/compiler/semantics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSrc(t *testing.T, src, start string) (*il.ModuleBuilder, *Emitter) {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	a := semantics.NewAnalyzer()
	ix := a.Analyze(prog)
	require.Empty(t, a.Errors(), "semantic errors: %v", a.Errors())
	e := NewEmitter(ix, "test", start)
	mod := e.Emit()
	require.Empty(t, e.Errors(), "emit errors: %v", e.Errors())
	return mod, e
}

func methodOf(t *testing.T, mod *il.ModuleBuilder, class, name string) *il.MethodBuilder {
	t.Helper()
	tb, ok := mod.Type(class)
	require.True(t, ok, "type %s not found", class)
	for _, m := range tb.Methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("method %s.%s not found", class, name)
	return nil
}

func ops(m *il.MethodBuilder) []il.OpCode {
	out := make([]il.OpCode, 0, len(m.Instrs))
	for _, ins := range m.Instrs {
		out = append(out, ins.Op)
	}
	return out
}

// containsSeq reports whether want appears in got as a (not necessarily
// contiguous) subsequence, in order.
func containsSeq(got []il.OpCode, want ...il.OpCode) bool {
	i := 0
	for _, op := range got {
		if i < len(want) && op == want[i] {
			i++
		}
	}
	return i == len(want)
}

func TestEmitArithmeticPrint(t *testing.T) {
	mod, _ := compileSrc(t, `
class C is
  this() is end
  method main() is
    print(Integer(2).Plus(Integer(3)))
  end
end`, "")
	main := methodOf(t, mod, "C", "main")
	assert.True(t, containsSeq(ops(main), il.OpLdcI8, il.OpLdcI8, il.OpAdd, il.OpPrintI8),
		"ops: %v", ops(main))

	var consts []int64
	for _, ins := range main.Instrs {
		if ins.Op == il.OpLdcI8 {
			consts = append(consts, ins.Int)
		}
	}
	assert.Equal(t, []int64{2, 3}, consts)
}

func TestEmitVirtualDispatch(t *testing.T) {
	mod, _ := compileSrc(t, `
class A is
  method f(): Integer => Integer(1)
end
class B extends A is
  method f(): Integer => Integer(2)
end
class M is
  method main() is
    var a: A := B()
    print(a.f())
  end
end`, "M")
	aF := methodOf(t, mod, "A", "f")
	bF := methodOf(t, mod, "B", "f")
	assert.Equal(t, aF.Slot, bF.Slot, "an override shares its ancestor's virtual slot")
	assert.Same(t, aF, bF.Overrides)
	assert.Nil(t, aF.Overrides)

	// The call site dispatches through the static type A.
	main := methodOf(t, mod, "M", "main")
	var callee *il.MethodBuilder
	for _, ins := range main.Instrs {
		if ins.Op == il.OpCallvirt && ins.Method.Name == "f" {
			callee = ins.Method
		}
	}
	require.NotNil(t, callee)
	assert.Equal(t, "A", callee.Owner.Name)
}

func TestEmitArrayBoxing(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    var xs: Array[Integer] := Array[Integer](3)
    xs.set(Integer(0), Integer(7))
    print(xs.get(Integer(0)))
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main),
		il.OpNewarr, il.OpBox, il.OpStelem, il.OpLdelem, il.OpUnbox, il.OpPrintI8),
		"ops: %v", ops(main))

	for _, ins := range main.Instrs {
		if ins.Op == il.OpBox || ins.Op == il.OpUnbox {
			assert.Equal(t, "Integer", ins.Str)
		}
	}
}

func TestEmitListOperations(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    var xs : List[Integer](Integer(1))
    xs.append(Integer(2))
    print(xs.head)
    print(xs.Length)
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main),
		il.OpNewlist, il.OpDup, il.OpBox, il.OpLappend, // List[Integer](1)
		il.OpLappend, // xs.append(2)
		il.OpLhead, il.OpUnbox, // head of a primitive list unboxes
		il.OpLlen, il.OpPrintI8), // Length
		"ops: %v", ops(main))
}

// Re-wrapping a list degenerates to the original list: List(tail(xs)) is a
// no-op construction.
func TestEmitListOfList(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    var xs : List[Integer](Integer(1))
    var ys : List[Integer](xs)
    print(ys.Length)
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	count := 0
	for _, op := range ops(main) {
		if op == il.OpNewlist {
			count++
		}
	}
	assert.Equal(t, 1, count, "only the first construction allocates")
}

func TestEmitListTail(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    var xs : List[Integer](Integer(1))
    var ys : List[Integer] := xs.tail
    print(ys.Length)
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main), il.OpLlen, il.OpLdcI8, il.OpSub, il.OpLrange),
		"tail lowers to range(1, length-1); ops: %v", ops(main))
}

func TestEmitConstructorProtocol(t *testing.T) {
	mod, _ := compileSrc(t, `
class A is
  this() is end
end
class B extends A is
  var n : Integer(5)
  this() is
    print(n)
  end
end`, "")
	tb, ok := mod.Type("B")
	require.True(t, ok)
	require.Len(t, tb.Ctors, 1)
	ctor := tb.Ctors[0]

	instrs := ctor.Instrs
	require.NotEmpty(t, instrs)
	// Receiver first, then the base constructor call, then field
	// initialisers in source order, user body, return.
	assert.Equal(t, il.OpLdarg, instrs[0].Op)
	assert.Equal(t, int64(0), instrs[0].Int)
	assert.Equal(t, il.OpCall, instrs[1].Op)
	assert.Equal(t, "A", instrs[1].Method.Owner.Name)
	assert.True(t, containsSeq(ops(ctor), il.OpLdarg, il.OpCall, il.OpStfld, il.OpRet))
	assert.Equal(t, il.OpRet, instrs[len(instrs)-1].Op)
}

func TestEmitDefaultConstructorSynthesised(t *testing.T) {
	mod, _ := compileSrc(t, `
class A is
  var n : Integer
end`, "")
	tb, ok := mod.Type("A")
	require.True(t, ok)
	require.Len(t, tb.Ctors, 1, "a parameterless default is synthesised")
	ctor := tb.Ctors[0]
	assert.Empty(t, ctor.Params)
	// The Integer field defaults to zero.
	assert.True(t, containsSeq(ops(ctor), il.OpLdarg, il.OpLdcI8, il.OpStfld, il.OpRet))
}

func TestEmitNumericPromotion(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    print(Integer(1).Plus(Real(2.0)))
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main), il.OpLdcI8, il.OpConvR8, il.OpLdcR8, il.OpAdd, il.OpPrintR8),
		"mixed arithmetic widens to Real; ops: %v", ops(main))
}

func TestEmitComparisonSynthesis(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    print(Integer(1).LessEqual(Integer(2)))
    print(Integer(1).GreaterEqual(Integer(2)))
    print(Integer(1).Less(Integer(2)))
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main),
		il.OpCgt, il.OpLdcBool, il.OpCeq, il.OpPrintBool,
		il.OpClt, il.OpLdcBool, il.OpCeq, il.OpPrintBool,
		il.OpClt, il.OpPrintBool),
		"ops: %v", ops(main))
}

func TestEmitWhileShape(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    var i : Integer(0)
    while i.Less(Integer(3)) loop
      i := i.Plus(Integer(1))
    end
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main), il.OpClt, il.OpBrfalse, il.OpAdd, il.OpStloc, il.OpBr),
		"ops: %v", ops(main))
}

func TestEmitPrintSinks(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    print("hi")
    print(Real(1.5))
    print(Boolean(true))
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	assert.True(t, containsSeq(ops(main),
		il.OpLdstr, il.OpPrintStr, il.OpLdcR8, il.OpPrintR8, il.OpLdcBool, il.OpPrintBool),
		"ops: %v", ops(main))
}

func TestEmitFieldAssignLoadsReceiverFirst(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  var n : Integer
  method bump() is
    this.n := n.Plus(Integer(1))
  end
end`, "")
	bump := methodOf(t, mod, "M", "bump")
	assert.True(t, containsSeq(ops(bump), il.OpLdarg, il.OpLdarg, il.OpLdfld, il.OpAdd, il.OpStfld),
		"ops: %v", ops(bump))
}

func TestEmitEntrySynthesis(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    print(Integer(1))
  end
end`, "")
	require.NotNil(t, mod.Entry)
	assert.Equal(t, "$Entry", mod.Entry.Owner.Name)
	assert.Equal(t, "Main", mod.Entry.Name)
	assert.True(t, mod.Entry.Static)
	assert.True(t, containsSeq(ops(mod.Entry), il.OpNewobj, il.OpCallvirt, il.OpRet),
		"ops: %v", ops(mod.Entry))
}

func TestEmitEntryDiscardsResult(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main(): Integer => Integer(0)
end`, "")
	assert.True(t, containsSeq(ops(mod.Entry), il.OpCallvirt, il.OpPop, il.OpRet),
		"a non-void main result is discarded; ops: %v", ops(mod.Entry))
}

func TestEmitEntryRunFallback(t *testing.T) {
	mod, _ := compileSrc(t, `
class R is
  method run() is
    print(Integer(1))
  end
end`, "")
	var called string
	for _, ins := range mod.Entry.Instrs {
		if ins.Op == il.OpCallvirt {
			called = ins.Method.Name
		}
	}
	assert.Equal(t, "run", called)
}

func TestEmitEntryStartFlag(t *testing.T) {
	mod, _ := compileSrc(t, `
class A is
  method main() is print(Integer(1)) end
end
class B is
  method main() is print(Integer(2)) end
end`, "B")
	var constructed string
	for _, ins := range mod.Entry.Instrs {
		if ins.Op == il.OpNewobj {
			constructed = ins.Method.Owner.Name
		}
	}
	assert.Equal(t, "B", constructed)
}

func TestEmitEntryMissingMainWarns(t *testing.T) {
	mod, e := compileSrc(t, `
class M is
  method helper(x: Integer): Integer => x
end`, "")
	require.NotNil(t, mod.Entry)
	require.NotEmpty(t, e.Warnings())
	assert.Contains(t, e.Warnings()[0], "no parameterless 'main' or 'run'")
}

func TestEmitEntryCheapestCtorDefaults(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  this(a: Integer, b: String) is end
  method main() is print(Integer(1)) end
end`, "")
	// No parameterless constructor: defaults are synthesised per parameter.
	assert.True(t, containsSeq(ops(mod.Entry), il.OpLdcI8, il.OpLdnull, il.OpNewobj, il.OpCallvirt),
		"ops: %v", ops(mod.Entry))
}

func TestEmitForwardDeclarationResolves(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method f(): Integer
  method main() is
    print(f())
  end
  method f(): Integer => Integer(42)
end`, "")
	tb, _ := mod.Type("M")
	count := 0
	for _, m := range tb.Methods {
		if m.Name == "f" {
			count++
		}
	}
	assert.Equal(t, 1, count, "forward declaration and implementation share one descriptor")

	main := methodOf(t, mod, "M", "main")
	var callee *il.MethodBuilder
	for _, ins := range main.Instrs {
		if ins.Op == il.OpCallvirt && ins.Method.Name == "f" {
			callee = ins.Method
		}
	}
	require.NotNil(t, callee)
}

func TestEmitOverloadResolution(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method f(x: Integer): Integer => x
  method f(x: Real): Real => x
  method main() is
    print(f(Integer(1)))
    print(f(Real(2.0)))
  end
end`, "")
	main := methodOf(t, mod, "M", "main")
	var rets []il.StorageType
	for _, ins := range main.Instrs {
		if ins.Op == il.OpCallvirt {
			rets = append(rets, ins.Method.Return)
		}
	}
	assert.Equal(t, []il.StorageType{il.StInt, il.StReal}, rets)
}

func TestEmitTypesFinalisedOnce(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is print(Integer(1)) end
end`, "")
	for _, tb := range mod.Types {
		assert.True(t, tb.Created(), "type %s must be finalised", tb.Name)
		assert.Error(t, tb.CreateType(), "finalising twice must fail")
	}
}

func TestEmitModuleEncodes(t *testing.T) {
	mod, _ := compileSrc(t, `
class M is
  method main() is
    var i : Integer(0)
    while i.Less(Integer(2)) loop
      print(i)
      i := i.Plus(Integer(1))
    end
  end
end`, "")
	data, err := mod.Encode()
	require.NoError(t, err)
	assert.Equal(t, "OILM", string(data[:4]))
}
