package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadAndTypeArgs(t *testing.T) {
	testData := []struct {
		name string
		head string
		args []string
	}{
		{"Integer", "Integer", nil},
		{"Array[Integer]", "Array", []string{"Integer"}},
		{"List[List[Real]]", "List", []string{"List[Real]"}},
		{"Map[A,List[B]]", "Map", []string{"A", "List[B]"}},
	}
	for _, data := range testData {
		assert.Equal(t, data.head, Head(data.name))
		assert.Equal(t, data.args, TypeArgs(data.name))
	}
}

func TestElem(t *testing.T) {
	assert.Equal(t, "Integer", Elem("Array[Integer]"))
	assert.Equal(t, "List[Real]", Elem("List[List[Real]]"))
	assert.Equal(t, "", Elem("Integer"))
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "Array[Integer]", Canonical("Array", []string{"Integer"}))
	assert.Equal(t, "Map[A,B]", Canonical("Map", []string{"A", "B"}))
	assert.Equal(t, "Foo", Canonical("Foo", nil))
}

// The fixed builtin method tables, exactly as the analyzer enforces them.
func TestMethodArityTables(t *testing.T) {
	testData := []struct {
		recv   string
		method string
		arity  int
	}{
		{"Integer", "Plus", 1}, {"Integer", "Rem", 1}, {"Integer", "Equal", 1},
		{"Integer", "UnaryMinus", 0}, {"Integer", "toReal", 0}, {"Integer", "toBoolean", 0},
		{"Real", "Div", 1}, {"Real", "LessEqual", 1}, {"Real", "toInteger", 0},
		{"Boolean", "And", 1}, {"Boolean", "Xor", 1}, {"Boolean", "Not", 0},
		{"Array[Integer]", "get", 1}, {"Array[Integer]", "set", 2}, {"Array[Integer]", "Length", 0},
		{"List[Real]", "append", 1}, {"List[Real]", "head", 0}, {"List[Real]", "tail", 0},
		{"List[Real]", "Length", 0}, {"List[Real]", "get", 1},
	}
	for _, data := range testData {
		arity, ok := MethodArity(data.recv, data.method)
		assert.True(t, ok, "%s.%s", data.recv, data.method)
		assert.Equal(t, data.arity, arity, "%s.%s", data.recv, data.method)
	}

	_, ok := MethodArity("Real", "Rem")
	assert.False(t, ok, "Real has no Rem")
	_, ok = MethodArity("Integer", "toInteger")
	assert.False(t, ok)
	assert.False(t, HasMethodTable("Foo"))
	assert.False(t, HasMethodTable("String"))
}

func TestMethodReturnRules(t *testing.T) {
	ret, ok := MethodReturn("Integer", "Less", []string{"Integer"})
	assert.True(t, ok)
	assert.Equal(t, "Boolean", ret)

	ret, _ = MethodReturn("Integer", "Plus", []string{"Real"})
	assert.Equal(t, "Real", ret, "mixed arithmetic promotes to Real")

	ret, _ = MethodReturn("Integer", "Plus", []string{"Integer"})
	assert.Equal(t, "Integer", ret)

	ret, _ = MethodReturn("Real", "toInteger", nil)
	assert.Equal(t, "Integer", ret)

	ret, _ = MethodReturn("Array[Integer]", "get", []string{"Integer"})
	assert.Equal(t, "Integer", ret)

	ret, _ = MethodReturn("List[Real]", "tail", nil)
	assert.Equal(t, "List[Real]", ret)

	ret, _ = MethodReturn("List[Real]", "Length", nil)
	assert.Equal(t, "Integer", ret)

	_, ok = MethodReturn("Integer", "Frobnicate", nil)
	assert.False(t, ok)
}

func TestClassPredicates(t *testing.T) {
	assert.True(t, IsBuiltinClass("Integer"))
	assert.True(t, IsBuiltinClass("Array[Foo]"))
	assert.False(t, IsBuiltinClass("Foo"))

	assert.True(t, IsPrimitive("Boolean"))
	assert.False(t, IsPrimitive("String"))
	assert.False(t, IsPrimitive("Object"))

	assert.True(t, IsGenericHead("Array"))
	assert.True(t, IsGenericHead("List"))
	assert.False(t, IsGenericHead("Integer"))
}
