package builtins

import "strings"

// Built-in class names. Array and List are the only recognised generic
// heads; their element types travel in the canonical textual form
// ("Array[Integer]", "List[List[Real]]").
const (
	Integer = "Integer"
	Real    = "Real"
	Boolean = "Boolean"
	String  = "String"
	Array   = "Array"
	List    = "List"
	Object  = "Object"
	Void    = "Void"
)

// Print is the single free-standing builtin.
const Print = "print"

// IsBuiltinClass reports whether name (or its generic head) is one of the
// built-in classes.
func IsBuiltinClass(name string) bool {
	switch Head(name) {
	case Integer, Real, Boolean, String, Array, List, Object:
		return true
	}
	return false
}

// IsPrimitive reports whether name is one of the unboxed value types.
func IsPrimitive(name string) bool {
	return name == Integer || name == Real || name == Boolean
}

// IsGenericHead reports whether name is a recognised generic head.
func IsGenericHead(name string) bool {
	return name == Array || name == List
}

// Head returns the part of a type name before any '[' suffix.
func Head(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

// Elem returns the first type argument of a generic instantiation, or ""
// when name is not generic. Nested generics are handled by bracket depth.
func Elem(name string) string {
	args := TypeArgs(name)
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// TypeArgs splits the bracketed arguments of a canonical type name.
// "Array[Integer]" yields ["Integer"], "Map[A,List[B]]" yields
// ["A", "List[B]"].
func TypeArgs(name string) []string {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return nil
	}
	inner := name[open+1 : len(name)-1]
	if inner == "" {
		return nil
	}
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, inner[start:])
	return args
}

// Canonical rebuilds the textual canonical form: commas, no spaces.
func Canonical(head string, args []string) string {
	if len(args) == 0 {
		return head
	}
	return head + "[" + strings.Join(args, ",") + "]"
}

// --- Built-in method shape tables ---

// Method name → arity, per built-in receiver head. These are the fixed
// tables the analyzer checks call shapes against and the emitter keys its
// intrinsic dispatch on.
var integerMethods = map[string]int{
	"Plus": 1, "Minus": 1, "Mult": 1, "Div": 1, "Rem": 1,
	"Less": 1, "Greater": 1, "LessEqual": 1, "GreaterEqual": 1, "Equal": 1,
	"UnaryMinus": 0, "toReal": 0, "toBoolean": 0,
}

var realMethods = map[string]int{
	"Plus": 1, "Minus": 1, "Mult": 1, "Div": 1,
	"Less": 1, "Greater": 1, "LessEqual": 1, "GreaterEqual": 1, "Equal": 1,
	"UnaryMinus": 0, "toInteger": 0,
}

var booleanMethods = map[string]int{
	"And": 1, "Or": 1, "Xor": 1,
	"Not": 0, "toInteger": 0,
}

var arrayMethods = map[string]int{
	"get": 1, "set": 2, "Length": 0,
}

var listMethods = map[string]int{
	"append": 1, "head": 0, "tail": 0, "Length": 0, "get": 1,
}

func methodTable(recv string) map[string]int {
	switch Head(recv) {
	case Integer:
		return integerMethods
	case Real:
		return realMethods
	case Boolean:
		return booleanMethods
	case Array:
		return arrayMethods
	case List:
		return listMethods
	}
	return nil
}

// MethodArity returns the fixed arity for a built-in method on the given
// receiver type, and whether the method exists at all.
func MethodArity(recv, method string) (int, bool) {
	table := methodTable(recv)
	if table == nil {
		return 0, false
	}
	n, ok := table[method]
	return n, ok
}

// HasMethodTable reports whether the receiver type has a fixed builtin
// method table (and therefore gets shape-checked).
func HasMethodTable(recv string) bool {
	return methodTable(recv) != nil
}

// IsComparison reports whether method is one of the primitive comparison
// methods, which always yield Boolean.
func IsComparison(method string) bool {
	switch method {
	case "Less", "Greater", "LessEqual", "GreaterEqual", "Equal":
		return true
	}
	return false
}

// IsArithmetic reports whether method is a primitive binary arithmetic
// method.
func IsArithmetic(method string) bool {
	switch method {
	case "Plus", "Minus", "Mult", "Div", "Rem":
		return true
	}
	return false
}

// ArithmeticResult applies numeric promotion: when receiver and argument
// types differ between Integer and Real, both sides are widened to Real.
func ArithmeticResult(recv, arg string) string {
	if recv == Real || arg == Real {
		return Real
	}
	return Integer
}

// MethodReturn resolves the return type of a built-in method call, given
// the receiver's canonical type and the inferred argument types. It returns
// ok=false for methods the tables do not know.
func MethodReturn(recv, method string, argTypes []string) (string, bool) {
	head := Head(recv)
	if _, known := MethodArity(recv, method); !known {
		return "", false
	}
	if IsComparison(method) {
		return Boolean, true
	}
	switch head {
	case Integer, Real:
		switch method {
		case "UnaryMinus":
			return head, true
		case "toReal":
			return Real, true
		case "toInteger":
			return Integer, true
		case "toBoolean":
			return Boolean, true
		}
		if IsArithmetic(method) {
			arg := Object
			if len(argTypes) == 1 {
				arg = argTypes[0]
			}
			return ArithmeticResult(head, arg), true
		}
	case Boolean:
		switch method {
		case "And", "Or", "Xor", "Not":
			return Boolean, true
		case "toInteger":
			return Integer, true
		}
	case Array:
		switch method {
		case "get":
			return elemOrObject(recv), true
		case "set":
			return Void, true
		case "Length":
			return Integer, true
		}
	case List:
		switch method {
		case "get", "head":
			return elemOrObject(recv), true
		case "tail":
			return recv, true
		case "append":
			return Void, true
		case "Length":
			return Integer, true
		}
	}
	return "", false
}

func elemOrObject(recv string) string {
	if e := Elem(recv); e != "" {
		return e
	}
	return Object
}
