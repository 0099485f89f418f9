package il

// OpCode is one stack-machine instruction opcode.
type OpCode int

const (
	// Loads and stores
	OpLdarg OpCode = iota // push argument (0 = receiver)
	OpStarg               // pop into argument slot
	OpLdloc               // push local slot
	OpStloc               // pop into local slot
	OpLdfld               // pop receiver, push field
	OpStfld               // pop value and receiver, store field
	OpLdcI8               // push integer constant
	OpLdcR8               // push real constant
	OpLdcBool             // push boolean constant
	OpLdstr               // push string constant
	OpLdnull              // push null reference
	OpDup                 // duplicate top of stack
	OpPop                 // discard top of stack

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg

	// Comparison (push boolean)
	OpCeq
	OpCgt
	OpClt

	// Logic
	OpAnd
	OpOr
	OpXor
	OpNot

	// Conversion
	OpConvI8
	OpConvR8

	// Boxing of primitive values into opaque references
	OpBox
	OpUnbox

	// Objects
	OpNewobj   // invoke constructor operand, push instance
	OpCall     // direct call
	OpCallvirt // virtual dispatch through the method's slot
	OpRet

	// Arrays and lists of opaque references
	OpNewarr  // pop length, push array
	OpLdelem  // pop index and array, push element
	OpStelem  // pop value, index, array; store
	OpLdlen   // pop array, push length
	OpNewlist // push empty list
	OpLappend // pop value and list, append
	OpLget    // pop index and list, push element
	OpLhead   // pop list, push first element
	OpLlen    // pop list, push count
	OpLrange  // pop end, start, list; push sub-list

	// Control flow
	OpBr      // unconditional branch to label operand
	OpBrfalse // pop boolean, branch when false

	// Output sinks for the print intrinsic
	OpPrintI8
	OpPrintR8
	OpPrintBool
	OpPrintStr
	OpPrintObj
)

var opNames = map[OpCode]string{
	OpLdarg: "ldarg", OpStarg: "starg", OpLdloc: "ldloc", OpStloc: "stloc",
	OpLdfld: "ldfld", OpStfld: "stfld",
	OpLdcI8: "ldc.i8", OpLdcR8: "ldc.r8", OpLdcBool: "ldc.bool",
	OpLdstr: "ldstr", OpLdnull: "ldnull", OpDup: "dup", OpPop: "pop",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem", OpNeg: "neg",
	OpCeq: "ceq", OpCgt: "cgt", OpClt: "clt",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpNot: "not",
	OpConvI8: "conv.i8", OpConvR8: "conv.r8",
	OpBox: "box", OpUnbox: "unbox",
	OpNewobj: "newobj", OpCall: "call", OpCallvirt: "callvirt", OpRet: "ret",
	OpNewarr: "newarr", OpLdelem: "ldelem", OpStelem: "stelem", OpLdlen: "ldlen",
	OpNewlist: "newlist", OpLappend: "lappend", OpLget: "lget",
	OpLhead: "lhead", OpLlen: "llen", OpLrange: "lrange",
	OpBr: "br", OpBrfalse: "brfalse",
	OpPrintI8: "print.i8", OpPrintR8: "print.r8", OpPrintBool: "print.bool",
	OpPrintStr: "print.str", OpPrintObj: "print.obj",
}

func (op OpCode) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "op?"
}

// StorageType is the storage-level type of slots, fields, parameters, and
// return values. User classes and generic containers erase to opaque
// references; the emitter tracks real types on its side.
type StorageType string

const (
	StInt    StorageType = "int64"
	StReal   StorageType = "float64"
	StBool   StorageType = "bool"
	StString StorageType = "string"
	StObject StorageType = "object"
	StArray  StorageType = "object[]"
	StList   StorageType = "list"
	StVoid   StorageType = "void"
)

// Label marks a branch target inside one method body.
type Label int

// Instr is a single emitted instruction with at most one operand.
type Instr struct {
	Op     OpCode
	Int    int64
	Float  float64
	Str    string
	Label  Label
	Method *MethodBuilder
	Field  *FieldBuilder
}
