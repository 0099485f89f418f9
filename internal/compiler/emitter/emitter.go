package emitter

import (
	"fmt"

	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/builtins"
	"github.com/pepegx/olang/internal/compiler/il"
	"github.com/pepegx/olang/internal/compiler/semantics"
)

// Emitter lowers the validated AST onto the stack machine. It owns the
// module's mutable descriptor tables for the duration of one compile; no
// other component observes them.
//
// Per-class order: create the descriptor, define fields, define method
// signatures (bodies deferred so forward references and mutual recursion
// resolve), emit constructors, emit method bodies, finalise.
type Emitter struct {
	ix         *semantics.Index
	mod        *il.ModuleBuilder
	startClass string

	errors   []string
	warnings []string

	methods      map[*ast.MethodDecl]*il.MethodBuilder
	ctors        map[*ast.ConstructorDecl]*il.MethodBuilder
	defaultCtors map[string]*il.MethodBuilder // synthesised parameterless ctors
}

// entryTypeName hosts the synthetic static entry point. The '$' keeps it
// out of the source-level namespace.
const entryTypeName = "$Entry"

func NewEmitter(ix *semantics.Index, moduleName, startClass string) *Emitter {
	return &Emitter{
		ix:           ix,
		mod:          il.NewModule(moduleName),
		startClass:   startClass,
		methods:      make(map[*ast.MethodDecl]*il.MethodBuilder),
		ctors:        make(map[*ast.ConstructorDecl]*il.MethodBuilder),
		defaultCtors: make(map[string]*il.MethodBuilder),
	}
}

func (e *Emitter) Errors() []string   { return e.errors }
func (e *Emitter) Warnings() []string { return e.warnings }

func (e *Emitter) addError(format string, args ...any) {
	e.errors = append(e.errors, fmt.Sprintf("Emit Error: %s", fmt.Sprintf(format, args...)))
}

func (e *Emitter) addWarning(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf("Emit Warning: %s", fmt.Sprintf(format, args...)))
}

func (e *Emitter) inferIn(ctx *buildContext, expr ast.Expression) string {
	return e.ix.InferType(expr, ctx)
}

// Emit lowers every class and synthesises the entry descriptor, returning
// the finalised module. Callers must consult Errors afterwards.
func (e *Emitter) Emit() *il.ModuleBuilder {
	for _, name := range e.ix.Order {
		e.ensureType(name, make(map[string]bool))
	}
	// mod.Types holds bases before subclasses, so ancestor methods exist
	// when a subclass method looks for the slot it overrides.
	for _, tb := range e.mod.Types {
		e.declareMembers(e.ix.Classes[tb.Name])
	}
	for _, name := range e.ix.Order {
		e.declareConstructors(e.ix.Classes[name])
	}
	for _, name := range e.ix.Order {
		e.emitConstructorBodies(e.ix.Classes[name])
	}
	for _, name := range e.ix.Order {
		e.emitMethodBodies(e.ix.Classes[name])
	}
	e.synthesizeEntry()

	for _, t := range e.mod.Types {
		if err := t.CreateType(); err != nil {
			e.addError("%v", err)
		}
	}
	return e.mod
}

// ensureType creates the class descriptor, defining the base class first
// so inherited layout and virtual slots are in place.
func (e *Emitter) ensureType(name string, visiting map[string]bool) *il.TypeBuilder {
	if tb, ok := e.mod.Type(name); ok {
		return tb
	}
	if visiting[name] {
		return nil // cycles are rejected by the analyzer
	}
	visiting[name] = true

	ci := e.ix.Classes[name]
	var base *il.TypeBuilder
	if ci.Base != "" {
		if _, isUser := e.ix.Classes[ci.Base]; isUser {
			base = e.ensureType(ci.Base, visiting)
		}
	}
	tb, err := e.mod.DefineType(name, base)
	if err != nil {
		e.addError("%v", err)
		return nil
	}
	return tb
}

// declareMembers defines field descriptors and method signatures. Bodies
// come later.
func (e *Emitter) declareMembers(ci *semantics.ClassInfo) {
	tb, ok := e.mod.Type(ci.Name)
	if !ok {
		return
	}

	for _, fname := range ci.FieldOrder {
		if _, err := tb.DefineField(fname, e.resolveStorage(ci.Fields[fname])); err != nil {
			e.addError("%v", err)
		}
	}

	for _, sig := range ci.Methods {
		if sig.Forward && e.implementationOf(ci, sig) != nil {
			continue // the implementation carries the descriptor
		}
		params := make([]il.StorageType, 0, len(sig.Params))
		for _, p := range sig.Params {
			params = append(params, e.resolveStorage(p))
		}
		ret := il.StVoid
		if sig.Return != "" {
			ret = e.resolveStorage(sig.Return)
		}
		mb := tb.DefineMethod(sig.Name, params, ret)
		e.methods[sig.Decl] = mb
	}
}

// implementationOf finds the non-forward twin of a forward declaration.
func (e *Emitter) implementationOf(ci *semantics.ClassInfo, fwd *semantics.MethodSig) *semantics.MethodSig {
	for _, m := range ci.Methods {
		if m != fwd && m.Name == fwd.Name && !m.Forward && sameParams(m.Params, fwd.Params) {
			return m
		}
	}
	return nil
}

func sameParams(a, b []string) bool {
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

// --- Constructors ---

// declareConstructors defines every constructor descriptor (synthesising a
// parameterless default where none is declared) before any body is
// emitted, so base constructor calls resolve regardless of declaration
// order.
func (e *Emitter) declareConstructors(ci *semantics.ClassInfo) {
	tb, ok := e.mod.Type(ci.Name)
	if !ok {
		return
	}
	if len(ci.Ctors) == 0 {
		e.defaultCtors[ci.Name] = tb.DefineConstructor(nil)
		return
	}
	for _, sig := range ci.Ctors {
		params := make([]il.StorageType, 0, len(sig.Params))
		for _, p := range sig.Params {
			params = append(params, e.resolveStorage(p))
		}
		e.ctors[sig.Decl] = tb.DefineConstructor(params)
	}
}

func (e *Emitter) emitConstructorBodies(ci *semantics.ClassInfo) {
	tb, ok := e.mod.Type(ci.Name)
	if !ok {
		return
	}
	if len(ci.Ctors) == 0 {
		mb := e.defaultCtors[ci.Name]
		ctx := e.newContext(ci, tb, mb, "")
		ctx.defineParameter("this", 0, il.StObject, ci.Name)
		e.emitCtorProtocol(ctx, ci, nil)
		return
	}
	for _, sig := range ci.Ctors {
		mb := e.ctors[sig.Decl]
		ctx := e.newContext(ci, tb, mb, "")
		ctx.defineParameter("this", 0, il.StObject, ci.Name)
		for i, p := range sig.Decl.Parameters {
			ctx.defineParameter(p.Name, i+1, e.resolveStorage(p.TypeName), p.TypeName)
		}
		e.emitCtorProtocol(ctx, ci, sig)
	}
}

// emitCtorProtocol emits the fixed constructor sequence: load receiver,
// call the base constructor, store every declared field initialiser in
// source order, run the user body, return.
func (e *Emitter) emitCtorProtocol(ctx *buildContext, ci *semantics.ClassInfo, sig *semantics.CtorSig) {
	mb := ctx.method
	mb.EmitInt(il.OpLdarg, 0)
	e.emitBaseCtorCall(ctx, ci, sig)

	for _, member := range ci.Decl.Members {
		field, ok := member.(*ast.FieldDecl)
		if !ok {
			continue
		}
		fb, _, found := ctx.findField(ci.Name, field.Name)
		if !found {
			continue // pruned by the optimiser
		}
		mb.EmitInt(il.OpLdarg, 0)
		valReal := e.emitExpr(ctx, field.Init)
		e.coerce(ctx, valReal, fb.Storage)
		mb.EmitField(il.OpStfld, fb)
	}

	if sig != nil && sig.Decl.Body != nil {
		e.emitBlock(ctx, sig.Decl.Body)
		if endsWithReturn(sig.Decl.Body) {
			return
		}
	}
	mb.Emit(il.OpRet)
}

// emitBaseCtorCall consumes the already-loaded receiver: preferred is the
// base constructor whose parameter-type list equals the current one's,
// then the parameterless one, then object's trivial default (a pop).
func (e *Emitter) emitBaseCtorCall(ctx *buildContext, ci *semantics.ClassInfo, sig *semantics.CtorSig) {
	mb := ctx.method
	base, isUser := e.ix.Classes[ci.Base]
	if ci.Base == "" || !isUser {
		mb.Emit(il.OpPop)
		return
	}

	var myParams []string
	if sig != nil {
		myParams = sig.Params
	}
	for _, bc := range base.Ctors {
		if sameParams(bc.Params, myParams) {
			for i := range myParams {
				mb.EmitInt(il.OpLdarg, int64(i+1))
			}
			mb.EmitCall(il.OpCall, e.ctors[bc.Decl])
			return
		}
	}
	for _, bc := range base.Ctors {
		if len(bc.Params) == 0 {
			mb.EmitCall(il.OpCall, e.ctors[bc.Decl])
			return
		}
	}
	if def, ok := e.defaultCtors[base.Name]; ok {
		mb.EmitCall(il.OpCall, def)
		return
	}
	mb.Emit(il.OpPop)
}

// --- Method bodies ---

func (e *Emitter) emitMethodBodies(ci *semantics.ClassInfo) {
	tb, ok := e.mod.Type(ci.Name)
	if !ok {
		return
	}
	for _, sig := range ci.Methods {
		mb, declared := e.methods[sig.Decl]
		if !declared {
			continue
		}
		ctx := e.newContext(ci, tb, mb, sig.Return)
		ctx.defineParameter("this", 0, il.StObject, ci.Name)
		for i, p := range sig.Decl.Parameters {
			ctx.defineParameter(p.Name, i+1, e.resolveStorage(p.TypeName), p.TypeName)
		}

		switch sig.Decl.Kind {
		case ast.BodyArrow:
			valReal := e.emitExpr(ctx, sig.Decl.Arrow)
			if sig.Return != "" {
				e.coerce(ctx, valReal, mb.Return)
			} else if valReal != builtins.Void {
				mb.Emit(il.OpPop)
			}
			mb.Emit(il.OpRet)
		case ast.BodyBlock:
			e.emitBlock(ctx, sig.Decl.Body)
			if !endsWithReturn(sig.Decl.Body) {
				if mb.Return != il.StVoid {
					e.emitDefault(ctx, sig.Return)
				}
				mb.Emit(il.OpRet)
			}
		case ast.BodyForward:
			// Never implemented: a stub keeps the descriptor callable.
			if mb.Return != il.StVoid {
				e.emitDefault(ctx, sig.Return)
			}
			mb.Emit(il.OpRet)
		}
	}
}

func endsWithReturn(block *ast.Block) bool {
	if block == nil || len(block.Body) == 0 {
		return false
	}
	_, ok := block.Body[len(block.Body)-1].(*ast.Return)
	return ok
}

// --- Statements ---

func (e *Emitter) emitBlock(ctx *buildContext, block *ast.Block) {
	for _, stmt := range block.Body {
		e.emitStmt(ctx, stmt)
	}
}

func (e *Emitter) emitStmt(ctx *buildContext, stmt ast.Statement) {
	mb := ctx.method
	switch s := stmt.(type) {
	case *ast.VarDecl:
		real := s.TypeName
		if real == "" {
			real = e.inferIn(ctx, s.Init)
		}
		b := ctx.defineLocal(s.Name, e.resolveStorage(real), real)
		valReal := e.emitExpr(ctx, s.Init)
		e.coerce(ctx, valReal, b.Storage)
		mb.EmitInt(il.OpStloc, int64(b.Slot))

	case *ast.Assign:
		e.emitAssign(ctx, s)

	case *ast.While:
		start := mb.NewLabel()
		end := mb.NewLabel()
		mb.MarkLabel(start)
		e.emitExpr(ctx, s.Condition)
		mb.EmitBranch(il.OpBrfalse, end)
		e.emitBlock(ctx, s.Body)
		mb.EmitBranch(il.OpBr, start)
		mb.MarkLabel(end)

	case *ast.If:
		e.emitExpr(ctx, s.Condition)
		if s.Else == nil {
			end := mb.NewLabel()
			mb.EmitBranch(il.OpBrfalse, end)
			e.emitBlock(ctx, s.Then)
			mb.MarkLabel(end)
			return
		}
		elseL := mb.NewLabel()
		mb.EmitBranch(il.OpBrfalse, elseL)
		e.emitBlock(ctx, s.Then)
		if endsWithReturn(s.Then) {
			mb.MarkLabel(elseL)
			e.emitBlock(ctx, s.Else)
			return
		}
		end := mb.NewLabel()
		mb.EmitBranch(il.OpBr, end)
		mb.MarkLabel(elseL)
		e.emitBlock(ctx, s.Else)
		mb.MarkLabel(end)

	case *ast.Return:
		if s.Value != nil {
			valReal := e.emitExpr(ctx, s.Value)
			if ctx.returnType != "" {
				e.coerce(ctx, valReal, mb.Return)
			} else if valReal != builtins.Void {
				mb.Emit(il.OpPop)
			}
		} else if mb.Return != il.StVoid {
			e.emitDefault(ctx, ctx.returnType)
		}
		mb.Emit(il.OpRet)

	case *ast.ExprStmt:
		real := e.emitExpr(ctx, s.Expr)
		if real != builtins.Void {
			mb.Emit(il.OpPop)
		}
	}
}

func (e *Emitter) emitAssign(ctx *buildContext, s *ast.Assign) {
	mb := ctx.method

	if !s.IsField {
		if b, ok := ctx.locals[s.Target]; ok {
			valReal := e.emitExpr(ctx, s.Value)
			e.coerce(ctx, valReal, b.Storage)
			mb.EmitInt(il.OpStloc, int64(b.Slot))
			return
		}
		if b, ok := ctx.params[s.Target]; ok {
			valReal := e.emitExpr(ctx, s.Value)
			e.coerce(ctx, valReal, b.Storage)
			mb.EmitInt(il.OpStarg, int64(b.Index))
			return
		}
	}

	// Field store: the receiver loads first.
	if ctx.class != nil {
		if fb, _, ok := ctx.findField(ctx.class.Name, s.Target); ok {
			mb.EmitInt(il.OpLdarg, 0)
			valReal := e.emitExpr(ctx, s.Value)
			e.coerce(ctx, valReal, fb.Storage)
			mb.EmitField(il.OpStfld, fb)
			return
		}
	}
	e.addError("cannot resolve assignment target '%s'", s.Target)
}

// --- Expressions ---

// emitExpr lowers one expression and returns its real (pre-erasure) type.
func (e *Emitter) emitExpr(ctx *buildContext, expr ast.Expression) string {
	mb := ctx.method
	switch n := expr.(type) {
	case *ast.IntLit:
		mb.EmitInt(il.OpLdcI8, n.Value)
		return builtins.Integer
	case *ast.RealLit:
		mb.EmitFloat(il.OpLdcR8, n.Value)
		return builtins.Real
	case *ast.BoolLit:
		v := int64(0)
		if n.Value {
			v = 1
		}
		mb.EmitInt(il.OpLdcBool, v)
		return builtins.Boolean
	case *ast.StringLit:
		mb.EmitString(il.OpLdstr, n.Value)
		return builtins.String
	case *ast.This:
		mb.EmitInt(il.OpLdarg, 0)
		if ctx.class != nil {
			return ctx.class.Name
		}
		return builtins.Object
	case *ast.Ident:
		return e.emitIdent(ctx, n)
	case *ast.New:
		return e.emitNew(ctx, n)
	case *ast.MemberAccess:
		return e.emitMemberAccess(ctx, n)
	case *ast.Call:
		return e.emitCall(ctx, n)
	}
	e.addError("unsupported expression shape %T", expr)
	return builtins.Object
}

func (e *Emitter) emitIdent(ctx *buildContext, n *ast.Ident) string {
	mb := ctx.method
	if b, ok := ctx.locals[n.Name]; ok {
		mb.EmitInt(il.OpLdloc, int64(b.Slot))
		return b.Real
	}
	if b, ok := ctx.params[n.Name]; ok {
		mb.EmitInt(il.OpLdarg, int64(b.Index))
		return b.Real
	}
	if ctx.class != nil {
		if fb, real, ok := ctx.findField(ctx.class.Name, n.Name); ok {
			mb.EmitInt(il.OpLdarg, 0)
			mb.EmitField(il.OpLdfld, fb)
			return real
		}
	}
	// A bare type name stands for that type's default value.
	if _, isClass := e.ix.Classes[builtins.Head(n.Name)]; isClass || builtins.IsBuiltinClass(n.Name) {
		e.emitDefault(ctx, n.Name)
		return n.Name
	}
	e.addError("unresolved identifier '%s'", n.Name)
	ctx.method.Emit(il.OpLdnull)
	return builtins.Object
}

// emitNew dispatches construction on the class name: primitive value
// coercions, Array/List allocation, and user-class instantiation.
func (e *Emitter) emitNew(ctx *buildContext, n *ast.New) string {
	mb := ctx.method
	head := builtins.Head(n.ClassName)

	switch head {
	case builtins.Integer, builtins.Real, builtins.Boolean, builtins.String:
		if len(n.Args) == 0 {
			e.emitDefault(ctx, head)
			return head
		}
		argReal := e.emitExpr(ctx, n.Args[0])
		e.convertPrimitive(ctx, argReal, head)
		return head

	case builtins.Array:
		if len(n.Args) != 1 {
			e.addError("Array construction takes exactly one length argument")
			mb.Emit(il.OpLdnull)
			return n.ClassName
		}
		lenReal := e.emitExpr(ctx, n.Args[0])
		e.coerce(ctx, lenReal, il.StInt)
		mb.Emit(il.OpNewarr)
		return n.ClassName

	case builtins.List:
		if len(n.Args) == 0 {
			mb.Emit(il.OpNewlist)
			return n.ClassName
		}
		argReal := e.inferIn(ctx, n.Args[0])
		if builtins.Head(argReal) == builtins.List {
			// Re-wrapping an existing list degenerates to the original.
			return e.emitExpr(ctx, n.Args[0])
		}
		mb.Emit(il.OpNewlist)
		mb.Emit(il.OpDup)
		valReal := e.emitExpr(ctx, n.Args[0])
		elem := builtins.Elem(n.ClassName)
		if elem == "" {
			elem = valReal
		}
		if builtins.IsPrimitive(elem) {
			mb.EmitString(il.OpBox, elem)
		}
		mb.Emit(il.OpLappend)
		return n.ClassName
	}

	return e.emitNewUser(ctx, n.ClassName, n.Args)
}

// convertPrimitive adjusts an already-pushed value to the target primitive
// wrapper type.
func (e *Emitter) convertPrimitive(ctx *buildContext, from, target string) {
	mb := ctx.method
	if from == target {
		return
	}
	switch target {
	case builtins.Integer:
		switch from {
		case builtins.Real, builtins.Boolean:
			mb.Emit(il.OpConvI8)
		case builtins.Object:
			mb.EmitString(il.OpUnbox, builtins.Integer)
		}
	case builtins.Real:
		switch from {
		case builtins.Integer:
			mb.Emit(il.OpConvR8)
		case builtins.Object:
			mb.EmitString(il.OpUnbox, builtins.Real)
		}
	case builtins.Boolean:
		if from == builtins.Object {
			mb.EmitString(il.OpUnbox, builtins.Boolean)
		}
	case builtins.String:
		// String(String) and String(Object) pass through.
	}
}

func (e *Emitter) emitNewUser(ctx *buildContext, class string, args []ast.Expression) string {
	mb := ctx.method
	ci, ok := e.ix.Classes[class]
	if !ok {
		e.addError("cannot construct unknown class '%s'", class)
		mb.Emit(il.OpLdnull)
		return builtins.Object
	}

	argTypes := make([]string, 0, len(args))
	for _, a := range args {
		argTypes = append(argTypes, e.inferIn(ctx, a))
	}

	var target *il.MethodBuilder
	var paramTypes []string
	if sig := e.ix.FindCtor(class, argTypes); sig != nil {
		target = e.ctors[sig.Decl]
		paramTypes = sig.Params
	} else if len(args) == 0 {
		target = e.defaultCtors[class]
	}
	if target == nil {
		e.addError("no matching constructor %s(%s)", class, typeList(argTypes))
		mb.Emit(il.OpLdnull)
		return ci.Name
	}

	for i, a := range args {
		valReal := e.emitExpr(ctx, a)
		if i < len(paramTypes) {
			e.coerce(ctx, valReal, e.resolveStorage(paramTypes[i]))
		}
	}
	mb.EmitCall(il.OpNewobj, target)
	return class
}

// emitMemberAccess lowers target.member without a call: a builtin
// property, a zero-argument method on a user class, or a field load, tried
// in this order.
func (e *Emitter) emitMemberAccess(ctx *buildContext, access *ast.MemberAccess) string {
	recv := e.inferIn(ctx, access.Target)

	if builtins.HasMethodTable(recv) {
		if arity, known := builtins.MethodArity(recv, access.Member); known && arity == 0 {
			e.emitExpr(ctx, access.Target)
			return e.emitBuiltinZero(ctx, access.Target, recv, access.Member)
		}
	}

	head := builtins.Head(recv)
	if _, isUser := e.ix.Classes[head]; isUser {
		if sig := e.ix.FindMethod(head, access.Member, nil); sig != nil {
			e.emitExpr(ctx, access.Target)
			mb := e.methods[sig.Decl]
			if mb == nil {
				mb = e.methodDescriptor(head, sig)
			}
			if mb == nil {
				e.addError("cannot resolve method '%s.%s'", head, access.Member)
				return builtins.Object
			}
			ctx.method.EmitCall(il.OpCallvirt, mb)
			if sig.Return == "" {
				return builtins.Void
			}
			return sig.Return
		}
		if fb, real, ok := e.fieldOn(head, access.Member); ok {
			e.emitExpr(ctx, access.Target)
			ctx.method.EmitField(il.OpLdfld, fb)
			return real
		}
	}

	e.addError("cannot resolve member '%s' on '%s'", access.Member, recv)
	ctx.method.Emit(il.OpLdnull)
	return builtins.Object
}

func (e *Emitter) fieldOn(class, name string) (*il.FieldBuilder, string, bool) {
	real, owner, ok := e.ix.FindField(class, name)
	if !ok {
		return nil, "", false
	}
	if ownerType, found := e.mod.Type(owner); found {
		if fb, has := ownerType.Field(name); has {
			return fb, real, true
		}
	}
	return nil, "", false
}

// methodDescriptor resolves the IL builder for a signature found through a
// forward declaration whose implementation lives elsewhere in the class.
func (e *Emitter) methodDescriptor(class string, sig *semantics.MethodSig) *il.MethodBuilder {
	ci, ok := e.ix.Classes[class]
	if !ok {
		return nil
	}
	if impl := e.implementationOf(ci, sig); impl != nil {
		return e.methods[impl.Decl]
	}
	return e.methods[sig.Decl]
}

// emitCall lowers callee(args). The interesting case is a member call:
// implicit-this construction, primitive intrinsics, or virtual dispatch.
func (e *Emitter) emitCall(ctx *buildContext, call *ast.Call) string {
	access, ok := call.Callee.(*ast.MemberAccess)
	if !ok {
		e.addError("call target is not a method")
		ctx.method.Emit(il.OpLdnull)
		return builtins.Object
	}

	if access.Member == builtins.Print {
		return e.emitPrint(ctx, access, call.Args)
	}

	// Implicit this.Name(args) where Name is a class in scope constructs
	// that class.
	if _, isThis := access.Target.(*ast.This); isThis {
		if _, isClass := e.ix.Classes[access.Member]; isClass {
			return e.emitNewUser(ctx, access.Member, call.Args)
		}
		if builtins.IsBuiltinClass(access.Member) {
			return e.emitNew(ctx, &ast.New{Token: access.Token, ClassName: access.Member, Args: call.Args})
		}
	}

	recv := e.inferIn(ctx, access.Target)
	if builtins.HasMethodTable(recv) {
		if _, known := builtins.MethodArity(recv, access.Member); known {
			return e.emitBuiltinCall(ctx, access, recv, call.Args)
		}
	}

	head := builtins.Head(recv)
	if _, isUser := e.ix.Classes[head]; !isUser {
		e.addError("cannot resolve method '%s' on '%s'", access.Member, recv)
		ctx.method.Emit(il.OpLdnull)
		return builtins.Object
	}

	argTypes := make([]string, 0, len(call.Args))
	for _, a := range call.Args {
		argTypes = append(argTypes, e.inferIn(ctx, a))
	}
	sig := e.ix.FindMethod(head, access.Member, argTypes)
	if sig == nil {
		e.addError("no method '%s(%s)' on class '%s'", access.Member, typeList(argTypes), head)
		ctx.method.Emit(il.OpLdnull)
		return builtins.Object
	}
	mb := e.methodDescriptor(head, sig)
	if mb == nil {
		e.addError("cannot resolve method '%s.%s'", head, access.Member)
		ctx.method.Emit(il.OpLdnull)
		return builtins.Object
	}

	e.emitExpr(ctx, access.Target)
	for i, a := range call.Args {
		valReal := e.emitExpr(ctx, a)
		if i < len(sig.Params) {
			e.coerce(ctx, valReal, e.resolveStorage(sig.Params[i]))
		}
	}
	ctx.method.EmitCall(il.OpCallvirt, mb)
	if sig.Return == "" {
		return builtins.Void
	}
	return sig.Return
}

// emitBuiltinCall lowers a primitive/container method call to intrinsic
// instructions. The receiver is already known to carry a builtin table.
func (e *Emitter) emitBuiltinCall(ctx *buildContext, access *ast.MemberAccess, recv string, args []ast.Expression) string {
	mb := ctx.method
	m := access.Member
	head := builtins.Head(recv)

	if len(args) == 0 {
		e.emitExpr(ctx, access.Target)
		return e.emitBuiltinZero(ctx, access.Target, recv, m)
	}

	switch head {
	case builtins.Integer, builtins.Real:
		argReal := e.inferIn(ctx, args[0])
		promote := builtins.IsArithmetic(m) || builtins.IsComparison(m)
		wide := promote && (head == builtins.Real || argReal == builtins.Real) && head != argReal

		e.emitExpr(ctx, access.Target)
		if wide && head == builtins.Integer {
			mb.Emit(il.OpConvR8)
		}
		valReal := e.emitExpr(ctx, args[0])
		if wide && valReal == builtins.Integer {
			mb.Emit(il.OpConvR8)
		}

		switch m {
		case "Plus":
			mb.Emit(il.OpAdd)
		case "Minus":
			mb.Emit(il.OpSub)
		case "Mult":
			mb.Emit(il.OpMul)
		case "Div":
			mb.Emit(il.OpDiv)
		case "Rem":
			mb.Emit(il.OpRem)
		case "Less":
			mb.Emit(il.OpClt)
		case "Greater":
			mb.Emit(il.OpCgt)
		case "Equal":
			mb.Emit(il.OpCeq)
		case "LessEqual":
			// a <= b is (a cgt b) compared to zero.
			mb.Emit(il.OpCgt)
			mb.EmitInt(il.OpLdcBool, 0)
			mb.Emit(il.OpCeq)
		case "GreaterEqual":
			mb.Emit(il.OpClt)
			mb.EmitInt(il.OpLdcBool, 0)
			mb.Emit(il.OpCeq)
		default:
			e.addError("unexpected %s method '%s'", head, m)
		}
		if builtins.IsComparison(m) {
			return builtins.Boolean
		}
		return builtins.ArithmeticResult(head, argReal)

	case builtins.Boolean:
		e.emitExpr(ctx, access.Target)
		e.emitExpr(ctx, args[0])
		switch m {
		case "And":
			mb.Emit(il.OpAnd)
		case "Or":
			mb.Emit(il.OpOr)
		case "Xor":
			mb.Emit(il.OpXor)
		default:
			e.addError("unexpected Boolean method '%s'", m)
		}
		return builtins.Boolean

	case builtins.Array:
		elem := e.elementType(ctx, access.Target, recv)
		switch m {
		case "get":
			e.emitExpr(ctx, access.Target)
			e.emitIndex(ctx, args[0])
			mb.Emit(il.OpLdelem)
			return e.unboxElem(ctx, elem)
		case "set":
			e.emitExpr(ctx, access.Target)
			e.emitIndex(ctx, args[0])
			valReal := e.emitExpr(ctx, args[1])
			e.boxElem(ctx, elem, valReal)
			mb.Emit(il.OpStelem)
			return builtins.Void
		}

	case builtins.List:
		elem := e.elementType(ctx, access.Target, recv)
		switch m {
		case "get":
			e.emitExpr(ctx, access.Target)
			e.emitIndex(ctx, args[0])
			mb.Emit(il.OpLget)
			return e.unboxElem(ctx, elem)
		case "append":
			e.emitExpr(ctx, access.Target)
			valReal := e.emitExpr(ctx, args[0])
			e.boxElem(ctx, elem, valReal)
			mb.Emit(il.OpLappend)
			return builtins.Void
		}
	}

	e.addError("unexpected builtin call '%s.%s'", recv, m)
	return builtins.Object
}

// emitBuiltinZero lowers a zero-argument builtin member with the receiver
// already on the stack.
func (e *Emitter) emitBuiltinZero(ctx *buildContext, target ast.Expression, recv, m string) string {
	mb := ctx.method
	head := builtins.Head(recv)

	switch m {
	case "Length":
		if head == builtins.Array {
			mb.Emit(il.OpLdlen)
		} else {
			mb.Emit(il.OpLlen)
		}
		return builtins.Integer
	case "head":
		mb.Emit(il.OpLhead)
		return e.unboxElem(ctx, e.elementType(ctx, target, recv))
	case "tail":
		// list.range(1, length-1): a fresh sub-list, no shared prefix.
		tmp := mb.DeclareLocal(il.StList)
		mb.EmitInt(il.OpStloc, int64(tmp))
		mb.EmitInt(il.OpLdloc, int64(tmp))
		mb.EmitInt(il.OpLdcI8, 1)
		mb.EmitInt(il.OpLdloc, int64(tmp))
		mb.Emit(il.OpLlen)
		mb.EmitInt(il.OpLdcI8, 1)
		mb.Emit(il.OpSub)
		mb.Emit(il.OpLrange)
		return recv
	case "UnaryMinus":
		mb.Emit(il.OpNeg)
		return head
	case "Not":
		mb.Emit(il.OpNot)
		return builtins.Boolean
	case "toReal":
		mb.Emit(il.OpConvR8)
		return builtins.Real
	case "toInteger":
		mb.Emit(il.OpConvI8)
		return builtins.Integer
	case "toBoolean":
		mb.EmitInt(il.OpLdcI8, 0)
		mb.Emit(il.OpCeq)
		mb.Emit(il.OpNot)
		return builtins.Boolean
	}

	e.addError("unexpected builtin member '%s.%s'", recv, m)
	return builtins.Object
}

// emitIndex pushes an Array/List index, normalising it to integer storage.
func (e *Emitter) emitIndex(ctx *buildContext, idx ast.Expression) {
	real := e.emitExpr(ctx, idx)
	e.coerce(ctx, real, il.StInt)
}

// elementType recovers the recorded element real type of a container: from
// the canonical receiver type when present, else from the binding the
// receiver names.
func (e *Emitter) elementType(ctx *buildContext, target ast.Expression, recv string) string {
	if elem := builtins.Elem(recv); elem != "" {
		return elem
	}
	if id, ok := target.(*ast.Ident); ok {
		if elem, found := ctx.elems[id.Name]; found {
			return elem
		}
	}
	return builtins.Object
}

// unboxElem unboxes a loaded element when the recorded element type is
// primitive, and reports the element's real type.
func (e *Emitter) unboxElem(ctx *buildContext, elem string) string {
	if builtins.IsPrimitive(elem) {
		ctx.method.EmitString(il.OpUnbox, elem)
		return elem
	}
	if elem == "" {
		return builtins.Object
	}
	return elem
}

// boxElem boxes a pushed value when the container's element type is
// primitive.
func (e *Emitter) boxElem(ctx *buildContext, elem, valReal string) {
	if builtins.IsPrimitive(elem) && builtins.IsPrimitive(valReal) {
		ctx.method.EmitString(il.OpBox, elem)
	}
}

// emitPrint lowers the print intrinsic: the single argument (or, for a
// member use with no arguments, the receiver) goes through the output sink
// matching its inferred type. Nothing stays on the stack.
func (e *Emitter) emitPrint(ctx *buildContext, access *ast.MemberAccess, args []ast.Expression) string {
	mb := ctx.method
	var real string
	switch {
	case len(args) >= 1:
		real = e.emitExpr(ctx, args[0])
	default:
		if _, isThis := access.Target.(*ast.This); !isThis {
			real = e.emitExpr(ctx, access.Target)
		} else {
			mb.Emit(il.OpLdnull)
			real = builtins.Object
		}
	}
	switch builtins.Head(real) {
	case builtins.Integer:
		mb.Emit(il.OpPrintI8)
	case builtins.Real:
		mb.Emit(il.OpPrintR8)
	case builtins.Boolean:
		mb.Emit(il.OpPrintBool)
	case builtins.String:
		mb.Emit(il.OpPrintStr)
	default:
		mb.Emit(il.OpPrintObj)
	}
	return builtins.Void
}

// --- Defaults and coercion ---

// emitDefault pushes the default value for a type name: zero for Integer,
// 0.0 for Real, false for Boolean, null for everything else.
func (e *Emitter) emitDefault(ctx *buildContext, typeName string) {
	mb := ctx.method
	switch builtins.Head(typeName) {
	case builtins.Integer:
		mb.EmitInt(il.OpLdcI8, 0)
	case builtins.Real:
		mb.EmitFloat(il.OpLdcR8, 0)
	case builtins.Boolean:
		mb.EmitInt(il.OpLdcBool, 0)
	default:
		mb.Emit(il.OpLdnull)
	}
}

// coerce adjusts a pushed value of the given real type to a storage shape:
// boxing primitives into object slots, unboxing opaque values into
// primitive slots, and converting between the numeric types.
func (e *Emitter) coerce(ctx *buildContext, fromReal string, to il.StorageType) {
	mb := ctx.method
	from := e.resolveStorage(fromReal)
	if from == to {
		return
	}
	switch to {
	case il.StObject:
		if builtins.IsPrimitive(fromReal) {
			mb.EmitString(il.OpBox, builtins.Head(fromReal))
		}
	case il.StInt:
		switch from {
		case il.StReal:
			mb.Emit(il.OpConvI8)
		case il.StObject:
			mb.EmitString(il.OpUnbox, builtins.Integer)
		}
	case il.StReal:
		switch from {
		case il.StInt:
			mb.Emit(il.OpConvR8)
		case il.StObject:
			mb.EmitString(il.OpUnbox, builtins.Real)
		}
	case il.StBool:
		if from == il.StObject {
			mb.EmitString(il.OpUnbox, builtins.Boolean)
		}
	}
}

// --- Entry synthesis ---

// synthesizeEntry hosts a zero-argument static Main on a synthetic class:
// construct the start class, invoke main (or run), discard any result.
func (e *Emitter) synthesizeEntry() {
	tb, err := e.mod.DefineType(entryTypeName, nil)
	if err != nil {
		e.addError("%v", err)
		return
	}
	mb := tb.DefineStaticMethod("Main", nil, il.StVoid)
	ctx := e.newContext(nil, tb, mb, "")

	start := e.startClass
	if start == "" && len(e.ix.Order) > 0 {
		start = e.ix.Order[0]
	}
	ci, ok := e.ix.Classes[start]
	if !ok {
		if e.startClass != "" {
			e.addError("start class '%s' is not declared", e.startClass)
		} else {
			e.addWarning("program declares no classes; entry point does nothing")
		}
		mb.Emit(il.OpRet)
		_ = e.mod.SetEntryPoint(mb)
		return
	}

	e.constructStart(ctx, ci)

	sig := e.ix.FindMethod(start, "main", nil)
	if sig == nil {
		sig = e.ix.FindMethod(start, "run", nil)
	}
	if sig == nil {
		e.addWarning("class '%s' has no parameterless 'main' or 'run' method; entry point exits immediately", start)
		mb.Emit(il.OpPop)
		mb.Emit(il.OpRet)
		_ = e.mod.SetEntryPoint(mb)
		return
	}
	target := e.methodDescriptor(start, sig)
	if target == nil {
		e.addError("cannot resolve entry method '%s.main'", start)
		mb.Emit(il.OpRet)
		return
	}
	mb.EmitCall(il.OpCallvirt, target)
	if sig.Return != "" {
		mb.Emit(il.OpPop)
	}
	mb.Emit(il.OpRet)
	_ = e.mod.SetEntryPoint(mb)
}

// constructStart instantiates the start class through its zero-argument
// constructor, falling back to the cheapest constructor with synthesised
// default argument values.
func (e *Emitter) constructStart(ctx *buildContext, ci *semantics.ClassInfo) {
	mb := ctx.method

	if def, ok := e.defaultCtors[ci.Name]; ok {
		mb.EmitCall(il.OpNewobj, def)
		return
	}
	var cheapest *semantics.CtorSig
	for _, sig := range ci.Ctors {
		if cheapest == nil || len(sig.Params) < len(cheapest.Params) {
			cheapest = sig
		}
	}
	if cheapest == nil {
		mb.Emit(il.OpLdnull)
		return
	}
	for _, p := range cheapest.Params {
		e.emitDefault(ctx, p)
	}
	mb.EmitCall(il.OpNewobj, e.ctors[cheapest.Decl])
}

func typeList(types []string) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
