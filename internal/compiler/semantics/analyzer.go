package semantics

import (
	"fmt"

	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/builtins"
	"github.com/pepegx/olang/internal/compiler/scope"
	"github.com/pepegx/olang/internal/compiler/symbols"
	"github.com/pepegx/olang/internal/compiler/token"
)

// Analyzer runs the non-mutating check pass: name resolution across classes
// and scopes, inheritance validation, member collection, and expression
// validation backed by type inference. The mutating optimise pass lives in
// optimizer.go.
type Analyzer struct {
	ix       *Index
	errors   []string
	warnings []string

	global       *scope.Scope
	scope        *scope.Scope
	currentClass *ClassInfo
	currentMeth  *ast.MethodDecl // nil inside constructors and field inits
	inBody       bool
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Errors() []string   { return a.errors }
func (a *Analyzer) Warnings() []string { return a.warnings }

func (a *Analyzer) addError(tok token.Token, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.errors = append(a.errors, fmt.Sprintf("%d:%d: Semantic Error: %s", tok.Line, tok.Column, msg))
}

func (a *Analyzer) addWarning(tok token.Token, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.warnings = append(a.warnings, fmt.Sprintf("%d:%d: Semantic Warning: %s", tok.Line, tok.Column, msg))
}

// typeEnv adapts the live scope chain to the inference interface.
type typeEnv struct{ a *Analyzer }

func (e typeEnv) TypeOfName(name string) (string, bool) {
	if name == "this" {
		if e.a.currentClass != nil {
			return e.a.currentClass.Name, true
		}
		return "", false
	}
	if info, ok := e.a.scope.Resolve(name); ok {
		if info.Kind == symbols.KindVariable || info.Kind == symbols.KindParameter {
			return info.Type, info.Type != ""
		}
	}
	return "", false
}

func (a *Analyzer) infer(e ast.Expression) string {
	return a.ix.InferType(e, typeEnv{a})
}

// typeKnown reports whether an inferred type is concrete enough to check.
func typeKnown(t string) bool {
	return t != "" && t != builtins.Object && t != builtins.Void
}

// Analyze runs the check pass over the program and returns the class index
// the emitter dispatches on. Callers must consult Errors afterwards.
func (a *Analyzer) Analyze(prog *ast.Program) *Index {
	a.ix = BuildIndex(prog)
	a.global = scope.NewScope(nil, "global")
	a.scope = a.global

	for _, name := range []string{
		builtins.Integer, builtins.Real, builtins.Boolean, builtins.String,
		builtins.Array, builtins.List, builtins.Object,
	} {
		_ = a.global.Define(name, symbols.KindClass, name)
	}
	_ = a.global.Define(builtins.Print, symbols.KindMethod, builtins.Void)

	a.registerClasses(prog)
	if len(a.errors) > 0 {
		return a.ix
	}
	a.checkInheritance(prog)
	if len(a.errors) > 0 {
		return a.ix
	}
	for _, cls := range prog.Classes {
		a.checkClass(cls)
	}
	return a.ix
}

// registerClasses is the first class-level traversal: every class name
// enters the global scope, duplicates fail.
func (a *Analyzer) registerClasses(prog *ast.Program) {
	for _, cls := range prog.Classes {
		if err := a.global.Define(cls.Name, symbols.KindClass, cls.Name); err != nil {
			a.addError(cls.Token, "class '%s' is already declared", cls.Name)
		}
	}
}

// checkInheritance resolves every declared base and walks the chain
// looking for cycles.
func (a *Analyzer) checkInheritance(prog *ast.Program) {
	for _, cls := range prog.Classes {
		if cls.Base == "" {
			continue
		}
		info, ok := a.global.Resolve(cls.Base)
		if !ok {
			a.addError(cls.Token, "base class '%s' of '%s' is not declared", cls.Base, cls.Name)
			continue
		}
		if info.Kind != symbols.KindClass {
			a.addError(cls.Token, "'%s' is not a class and cannot be extended", cls.Base)
			continue
		}

		visited := map[string]bool{cls.Name: true}
		for cur := cls.Base; cur != ""; {
			if visited[cur] {
				a.addError(cls.Token, "cyclic inheritance involving class '%s'", cls.Name)
				break
			}
			visited[cur] = true
			ci, ok := a.ix.Classes[cur]
			if !ok {
				break // builtin base, chain ends
			}
			cur = ci.Base
		}
	}
}

// checkClass is the third traversal: collect members into a class scope,
// then re-walk member bodies validating expressions.
func (a *Analyzer) checkClass(cls *ast.ClassDecl) {
	ci := a.ix.Classes[cls.Name]
	a.currentClass = ci
	a.scope = scope.NewScope(a.global, cls.Name)
	defer func() {
		a.scope = a.global
		a.currentClass = nil
	}()

	// Fields inherited from the full base chain enter first; overriding an
	// inherited field is rejected below when Define collides.
	for _, base := range a.ix.BaseChain(cls.Base) {
		for _, fname := range base.FieldOrder {
			if _, exists := a.scope.ResolveCurrent(fname); !exists {
				_ = a.scope.Define(fname, symbols.KindVariable, base.Fields[fname])
			}
		}
	}

	seenCtors := make([][]string, 0, len(ci.Ctors))
	methodsSeen := make(map[string][]*MethodSig)

	for _, member := range cls.Members {
		switch m := member.(type) {
		case *ast.FieldDecl:
			if err := a.scope.Define(m.Name, symbols.KindVariable, ci.Fields[m.Name]); err != nil {
				a.addError(m.Token, "field '%s' is already declared in class '%s'", m.Name, cls.Name)
			}
		case *ast.ConstructorDecl:
			sig := paramTypes(m.Parameters)
			for _, seen := range seenCtors {
				if paramsEqual(seen, sig) {
					a.addError(m.Token, "duplicate constructor %s(%s)", cls.Name, joinTypes(sig))
				}
			}
			seenCtors = append(seenCtors, sig)
		case *ast.MethodDecl:
			sig := &MethodSig{Name: m.Name, Params: paramTypes(m.Parameters), Forward: m.Kind == ast.BodyForward}
			for _, seen := range methodsSeen[m.Name] {
				if paramsEqual(seen.Params, sig.Params) && !seen.Forward && !sig.Forward {
					a.addError(m.Token, "duplicate method '%s(%s)' in class '%s'", m.Name, joinTypes(sig.Params), cls.Name)
				}
			}
			methodsSeen[m.Name] = append(methodsSeen[m.Name], sig)
		}
	}

	// Re-walk member bodies.
	for _, member := range cls.Members {
		switch m := member.(type) {
		case *ast.FieldDecl:
			if m.TypeName != "" {
				a.checkTypeName(m.Token, m.TypeName)
			}
			a.validateExpr(m.Init)
		case *ast.ConstructorDecl:
			a.checkRoutine(nil, m.Parameters, m.Body, nil)
		case *ast.MethodDecl:
			switch m.Kind {
			case ast.BodyBlock:
				a.checkRoutine(m, m.Parameters, m.Body, nil)
			case ast.BodyArrow:
				a.checkRoutine(m, m.Parameters, nil, m.Arrow)
			}
		}
	}
}

// checkRoutine validates one method or constructor body. method is nil for
// constructors.
func (a *Analyzer) checkRoutine(method *ast.MethodDecl, params []*ast.Parameter, body *ast.Block, arrow ast.Expression) {
	a.currentMeth = method
	a.inBody = true
	a.scope = scope.NewScope(a.scope, routineName(method))
	defer func() {
		a.scope = a.scope.Outer
		a.currentMeth = nil
		a.inBody = false
	}()

	for _, p := range params {
		if err := a.scope.Define(p.Name, symbols.KindParameter, p.TypeName); err != nil {
			a.addError(p.Token, "parameter '%s' is already declared", p.Name)
		}
		a.checkTypeName(p.Token, p.TypeName)
	}

	if arrow != nil {
		a.validateExpr(arrow)
		return
	}
	if body != nil {
		a.checkBlock(body)
	}
}

func routineName(method *ast.MethodDecl) string {
	if method == nil {
		return "this"
	}
	return method.Name
}

func (a *Analyzer) checkBlock(block *ast.Block) {
	a.scope = scope.NewScope(a.scope, a.scope.Name)
	defer func() {
		for _, info := range a.scope.Symbols {
			if info.Kind == symbols.KindVariable && !info.Used {
				a.warnings = append(a.warnings,
					fmt.Sprintf("Semantic Warning: unused variable '%s'", info.Name))
			}
		}
		a.scope = a.scope.Outer
	}()

	for _, stmt := range block.Body {
		a.checkStatement(stmt)
	}
}

func (a *Analyzer) checkStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		a.validateExpr(s.Init)
		t := s.TypeName
		if t != "" {
			a.checkTypeName(s.Token, t)
			if src := a.infer(s.Init); typeKnown(src) && !a.assignable(t, src) {
				a.addError(s.Token, "cannot initialise '%s' of type '%s' with value of type '%s'", s.Name, t, src)
			}
		} else {
			t = a.infer(s.Init)
		}
		if err := a.scope.Define(s.Name, symbols.KindVariable, t); err != nil {
			a.addError(s.Token, "variable '%s' is already declared in this scope", s.Name)
		}
	case *ast.Assign:
		a.checkAssign(s)
	case *ast.While:
		a.validateExpr(s.Condition)
		a.checkCondition(s.Condition, s.GetToken())
		a.checkBlock(s.Body)
	case *ast.If:
		a.validateExpr(s.Condition)
		a.checkCondition(s.Condition, s.GetToken())
		a.checkBlock(s.Then)
		if s.Else != nil {
			a.checkBlock(s.Else)
		}
	case *ast.Return:
		a.checkReturn(s)
	case *ast.ExprStmt:
		a.validateExpr(s.Expr)
	}
}

func (a *Analyzer) checkAssign(s *ast.Assign) {
	a.validateExpr(s.Value)

	info, ok := a.scope.Resolve(s.Target)
	if !ok {
		a.addError(s.Token, "assignment to undeclared name '%s'", s.Target)
		return
	}
	if info.Kind != symbols.KindVariable && info.Kind != symbols.KindParameter {
		a.addError(s.Token, "cannot assign to %s '%s'", info.Kind, s.Target)
		return
	}

	if typeKnown(info.Type) {
		src := a.infer(s.Value)
		if typeKnown(src) && !a.assignable(info.Type, src) {
			a.addError(s.Token, "cannot assign value of type '%s' to '%s' of type '%s'", src, s.Target, info.Type)
		}
	}
}

// assignable: same type, Integer and Real convert either way, an Object
// target accepts anything, and a base-class target accepts its subclasses.
func (a *Analyzer) assignable(target, src string) bool {
	if target == src || target == builtins.Object {
		return true
	}
	if (target == builtins.Integer && src == builtins.Real) ||
		(target == builtins.Real && src == builtins.Integer) {
		return true
	}
	for _, ci := range a.ix.BaseChain(src) {
		if ci.Name == target {
			return true
		}
	}
	return false
}

func (a *Analyzer) checkCondition(cond ast.Expression, tok token.Token) {
	t := a.infer(cond)
	if typeKnown(t) && t != builtins.Boolean {
		a.addError(tok, "condition must be Boolean, got '%s'", t)
	}
}

func (a *Analyzer) checkReturn(s *ast.Return) {
	if !a.inBody {
		a.addError(s.Token, "'return' outside of a method or constructor")
		return
	}
	if s.Value != nil {
		a.validateExpr(s.Value)
	}
	if a.currentMeth != nil && a.currentMeth.ReturnType != "" && s.Value == nil {
		a.addError(s.Token, "method '%s' declares return type '%s' and must return a value",
			a.currentMeth.Name, a.currentMeth.ReturnType)
	}
	if (a.currentMeth == nil || a.currentMeth.ReturnType == "") && s.Value != nil {
		a.addWarning(s.Token, "returning a value from a method without a declared return type")
	}
}

// --- Expression validation ---

func (a *Analyzer) validateExpr(e ast.Expression) {
	switch n := e.(type) {
	case *ast.This:
		if a.currentClass == nil {
			a.addError(n.Token, "'this' used outside of a class body")
		}
	case *ast.Ident:
		a.checkIdent(n)
	case *ast.New:
		a.checkNew(n)
		for _, arg := range n.Args {
			a.validateExpr(arg)
		}
	case *ast.MemberAccess:
		a.validateExpr(n.Target)
		a.checkBuiltinShape(n, nil)
	case *ast.Call:
		if access, ok := n.Callee.(*ast.MemberAccess); ok {
			a.validateExpr(access.Target)
			argTypes := make([]string, 0, len(n.Args))
			for _, arg := range n.Args {
				a.validateExpr(arg)
				argTypes = append(argTypes, a.infer(arg))
			}
			a.checkBuiltinShape(access, argTypes)
			return
		}
		a.validateExpr(n.Callee)
		for _, arg := range n.Args {
			a.validateExpr(arg)
		}
	}
}

func (a *Analyzer) checkIdent(n *ast.Ident) {
	// The built-in generic heads are always accepted, instantiated or not.
	if builtins.IsGenericHead(builtins.Head(n.Name)) {
		return
	}
	if _, ok := a.scope.Resolve(builtins.Head(n.Name)); !ok {
		a.addError(n.Token, "undeclared identifier '%s'", n.Name)
		return
	}
	a.scope.MarkUsed(builtins.Head(n.Name))
}

func (a *Analyzer) checkNew(n *ast.New) {
	head := builtins.Head(n.ClassName)
	info, ok := a.global.Resolve(head)
	if !ok {
		a.addError(n.Token, "unknown class '%s'", head)
		return
	}
	if info.Kind != symbols.KindClass {
		a.addError(n.Token, "'%s' is not a class", head)
		return
	}
	for _, arg := range builtins.TypeArgs(n.ClassName) {
		a.checkTypeName(n.Token, arg)
	}
}

func (a *Analyzer) checkTypeName(tok token.Token, name string) {
	head := builtins.Head(name)
	if info, ok := a.global.Resolve(head); !ok || info.Kind != symbols.KindClass {
		a.addError(tok, "unknown type '%s'", name)
		return
	}
	for _, arg := range builtins.TypeArgs(name) {
		a.checkTypeName(tok, arg)
	}
}

// checkBuiltinShape verifies method name and arity against the fixed
// tables for receivers of builtin type. argTypes is nil for a bare member
// access (checked as a zero-argument use).
func (a *Analyzer) checkBuiltinShape(access *ast.MemberAccess, argTypes []string) {
	if access.Member == builtins.Print {
		return // the print intrinsic is reachable through any receiver
	}
	if _, isThis := access.Target.(*ast.This); isThis && argTypes != nil {
		// Implicit this.Name(...) construction or method call; the emitter
		// resolves these against the class index, not the builtin tables.
		if _, ok := a.global.Resolve(access.Member); ok {
			return
		}
	}

	recv := a.infer(access.Target)
	if !builtins.HasMethodTable(recv) {
		return
	}

	arity, known := builtins.MethodArity(recv, access.Member)
	if !known {
		a.addError(access.Token, "type '%s' has no method '%s'", recv, access.Member)
		return
	}
	argc := len(argTypes)
	if argc != arity {
		a.addError(access.Token, "method '%s.%s' expects %d argument(s), got %d", recv, access.Member, arity, argc)
		return
	}

	// Array/List indexing requires an Integer index.
	head := builtins.Head(recv)
	if (head == builtins.Array || head == builtins.List) &&
		(access.Member == "get" || access.Member == "set") && argc > 0 {
		if t := argTypes[0]; typeKnown(t) && t != builtins.Integer {
			a.addError(access.Token, "index into '%s' must be Integer, got '%s'", recv, t)
		}
	}
}

func joinTypes(types []string) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
