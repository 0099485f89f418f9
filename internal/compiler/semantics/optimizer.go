package semantics

import (
	"fmt"

	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/builtins"
)

// Optimizer is the mutating rewrite pass that runs after a clean check
// pass. It only ever removes nodes (fields, locals, statements, branches);
// it never adds, and it never fails. Every rewrite is logged.
type Optimizer struct {
	uses map[string]int // identifier uses across all bodies
	log  []string
	loc  string // "Class.method", for log lines
}

func NewOptimizer() *Optimizer {
	return &Optimizer{uses: make(map[string]int)}
}

// Log returns one line per rewrite, in application order.
func (o *Optimizer) Log() []string { return o.log }

func (o *Optimizer) logf(format string, args ...any) {
	o.log = append(o.log, fmt.Sprintf(format, args...))
}

// Optimize rewrites the program in place and returns the rewrite log.
func (o *Optimizer) Optimize(prog *ast.Program) []string {
	o.collectUses(prog)

	for _, cls := range prog.Classes {
		o.pruneFields(cls)
		for _, member := range cls.Members {
			switch m := member.(type) {
			case *ast.ConstructorDecl:
				o.loc = cls.Name + ".this"
				o.rewriteBlock(m.Body)
			case *ast.MethodDecl:
				if m.Kind == ast.BodyBlock {
					o.loc = cls.Name + "." + m.Name
					o.rewriteBlock(m.Body)
				}
			}
		}
	}
	return o.log
}

// collectUses pre-walks every method/constructor body counting identifier
// uses: plain identifiers, member names, and assignment targets all keep a
// name alive.
func (o *Optimizer) collectUses(prog *ast.Program) {
	for _, cls := range prog.Classes {
		for _, member := range cls.Members {
			switch m := member.(type) {
			case *ast.ConstructorDecl:
				o.collectBlock(m.Body)
			case *ast.MethodDecl:
				switch m.Kind {
				case ast.BodyBlock:
					o.collectBlock(m.Body)
				case ast.BodyArrow:
					o.collectExpr(m.Arrow)
				}
			}
		}
	}
}

func (o *Optimizer) collectBlock(block *ast.Block) {
	if block == nil {
		return
	}
	for _, stmt := range block.Body {
		o.collectStmt(stmt)
	}
}

func (o *Optimizer) collectStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		o.collectExpr(s.Init)
	case *ast.Assign:
		o.uses[s.Target]++
		o.collectExpr(s.Value)
	case *ast.ExprStmt:
		o.collectExpr(s.Expr)
	case *ast.While:
		o.collectExpr(s.Condition)
		o.collectBlock(s.Body)
	case *ast.If:
		o.collectExpr(s.Condition)
		o.collectBlock(s.Then)
		o.collectBlock(s.Else)
	case *ast.Return:
		if s.Value != nil {
			o.collectExpr(s.Value)
		}
	}
}

func (o *Optimizer) collectExpr(e ast.Expression) {
	switch n := e.(type) {
	case *ast.Ident:
		o.uses[builtins.Head(n.Name)]++
	case *ast.MemberAccess:
		o.uses[n.Member]++
		o.collectExpr(n.Target)
	case *ast.Call:
		o.collectExpr(n.Callee)
		for _, arg := range n.Args {
			o.collectExpr(arg)
		}
	case *ast.New:
		for _, arg := range n.Args {
			o.collectExpr(arg)
		}
	}
}

// pruneFields drops class fields whose names never appear in any
// method/constructor body. Field initialisers are side-effect-free here:
// constructor calls with literal arguments.
func (o *Optimizer) pruneFields(cls *ast.ClassDecl) {
	kept := cls.Members[:0]
	for _, member := range cls.Members {
		if field, ok := member.(*ast.FieldDecl); ok && o.uses[field.Name] == 0 {
			o.logf("removed unused field '%s' in class '%s'", field.Name, cls.Name)
			continue
		}
		kept = append(kept, member)
	}
	cls.Members = kept
}

// rewriteBlock applies the statement rewrites to one block, rebuilding the
// three projections so the interleaving invariant holds afterwards.
func (o *Optimizer) rewriteBlock(block *ast.Block) {
	if block == nil {
		return
	}

	body := block.Body
	block.Body = nil
	block.Locals = nil
	block.Statements = nil

	returned := false
	for _, stmt := range body {
		if returned {
			o.logf("removed unreachable statement after return in %s", o.loc)
			continue
		}
		replacement, keep := o.rewriteStmt(stmt)
		if !keep {
			continue
		}
		block.Append(replacement)
		if _, isReturn := replacement.(*ast.Return); isReturn {
			returned = true
		}
	}
}

// rewriteStmt returns the statement to keep in place of stmt, or keep=false
// to drop it entirely.
func (o *Optimizer) rewriteStmt(stmt ast.Statement) (ast.Statement, bool) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if o.uses[s.Name] == 0 {
			o.logf("removed unused variable '%s' in %s", s.Name, o.loc)
			return nil, false
		}
		return s, true
	case *ast.While:
		if val, ok := constBool(s.Condition); ok && !val {
			o.logf("removed while(false) loop in %s", o.loc)
			return nil, false
		}
		o.rewriteBlock(s.Body)
		return s, true
	case *ast.If:
		if val, ok := constBool(s.Condition); ok {
			if val {
				o.logf("collapsed if(true) to its then branch in %s", o.loc)
				return o.firstOf(s.Then)
			}
			if s.Else == nil {
				o.logf("removed if(false) with no else branch in %s", o.loc)
				return nil, false
			}
			o.logf("collapsed if(false) to its else branch in %s", o.loc)
			return o.firstOf(s.Else)
		}
		o.rewriteBlock(s.Then)
		o.rewriteBlock(s.Else)
		return s, true
	}
	return stmt, true
}

// firstOf substitutes a collapsed branch with its first statement, itself
// rewritten, or drops the construct when the branch is empty.
func (o *Optimizer) firstOf(block *ast.Block) (ast.Statement, bool) {
	if block == nil || len(block.Body) == 0 {
		return nil, false
	}
	return o.rewriteStmt(block.Body[0])
}

// constBool recognises compile-time Boolean conditions: literals and
// Boolean(...) value constructions over literals.
func constBool(e ast.Expression) (bool, bool) {
	switch n := e.(type) {
	case *ast.BoolLit:
		return n.Value, true
	case *ast.New:
		if n.ClassName != builtins.Boolean {
			return false, false
		}
		if len(n.Args) == 0 {
			return false, true // Boolean() is the type default, false
		}
		if len(n.Args) == 1 {
			return constBool(n.Args[0])
		}
	}
	return false, false
}
