package ast

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pepegx/olang/internal/compiler/token"
)

// --- Interfaces ---

type Node interface {
	TokenLiteral() string
	String() string
}

type Statement interface {
	Node
	statementNode()
	GetToken() token.Token
}

type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Member is a class-level declaration: field, constructor, or method.
type Member interface {
	Node
	memberNode()
}

// --- Program ---

type Program struct {
	Classes []*ClassDecl
}

func (p *Program) TokenLiteral() string {
	if len(p.Classes) > 0 {
		return p.Classes[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, c := range p.Classes {
		out.WriteString(c.String())
		out.WriteString("\n")
	}
	return out.String()
}

// --- Declarations ---

type ClassDecl struct {
	Token   token.Token // class
	Name    string
	Base    string // "" when the class has no declared base
	Members []Member
}

func (cd *ClassDecl) TokenLiteral() string { return cd.Token.Literal }
func (cd *ClassDecl) String() string {
	var out bytes.Buffer
	out.WriteString("class " + cd.Name)
	if cd.Base != "" {
		out.WriteString(" extends " + cd.Base)
	}
	out.WriteString(" is\n")
	for _, m := range cd.Members {
		out.WriteString("  " + m.String() + "\n")
	}
	out.WriteString("end")
	return out.String()
}

// FieldDecl -> var name : initialiser, or var name : Type := initialiser
// An initialiser that is just a type name stands for that type's default.
type FieldDecl struct {
	Token    token.Token // var
	Name     string
	TypeName string // set only for the explicit 'var name : Type := value' form
	Init     Expression
}

func (fd *FieldDecl) memberNode()          {}
func (fd *FieldDecl) TokenLiteral() string { return fd.Token.Literal }
func (fd *FieldDecl) String() string       { return declString("var "+fd.Name, fd.TypeName, fd.Init) }

func declString(prefix, typeName string, init Expression) string {
	s := prefix
	if typeName != "" {
		s += " : " + typeName
		if init != nil {
			s += " := " + init.String()
		}
		return s
	}
	if init != nil {
		s += " : " + init.String()
	}
	return s
}

type Parameter struct {
	Token    token.Token // parameter name token
	Name     string
	TypeName string // canonical textual form, e.g. "Array[Integer]"
}

func (p *Parameter) String() string { return p.Name + ": " + p.TypeName }

// ConstructorDecl -> this(params) is body end
type ConstructorDecl struct {
	Token      token.Token // this
	Parameters []*Parameter
	Body       *Block
}

func (cd *ConstructorDecl) memberNode()          {}
func (cd *ConstructorDecl) TokenLiteral() string { return cd.Token.Literal }
func (cd *ConstructorDecl) String() string {
	return "this(" + paramList(cd.Parameters) + ") is " + blockString(cd.Body) + " end"
}

// BodyKind distinguishes the three method body forms.
type BodyKind int

const (
	BodyForward BodyKind = iota // no body
	BodyBlock                   // is ... end
	BodyArrow                   // => expr
)

// MethodDecl -> method name(params) [: Type] (is body end | => expr | <nothing>)
type MethodDecl struct {
	Token      token.Token // method
	Name       string
	Parameters []*Parameter
	ReturnType string // "" when the method declares no return type
	Kind       BodyKind
	Body       *Block     // set when Kind == BodyBlock
	Arrow      Expression // set when Kind == BodyArrow
}

func (md *MethodDecl) memberNode()          {}
func (md *MethodDecl) TokenLiteral() string { return md.Token.Literal }
func (md *MethodDecl) String() string {
	var out bytes.Buffer
	out.WriteString("method " + md.Name + "(" + paramList(md.Parameters) + ")")
	if md.ReturnType != "" {
		out.WriteString(": " + md.ReturnType)
	}
	switch md.Kind {
	case BodyBlock:
		out.WriteString(" is " + blockString(md.Body) + " end")
	case BodyArrow:
		out.WriteString(" => " + md.Arrow.String())
	}
	return out.String()
}

func paramList(params []*Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}

func blockString(b *Block) string {
	if b == nil {
		return ""
	}
	parts := make([]string, 0, len(b.Body))
	for _, s := range b.Body {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "; ")
}

// --- Blocks ---

// Block carries three parallel projections of a body. Body is the
// authoritative interleaved sequence; Locals and Statements exist so
// hoisting and scope checks stay O(1). Invariant: the multiset of
// Locals ∪ Statements equals Body.
type Block struct {
	Locals     []*VarDecl  // declarations, in block order
	Statements []Statement // non-declaration statements, in order
	Body       []Statement // the original interleaving
}

// Append adds a statement to the interleaved body and the matching
// projection.
func (b *Block) Append(s Statement) {
	b.Body = append(b.Body, s)
	if vd, ok := s.(*VarDecl); ok {
		b.Locals = append(b.Locals, vd)
	} else {
		b.Statements = append(b.Statements, s)
	}
}

// --- Statements ---

// VarDecl -> var name : initialiser, or var name : Type := initialiser
// (local declaration)
type VarDecl struct {
	Token    token.Token // var
	Name     string
	TypeName string // set only for the explicit 'var name : Type := value' form
	Init     Expression
}

func (vd *VarDecl) statementNode()        {}
func (vd *VarDecl) TokenLiteral() string  { return vd.Token.Literal }
func (vd *VarDecl) GetToken() token.Token { return vd.Token }
func (vd *VarDecl) String() string        { return declString("var "+vd.Name, vd.TypeName, vd.Init) }

// Assign -> name := value, or this.name := value
type Assign struct {
	Token   token.Token // target name token
	Target  string
	IsField bool // true for the this.name form
	Value   Expression
}

func (a *Assign) statementNode()        {}
func (a *Assign) TokenLiteral() string  { return a.Token.Literal }
func (a *Assign) GetToken() token.Token { return a.Token }
func (a *Assign) String() string {
	t := a.Target
	if a.IsField {
		t = "this." + t
	}
	return t + " := " + a.Value.String()
}

// ExprStmt wraps an expression used at statement position.
type ExprStmt struct {
	Token token.Token
	Expr  Expression
}

func (es *ExprStmt) statementNode()        {}
func (es *ExprStmt) TokenLiteral() string  { return es.Token.Literal }
func (es *ExprStmt) GetToken() token.Token { return es.Token }
func (es *ExprStmt) String() string        { return es.Expr.String() }

// While -> while cond loop body end
type While struct {
	Token     token.Token // while
	Condition Expression
	Body      *Block
}

func (w *While) statementNode()        {}
func (w *While) TokenLiteral() string  { return w.Token.Literal }
func (w *While) GetToken() token.Token { return w.Token }
func (w *While) String() string {
	return "while " + w.Condition.String() + " loop " + blockString(w.Body) + " end"
}

// If -> if cond then body [else body] end
type If struct {
	Token     token.Token // if
	Condition Expression
	Then      *Block
	Else      *Block // nil when there is no else branch
}

func (i *If) statementNode()        {}
func (i *If) TokenLiteral() string  { return i.Token.Literal }
func (i *If) GetToken() token.Token { return i.Token }
func (i *If) String() string {
	s := "if " + i.Condition.String() + " then " + blockString(i.Then)
	if i.Else != nil {
		s += " else " + blockString(i.Else)
	}
	return s + " end"
}

// Return -> return [value]
type Return struct {
	Token token.Token // return
	Value Expression  // nil for a bare return
}

func (r *Return) statementNode()        {}
func (r *Return) TokenLiteral() string  { return r.Token.Literal }
func (r *Return) GetToken() token.Token { return r.Token }
func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return "return " + r.Value.String()
}

// --- Expressions ---

type IntLit struct {
	Token token.Token
	Value int64
}

func (il *IntLit) expressionNode()       {}
func (il *IntLit) TokenLiteral() string  { return il.Token.Literal }
func (il *IntLit) GetToken() token.Token { return il.Token }
func (il *IntLit) String() string        { return fmt.Sprintf("%d", il.Value) }

type RealLit struct {
	Token token.Token
	Value float64
}

func (rl *RealLit) expressionNode()       {}
func (rl *RealLit) TokenLiteral() string  { return rl.Token.Literal }
func (rl *RealLit) GetToken() token.Token { return rl.Token }
func (rl *RealLit) String() string        { return fmt.Sprintf("%g", rl.Value) }

type BoolLit struct {
	Token token.Token
	Value bool
}

func (bl *BoolLit) expressionNode()       {}
func (bl *BoolLit) TokenLiteral() string  { return bl.Token.Literal }
func (bl *BoolLit) GetToken() token.Token { return bl.Token }
func (bl *BoolLit) String() string        { return fmt.Sprintf("%t", bl.Value) }

type StringLit struct {
	Token token.Token
	Value string
}

func (sl *StringLit) expressionNode()       {}
func (sl *StringLit) TokenLiteral() string  { return sl.Token.Literal }
func (sl *StringLit) GetToken() token.Token { return sl.Token }
func (sl *StringLit) String() string        { return fmt.Sprintf("%q", sl.Value) }

type This struct {
	Token token.Token
}

func (t *This) expressionNode()       {}
func (t *This) TokenLiteral() string  { return t.Token.Literal }
func (t *This) GetToken() token.Token { return t.Token }
func (t *This) String() string        { return "this" }

type Ident struct {
	Token token.Token
	Name  string
}

func (i *Ident) expressionNode()       {}
func (i *Ident) TokenLiteral() string  { return i.Token.Literal }
func (i *Ident) GetToken() token.Token { return i.Token }
func (i *Ident) String() string        { return i.Name }

// MemberAccess -> target.member
type MemberAccess struct {
	Token  token.Token // member name token
	Target Expression
	Member string
}

func (ma *MemberAccess) expressionNode()       {}
func (ma *MemberAccess) TokenLiteral() string  { return ma.Token.Literal }
func (ma *MemberAccess) GetToken() token.Token { return ma.Token }
func (ma *MemberAccess) String() string        { return ma.Target.String() + "." + ma.Member }

// Call -> callee(args)
type Call struct {
	Token  token.Token // '(' token
	Callee Expression
	Args   []Expression
}

func (c *Call) expressionNode()       {}
func (c *Call) TokenLiteral() string  { return c.Token.Literal }
func (c *Call) GetToken() token.Token { return c.Token }
func (c *Call) String() string {
	args := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		args = append(args, a.String())
	}
	return c.Callee.String() + "(" + strings.Join(args, ", ") + ")"
}

// New -> ClassName(args), recognised by the parser for built-in type names.
// User-class construction stays an implicit this.Name(args) call, which
// the emitter lowers directly to newobj.
type New struct {
	Token     token.Token
	ClassName string // canonical textual form, e.g. "List[Integer]"
	Args      []Expression
}

func (n *New) expressionNode()       {}
func (n *New) TokenLiteral() string  { return n.Token.Literal }
func (n *New) GetToken() token.Token { return n.Token }
func (n *New) String() string {
	args := make([]string, 0, len(n.Args))
	for _, a := range n.Args {
		args = append(args, a.String())
	}
	return n.ClassName + "(" + strings.Join(args, ", ") + ")"
}
