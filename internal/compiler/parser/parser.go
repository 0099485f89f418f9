package parser

import (
	"fmt"
	"strconv"

	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/builtins"
	"github.com/pepegx/olang/internal/compiler/lexer"
	"github.com/pepegx/olang/internal/compiler/token"
)

// Parser is a recursive-descent parser over the full token slice with one
// token of primary lookahead plus la(k) for deeper peeks. The first syntax
// error aborts the parse.
type Parser struct {
	toks []token.Token
	pos  int
}

func NewParser(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse tokenizes and parses src in one step.
func Parse(src string) (*ast.Program, error) {
	return NewParser(lexer.Tokenize(src)).ParseProgram()
}

// --- Token handling ---

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Type: token.TokenEOF}
	}
	return p.toks[p.pos]
}

// la peeks k tokens past the current one; la(0) is the current token.
func (p *Parser) la(k int) token.Token {
	if p.pos+k >= len(p.toks) {
		return token.Token{Type: token.TokenEOF}
	}
	return p.toks[p.pos+k]
}

func (p *Parser) advance() token.Token {
	tok := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(t token.TokenType, what string) (token.Token, error) {
	if p.cur().Type != t {
		return token.Token{}, p.errorf(p.cur(), "expected %s, got '%s'", what, p.describe(p.cur()))
	}
	return p.advance(), nil
}

func (p *Parser) describe(tok token.Token) string {
	if tok.Type == token.TokenEOF {
		return "end of input"
	}
	return tok.Literal
}

func (p *Parser) errorf(tok token.Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%d:%d: Syntax Error: %s", tok.Line, tok.Column, msg)
}

// --- Keyword-as-identifier relaxation ---

// isNameToken reports whether tok can serve as a declared name (parameter,
// variable, assignment target, member). Keywords are accepted here; the
// next required token (':', ':=', '(') keeps the grammar unambiguous.
func isNameToken(tok token.Token) bool {
	return tok.Type == token.TokenIdent || tok.IsKeyword()
}

// --- Expression termination ---

// terminatesExpression is the fixed set of tokens that ends expression
// parsing both at the top level and after a completed call. The ';'
// statement separator is optional, so these are load-bearing.
func terminatesExpression(t token.TokenType) bool {
	switch t {
	case token.TokenLoop, token.TokenThen, token.TokenEnd, token.TokenElse,
		token.TokenClass, token.TokenWhile, token.TokenIf, token.TokenReturn,
		token.TokenVar, token.TokenRParen, token.TokenComma,
		token.TokenRBracket, token.TokenSemicolon, token.TokenEOF:
		return true
	}
	return false
}

// --- Program ---

func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur().Type != token.TokenEOF {
		if p.cur().Type != token.TokenClass {
			return nil, p.errorf(p.cur(), "expected 'class' declaration, got '%s'", p.describe(p.cur()))
		}
		cls, err := p.parseClass()
		if err != nil {
			return nil, err
		}
		prog.Classes = append(prog.Classes, cls)
	}
	return prog, nil
}

func (p *Parser) parseClass() (*ast.ClassDecl, error) {
	classTok := p.advance() // 'class'

	nameTok, err := p.expect(token.TokenIdent, "class name")
	if err != nil {
		return nil, err
	}

	cls := &ast.ClassDecl{Token: classTok, Name: nameTok.Literal}

	if p.cur().Type == token.TokenExtends {
		p.advance()
		baseTok, err := p.expect(token.TokenIdent, "base class name")
		if err != nil {
			return nil, err
		}
		cls.Base = baseTok.Literal
	}

	if _, err := p.expect(token.TokenIs, "'is'"); err != nil {
		return nil, err
	}

	for {
		switch p.cur().Type {
		case token.TokenEnd:
			p.advance()
			return cls, nil
		case token.TokenEOF:
			// Missing trailing 'end' before end of input is tolerated.
			return cls, nil
		case token.TokenClass:
			// Class boundary recovery: a 'class' mid-class terminates the
			// current one without consuming the token; the outer loop picks
			// up the next declaration.
			return cls, nil
		case token.TokenVar:
			field, err := p.parseField()
			if err != nil {
				return nil, err
			}
			cls.Members = append(cls.Members, field)
		case token.TokenThis:
			ctor, err := p.parseConstructor()
			if err != nil {
				return nil, err
			}
			cls.Members = append(cls.Members, ctor)
		case token.TokenMethod:
			method, err := p.parseMethod()
			if err != nil {
				return nil, err
			}
			cls.Members = append(cls.Members, method)
		case token.TokenSemicolon:
			p.advance()
		default:
			return nil, p.errorf(p.cur(), "expected class member, got '%s'", p.describe(p.cur()))
		}
	}
}

// parseField parses 'var name : initialiser' at class level, where the
// initialiser may be an explicit 'Type := value' pair.
func (p *Parser) parseField() (*ast.FieldDecl, error) {
	varTok := p.advance() // 'var'

	if !isNameToken(p.cur()) {
		return nil, p.errorf(p.cur(), "expected field name, got '%s'", p.describe(p.cur()))
	}
	nameTok := p.advance()

	if _, err := p.expect(token.TokenColon, "':'"); err != nil {
		return nil, err
	}

	typeName, init, err := p.parseDeclInit()
	if err != nil {
		return nil, err
	}
	return &ast.FieldDecl{Token: varTok, Name: nameTok.Literal, TypeName: typeName, Init: init}, nil
}

// parseDeclInit parses what follows the ':' of a declaration: a plain
// initialiser expression, or 'Type := value'. In the second form the first
// expression must reduce to a type name.
func (p *Parser) parseDeclInit() (string, ast.Expression, error) {
	first, err := p.parseExpression()
	if err != nil {
		return "", nil, err
	}
	if p.cur().Type != token.TokenAssign {
		return "", first, nil
	}
	ident, ok := first.(*ast.Ident)
	if !ok {
		return "", nil, p.errorf(p.cur(), "expected a type name before ':='")
	}
	p.advance() // ':='
	init, err := p.parseExpression()
	if err != nil {
		return "", nil, err
	}
	return ident.Name, init, nil
}

func (p *Parser) parseConstructor() (*ast.ConstructorDecl, error) {
	thisTok := p.advance() // 'this'

	params, err := p.parseParameters()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.TokenIs, "'is'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TokenEnd, "'end'"); err != nil {
		return nil, err
	}
	return &ast.ConstructorDecl{Token: thisTok, Parameters: params, Body: body}, nil
}

func (p *Parser) parseMethod() (*ast.MethodDecl, error) {
	methodTok := p.advance() // 'method'

	nameTok, err := p.expect(token.TokenIdent, "method name")
	if err != nil {
		return nil, err
	}

	params, err := p.parseParameters()
	if err != nil {
		return nil, err
	}

	md := &ast.MethodDecl{Token: methodTok, Name: nameTok.Literal, Parameters: params}

	if p.cur().Type == token.TokenColon {
		p.advance()
		ret, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		md.ReturnType = ret
	}

	switch p.cur().Type {
	case token.TokenIs:
		p.advance()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.TokenEnd, "'end'"); err != nil {
			return nil, err
		}
		md.Kind = ast.BodyBlock
		md.Body = body
	case token.TokenArrow:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		md.Kind = ast.BodyArrow
		md.Arrow = expr
	default:
		// Forward declaration: signature only.
		md.Kind = ast.BodyForward
	}
	return md, nil
}

func (p *Parser) parseParameters() ([]*ast.Parameter, error) {
	if _, err := p.expect(token.TokenLParen, "'('"); err != nil {
		return nil, err
	}

	var params []*ast.Parameter
	if p.cur().Type == token.TokenRParen {
		p.advance()
		return params, nil
	}

	for {
		if !isNameToken(p.cur()) {
			return nil, p.errorf(p.cur(), "expected parameter name, got '%s'", p.describe(p.cur()))
		}
		nameTok := p.advance()
		if _, err := p.expect(token.TokenColon, "':'"); err != nil {
			return nil, err
		}
		typeName, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Parameter{Token: nameTok, Name: nameTok.Literal, TypeName: typeName})

		if p.cur().Type == token.TokenComma {
			p.advance()
			continue
		}
		break
	}

	if _, err := p.expect(token.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	return params, nil
}

// parseTypeName parses 'Identifier ('[' TypeName (',' TypeName)* ']')*'
// and returns the canonical textual form: commas, no spaces.
func (p *Parser) parseTypeName() (string, error) {
	nameTok, err := p.expect(token.TokenIdent, "type name")
	if err != nil {
		return "", err
	}
	name := nameTok.Literal
	for p.cur().Type == token.TokenLBracket {
		args, err := p.parseTypeArgs()
		if err != nil {
			return "", err
		}
		name = builtins.Canonical(name, args)
	}
	return name, nil
}

func (p *Parser) parseTypeArgs() ([]string, error) {
	p.advance() // '['
	var args []string
	for {
		arg, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().Type == token.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.TokenRBracket, "']'"); err != nil {
		return nil, err
	}
	return args, nil
}

// --- Blocks & statements ---

// terminatesBlock reports whether the current token closes the enclosing
// block. A closing keyword immediately followed by ':=' is an assignment
// to a keyword-named variable instead.
func (p *Parser) terminatesBlock() bool {
	switch p.cur().Type {
	case token.TokenEnd, token.TokenElse, token.TokenClass, token.TokenEOF:
		return p.la(1).Type != token.TokenAssign
	}
	return false
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	block := &ast.Block{}
	for {
		if p.cur().Type == token.TokenSemicolon {
			p.advance()
			continue
		}
		if p.terminatesBlock() {
			return block, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Append(stmt)
	}
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur().Type {
	case token.TokenVar:
		return p.parseVarDecl()
	case token.TokenWhile:
		return p.parseWhile()
	case token.TokenIf:
		return p.parseIf()
	case token.TokenReturn:
		return p.parseReturn()
	}

	// Assignment lookahead: 'name :=' or 'this . name :='. Anything else at
	// statement position is an expression statement.
	if isNameToken(p.cur()) && p.cur().Type != token.TokenThis && p.la(1).Type == token.TokenAssign {
		return p.parseAssign()
	}
	if p.cur().Type == token.TokenThis && p.la(1).Type == token.TokenDot &&
		isNameToken(p.la(2)) && p.la(3).Type == token.TokenAssign {
		return p.parseFieldAssign()
	}

	tok := p.cur()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Token: tok, Expr: expr}, nil
}

func (p *Parser) parseVarDecl() (*ast.VarDecl, error) {
	varTok := p.advance() // 'var'

	if !isNameToken(p.cur()) {
		return nil, p.errorf(p.cur(), "expected variable name, got '%s'", p.describe(p.cur()))
	}
	nameTok := p.advance()

	if _, err := p.expect(token.TokenColon, "':'"); err != nil {
		return nil, err
	}
	typeName, init, err := p.parseDeclInit()
	if err != nil {
		return nil, err
	}
	return &ast.VarDecl{Token: varTok, Name: nameTok.Literal, TypeName: typeName, Init: init}, nil
}

func (p *Parser) parseAssign() (*ast.Assign, error) {
	nameTok := p.advance()
	p.advance() // ':='
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Token: nameTok, Target: nameTok.Literal, Value: value}, nil
}

func (p *Parser) parseFieldAssign() (*ast.Assign, error) {
	p.advance() // 'this'
	p.advance() // '.'
	nameTok := p.advance()
	p.advance() // ':='
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Token: nameTok, Target: nameTok.Literal, IsField: true, Value: value}, nil
}

func (p *Parser) parseWhile() (*ast.While, error) {
	whileTok := p.advance() // 'while'

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TokenLoop, "'loop'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TokenEnd, "'end'"); err != nil {
		return nil, err
	}
	return &ast.While{Token: whileTok, Condition: cond, Body: body}, nil
}

func (p *Parser) parseIf() (*ast.If, error) {
	ifTok := p.advance() // 'if'

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TokenThen, "'then'"); err != nil {
		return nil, err
	}
	thenBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	stmt := &ast.If{Token: ifTok, Condition: cond, Then: thenBlock}

	if p.cur().Type == token.TokenElse {
		p.advance()
		elseBlock, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBlock
	}

	if _, err := p.expect(token.TokenEnd, "'end'"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseReturn() (*ast.Return, error) {
	retTok := p.advance() // 'return'

	if terminatesExpression(p.cur().Type) && p.la(1).Type != token.TokenAssign {
		return &ast.Return{Token: retTok}, nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Return{Token: retTok, Value: value}, nil
}

// --- Expressions ---

// parseExpression parses 'atom ( "(" args ")" | "." Ident ( "(" args ")" )? )*'.
// There are no infix operators; every operator is a method call.
func (p *Parser) parseExpression() (ast.Expression, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	for {
		if terminatesExpression(p.cur().Type) {
			return expr, nil
		}
		switch p.cur().Type {
		case token.TokenLParen:
			lparen := p.cur()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Token: lparen, Callee: expr, Args: args}
		case token.TokenDot:
			p.advance() // '.'
			if !isNameToken(p.cur()) {
				return nil, p.errorf(p.cur(), "expected member name after '.', got '%s'", p.describe(p.cur()))
			}
			memberTok := p.advance()
			access := &ast.MemberAccess{Token: memberTok, Target: expr, Member: memberTok.Literal}
			if p.cur().Type == token.TokenLParen {
				lparen := p.cur()
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &ast.Call{Token: lparen, Callee: access, Args: args}
			} else {
				expr = access
			}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expression, error) {
	p.advance() // '('

	var args []ast.Expression
	if p.cur().Type == token.TokenRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().Type == token.TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseAtom() (ast.Expression, error) {
	tok := p.cur()

	switch tok.Type {
	case token.TokenInt:
		p.advance()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid integer literal '%s'", tok.Literal)
		}
		return &ast.IntLit{Token: tok, Value: v}, nil
	case token.TokenReal:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid real literal '%s'", tok.Literal)
		}
		return &ast.RealLit{Token: tok, Value: v}, nil
	case token.TokenString:
		p.advance()
		return &ast.StringLit{Token: tok, Value: tok.Literal}, nil
	case token.TokenTrue:
		p.advance()
		return &ast.BoolLit{Token: tok, Value: true}, nil
	case token.TokenFalse:
		p.advance()
		return &ast.BoolLit{Token: tok, Value: false}, nil
	case token.TokenThis:
		p.advance()
		return &ast.This{Token: tok}, nil
	case token.TokenUnknown:
		// '-' ahead of a numeric literal produces a negated literal atom.
		if tok.Literal == "-" {
			switch p.la(1).Type {
			case token.TokenInt:
				p.advance()
				numTok := p.advance()
				v, err := strconv.ParseInt(numTok.Literal, 10, 64)
				if err != nil {
					return nil, p.errorf(numTok, "invalid integer literal '%s'", numTok.Literal)
				}
				return &ast.IntLit{Token: tok, Value: -v}, nil
			case token.TokenReal:
				p.advance()
				numTok := p.advance()
				v, err := strconv.ParseFloat(numTok.Literal, 64)
				if err != nil {
					return nil, p.errorf(numTok, "invalid real literal '%s'", numTok.Literal)
				}
				return &ast.RealLit{Token: tok, Value: -v}, nil
			}
		}
		return nil, p.errorf(tok, "unexpected character '%s'", tok.Literal)
	}

	if tok.Type == token.TokenIdent || tok.IsKeyword() {
		return p.parseIdentAtom()
	}

	return nil, p.errorf(tok, "expected expression, got '%s'", p.describe(tok))
}

// parseIdentAtom parses an identifier atom, optionally followed by a
// '[...]' type-argument suffix and a call. Built-in type names with
// arguments become New nodes; other called identifiers become implicit
// this.name(args) calls.
func (p *Parser) parseIdentAtom() (ast.Expression, error) {
	nameTok := p.advance()
	name := nameTok.Literal

	for p.cur().Type == token.TokenLBracket {
		args, err := p.parseTypeArgs()
		if err != nil {
			return nil, err
		}
		name = builtins.Canonical(name, args)
	}

	if p.cur().Type != token.TokenLParen {
		return &ast.Ident{Token: nameTok, Name: name}, nil
	}

	lparen := p.cur()
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}

	if builtins.IsBuiltinClass(name) {
		return &ast.New{Token: nameTok, ClassName: name, Args: args}, nil
	}

	// Not a built-in type name: an implicit call on the receiver.
	callee := &ast.MemberAccess{
		Token:  nameTok,
		Target: &ast.This{Token: nameTok},
		Member: name,
	}
	return &ast.Call{Token: lparen, Callee: callee, Args: args}, nil
}
