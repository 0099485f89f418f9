package semantics

import (
	"strings"
	"testing"

	"github.com/pepegx/olang/internal/compiler/ast"
	"github.com/pepegx/olang/internal/compiler/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optimize(t *testing.T, src string) (*ast.Program, []string) {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	a := NewAnalyzer()
	a.Analyze(prog)
	require.Empty(t, a.Errors())
	log := NewOptimizer().Optimize(prog)
	return prog, log
}

func hasLog(log []string, fragment string) bool {
	for _, line := range log {
		if strings.Contains(line, fragment) {
			return true
		}
	}
	return false
}

func TestPruneUnusedField(t *testing.T) {
	prog, log := optimize(t, `
class M is
  var z: Integer
  method main() is
    return
  end
end`)
	assert.True(t, hasLog(log, "removed unused field 'z'"), "log: %v", log)
	require.Len(t, prog.Classes[0].Members, 1)
	_, isMethod := prog.Classes[0].Members[0].(*ast.MethodDecl)
	assert.True(t, isMethod)
}

func TestUsedFieldKept(t *testing.T) {
	prog, log := optimize(t, `
class M is
  var z: Integer
  method main() is
    print(z)
  end
end`)
	assert.False(t, hasLog(log, "removed unused field"), "log: %v", log)
	assert.Len(t, prog.Classes[0].Members, 2)
}

func TestDropUnusedLocal(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    var u : Integer(1)
    print(Integer(2))
  end
end`)
	assert.True(t, hasLog(log, "removed unused variable 'u'"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	assert.Empty(t, body.Locals)
	assert.Len(t, body.Body, 1)
}

func TestAssignedLocalSurvives(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    var x : Integer(1)
    x := Integer(2)
  end
end`)
	assert.False(t, hasLog(log, "removed unused variable"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	assert.Len(t, body.Locals, 1)
}

func TestTrimAfterReturn(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    var x : Integer(1)
    return; x := Integer(2); print(x)
  end
end`)
	assert.True(t, hasLog(log, "unreachable statement"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	require.Len(t, body.Body, 2)
	_, isReturn := body.Body[1].(*ast.Return)
	assert.True(t, isReturn, "nothing follows a return in an optimised block")
}

func TestWhileFalseRemoved(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    while Boolean(false) loop
      print(Integer(1))
    end
    print(Integer(2))
  end
end`)
	assert.True(t, hasLog(log, "while(false)"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	require.Len(t, body.Body, 1)
	_, isExpr := body.Body[0].(*ast.ExprStmt)
	assert.True(t, isExpr)
}

func TestIfTrueCollapsed(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    if Boolean(true) then
      print(Integer(1))
    else
      print(Integer(2))
    end
  end
end`)
	assert.True(t, hasLog(log, "if(true)"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	require.Len(t, body.Body, 1)
	stmt, isExpr := body.Body[0].(*ast.ExprStmt)
	require.True(t, isExpr, "the if collapses to its first then-branch statement")
	assert.Contains(t, stmt.String(), "1")
}

func TestIfFalseCollapsedToElse(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    if Boolean(false) then
      print(Integer(1))
    else
      print(Integer(2))
    end
  end
end`)
	assert.True(t, hasLog(log, "if(false)"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	require.Len(t, body.Body, 1)
	assert.Contains(t, body.Body[0].String(), "2")
}

func TestIfFalseWithoutElseRemoved(t *testing.T) {
	prog, log := optimize(t, `
class M is
  method main() is
    if Boolean(false) then
      print(Integer(1))
    end
    print(Integer(3))
  end
end`)
	assert.True(t, hasLog(log, "if(false)"), "log: %v", log)
	body := prog.Classes[0].Members[0].(*ast.MethodDecl).Body
	assert.Len(t, body.Body, 1)
}

func TestBareLiteralConditions(t *testing.T) {
	_, log := optimize(t, `
class M is
  method main() is
    if true then
      print(Integer(1))
    end
    while false loop
      print(Integer(2))
    end
  end
end`)
	assert.True(t, hasLog(log, "if(true)"), "log: %v", log)
	assert.True(t, hasLog(log, "while(false)"), "log: %v", log)
}

// Optimiser monotonicity: rewrites only remove nodes, never add.
func TestOptimizerMonotonic(t *testing.T) {
	src := `
class M is
  var dead: Integer
  method main() is
    var u : Integer(1)
    if Boolean(true) then
      print(Integer(1))
    else
      print(Integer(2))
    end
    while Boolean(false) loop
      print(Integer(3))
    end
    return; print(Integer(4))
  end
end`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	before := countNodes(prog)

	optimized, _ := optimize(t, src)
	after := countNodes(optimized)
	assert.LessOrEqual(t, after, before)
}

func countNodes(prog *ast.Program) int {
	n := 0
	for _, cls := range prog.Classes {
		n += len(cls.Members)
		for _, member := range cls.Members {
			switch m := member.(type) {
			case *ast.ConstructorDecl:
				n += countBlock(m.Body)
			case *ast.MethodDecl:
				n += countBlock(m.Body)
			}
		}
	}
	return n
}

func countBlock(block *ast.Block) int {
	if block == nil {
		return 0
	}
	n := len(block.Body)
	for _, stmt := range block.Body {
		switch s := stmt.(type) {
		case *ast.While:
			n += countBlock(s.Body)
		case *ast.If:
			n += countBlock(s.Then) + countBlock(s.Else)
		}
	}
	return n
}
