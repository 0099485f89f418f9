package compiler

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedProgram = `
class C is
  this() is end
  method main() is
    print(Integer(2).Plus(Integer(3)))
  end
end`

func TestCompileSuccess(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out

	res, err := Compile(seedProgram, opts)
	require.NoError(t, err)
	require.NotNil(t, res.Module)

	text := res.Module.Dump()
	assert.Contains(t, text, ".entry $Entry::Main")
	assert.Contains(t, text, "add")
	assert.Contains(t, text, "print.i8")
}

func TestCompileSyntaxErrorAborts(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out

	_, err := Compile("class is end", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Syntax Error")
	assert.Contains(t, out.String(), "✗")
}

func TestCompileSemanticErrorAborts(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out

	_, err := Compile(`
class M is
  method f(): Integer is
    return
  end
end`, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Semantic Error")
}

func TestCompileOptimizeLog(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out

	res, err := Compile(`
class M is
  method main() is
    if Boolean(true) then print(Integer(1)) else print(Integer(2)) end
  end
end`, opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.RewriteLog)
	assert.Contains(t, strings.Join(res.RewriteLog, "\n"), "if(true)")
	assert.Contains(t, out.String(), "ℹ")
}

func TestCompileNoOptimizeKeepsField(t *testing.T) {
	src := `
class M is
  var z : Integer
  method main() is
    return
  end
end`
	var out bytes.Buffer

	opts := DefaultOptions()
	opts.Out = &out
	res, err := Compile(src, opts)
	require.NoError(t, err)
	assert.NotContains(t, res.Module.Dump(), ".field int64 z")

	opts.Optimize = false
	res, err = Compile(src, opts)
	require.NoError(t, err)
	assert.Contains(t, res.Module.Dump(), ".field int64 z")
}

func TestCompileStartClass(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out
	opts.StartClass = "B"

	res, err := Compile(`
class A is
  method main() is print(Integer(1)) end
end
class B is
  method main() is print(Integer(2)) end
end`, opts)
	require.NoError(t, err)
	assert.Contains(t, res.Module.Dump(), "newobj B::.ctor/0")
}

func TestCompileAndWriteText(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "prog.o")
	require.NoError(t, os.WriteFile(srcPath, []byte(seedProgram), 0o644))

	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out

	outPath, err := CompileAndWrite(srcPath, "", opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prog.il"), outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), ".module prog")
	assert.Contains(t, out.String(), "✓")
}

func TestCompileAndWriteBinary(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "prog.o")
	require.NoError(t, os.WriteFile(srcPath, []byte(seedProgram), 0o644))

	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out
	opts.Binary = true

	outPath, err := CompileAndWrite(srcPath, "", opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prog.ilmod"), outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "OILM"))
}

func TestCompileWarningsSurface(t *testing.T) {
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out

	res, err := Compile(`
class M is
  method main() is
    var u : Integer(1)
    print(Integer(2))
  end
end`, opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, out.String(), "⚠")
}
