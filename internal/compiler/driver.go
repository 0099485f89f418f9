package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pepegx/olang/internal/compiler/emitter"
	"github.com/pepegx/olang/internal/compiler/il"
	"github.com/pepegx/olang/internal/compiler/lib"
	"github.com/pepegx/olang/internal/compiler/parser"
	"github.com/pepegx/olang/internal/compiler/semantics"
)

// Options configure one compile. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	Optimize   bool   // run the rewrite pass after a clean check pass
	Binary     bool   // encode the binary module instead of text assembly
	StartClass string // entry class; "" means first declared
	ModuleName string

	Out io.Writer // diagnostics sink
}

func DefaultOptions() Options {
	return Options{Optimize: true, Out: os.Stdout}
}

// Result is a successful compile: the finalised module plus everything
// worth reporting about how it was produced.
type Result struct {
	Module     *il.ModuleBuilder
	Warnings   []string
	RewriteLog []string
}

// Compile runs the one-shot pipeline over raw source text: tokens, AST,
// validated and rewritten AST, emitted module. Within a single compile
// there is no partial success; any diagnostic aborts with an error after
// printing it.
func Compile(src string, opts Options) (*Result, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.ModuleName == "" {
		opts.ModuleName = "main"
	}

	prog, err := parser.Parse(src)
	if err != nil {
		lib.Errorf(out, "%v", err)
		return nil, err
	}

	analyzer := semantics.NewAnalyzer()
	ix := analyzer.Analyze(prog)
	for _, w := range analyzer.Warnings() {
		lib.Warnf(out, "%s", w)
	}
	if errs := analyzer.Errors(); len(errs) > 0 {
		for _, msg := range errs {
			lib.Errorf(out, "%s", msg)
		}
		return nil, errors.New(errs[0])
	}

	result := &Result{Warnings: analyzer.Warnings()}

	if opts.Optimize {
		opt := semantics.NewOptimizer()
		result.RewriteLog = opt.Optimize(prog)
		for _, line := range result.RewriteLog {
			lib.Infof(out, "optimizer: %s", line)
		}
		// The rewrite pass dropped members; the emitter needs the index
		// rebuilt over the surviving AST.
		ix = semantics.BuildIndex(prog)
	}

	em := emitter.NewEmitter(ix, opts.ModuleName, opts.StartClass)
	mod := em.Emit()
	for _, w := range em.Warnings() {
		lib.Warnf(out, "%s", w)
	}
	if errs := em.Errors(); len(errs) > 0 {
		for _, msg := range errs {
			lib.Errorf(out, "%s", msg)
		}
		return nil, errors.New(errs[0])
	}

	result.Module = mod
	return result, nil
}

// CompileAndWrite compiles a source file and writes the module next to it
// (or at outPath when given), returning the output path.
func CompileAndWrite(srcPath, outPath string, opts Options) (string, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	content, err := os.ReadFile(srcPath)
	if err != nil {
		lib.Errorf(out, "reading %s: %v", srcPath, err)
		return "", err
	}

	if opts.ModuleName == "" {
		opts.ModuleName = moduleName(srcPath)
	}
	res, err := Compile(string(content), opts)
	if err != nil {
		return "", err
	}

	if outPath == "" {
		outPath = defaultOutPath(srcPath, opts.Binary)
	}

	var data []byte
	if opts.Binary {
		data, err = res.Module.Encode()
		if err != nil {
			lib.Errorf(out, "encoding module: %v", err)
			return "", err
		}
	} else {
		data = []byte(res.Module.Dump())
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		lib.Errorf(out, "writing %s: %v", outPath, err)
		return "", err
	}
	lib.Successf(out, "wrote module to %s", outPath)
	return outPath, nil
}

func moduleName(srcPath string) string {
	base := filepath.Base(srcPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func defaultOutPath(srcPath string, binary bool) string {
	ext := ".il"
	if binary {
		ext = ".ilmod"
	}
	base := strings.TrimSuffix(srcPath, filepath.Ext(srcPath))
	return fmt.Sprintf("%s%s", base, ext)
}
