package cmd

import (
	"fmt"

	"github.com/pepegx/olang/internal/compiler"
	"github.com/spf13/cobra"
)

var (
	noOptimize bool
	compileNet bool
	startClass string
)

// build: compile .o -> stack-machine module
var BuildCmd = &cobra.Command{
	Use:   "build <source.o>",
	Short: "Compile an O source file into a stack-machine module",
	Args:  cobra.ExactArgs(1),
	RunE:  buildRun,
}

func init() {
	BuildCmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "skip the optimise pass")
	BuildCmd.Flags().BoolVar(&compileNet, "compile-net", false, "emit the binary module instead of text assembly")
	BuildCmd.Flags().StringVar(&startClass, "start", "", "entry class (default: first declared)")
}

func buildRun(cmd *cobra.Command, args []string) error {
	src := args[0]

	fmt.Printf("↪ building %q ...\n", src)

	opts := compiler.DefaultOptions()
	opts.Optimize = !noOptimize
	opts.Binary = compileNet
	opts.StartClass = startClass

	if _, err := compiler.CompileAndWrite(src, outPath, opts); err != nil {
		return err
	}
	return nil
}
