package cmd

import (
	"github.com/spf13/cobra"
)

var outPath string

var rootCmd = &cobra.Command{
	Use:   "oc",
	Short: "oc — whole-program compiler for the O language",
	Long: `oc compiles O source programs onto a managed stack machine.

Commands:
  build  Compile a .o source file into a stack-machine module
  repl   Compile snippets interactively and inspect the emitted assembly
`,
	SilenceUsage: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outPath, "output", "o", "", "output path (default: input basename with module extension)")

	rootCmd.AddCommand(BuildCmd, ReplCmd)
}
