package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pepegx/olang/internal/compiler"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// repl: accumulate O source lines, compile on a blank line, show the
// emitted assembly. Diagnostics never exit the loop.
var ReplCmd = &cobra.Command{
	Use:   "repl",
	Short: "Compile snippets interactively and inspect the emitted assembly",
	Args:  cobra.NoArgs,
	RunE:  replRun,
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".oc_history")
}

func replRun(cmd *cobra.Command, args []string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if path := replHistoryPath(); path != "" {
		if f, err := os.Open(path); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(path); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Println("oc repl — enter class declarations, blank line compiles, ctrl-d exits")

	var buf []string
	for {
		prompt := "o> "
		if len(buf) > 0 {
			prompt = ".. "
		}
		input, err := line.Prompt(prompt)
		if err != nil { // io.EOF or liner.ErrPromptAborted
			fmt.Println()
			return nil
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
			buf = append(buf, input)
			continue
		}
		if len(buf) == 0 {
			continue
		}

		src := strings.Join(buf, "\n")
		buf = buf[:0]

		opts := compiler.DefaultOptions()
		opts.ModuleName = "repl"
		res, err := compiler.Compile(src, opts)
		if err != nil {
			continue // the diagnostic is already printed
		}
		fmt.Println(res.Module.Dump())
	}
}
