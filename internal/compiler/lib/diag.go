package lib

import (
	"fmt"
	"io"
)

// Diagnostic printing helpers shared by the driver and the CLI. One symbol
// per severity: informational, success, warning, error.

func Infof(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}

func Successf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

func Warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func Errorf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}
