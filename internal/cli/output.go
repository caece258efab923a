package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Echo colours. fatih/color disables them when NO_COLOR is set or the
// output is not a terminal.
var (
	progressColor  = color.New(color.FgYellow)
	successColor   = color.New(color.FgGreen)
	errorColor     = color.New(color.FgRed)
	highlightColor = color.New(color.FgCyan)
)

func progressEcho(w io.Writer, format string, args ...any) {
	_, _ = progressColor.Fprintf(w, format+"\n", args...)
}

func successEcho(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprintf(w, format+"\n", args...)
}

func errorEcho(w io.Writer, format string, args ...any) {
	_, _ = errorColor.Fprintf(w, format+"\n", args...)
}

// highlight returns s in the highlight colour for embedding in a line.
func highlight(s string) string {
	return highlightColor.Sprint(s)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
