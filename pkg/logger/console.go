package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Console prints user-facing CLI output, separate from the structured log
type Console struct {
	out     io.Writer
	errOut  io.Writer
	noColor bool
}

// NewConsole creates a console on stdout/stderr
func NewConsole() *Console {
	return &Console{out: os.Stdout, errOut: os.Stderr}
}

// NewConsoleWithOutput creates an uncolored console writing everything to w
func NewConsoleWithOutput(w io.Writer) *Console {
	return &Console{out: w, errOut: w, noColor: true}
}

// NewConsoleWithWriters creates a console with separate output streams
func NewConsoleWithWriters(out, errOut io.Writer, noColor bool) *Console {
	return &Console{out: out, errOut: errOut, noColor: noColor}
}

func (c *Console) paint(attr color.Attribute, s string) string {
	col := color.New(attr)
	if c.noColor {
		col.DisableColor()
	}
	return col.Sprint(s)
}

// Log prints a message as ">> message" surrounded by blank lines
func (c *Console) Log(message string) {
	fmt.Fprintf(c.out, "\n%s %s\n\n", c.paint(color.FgCyan, ">>"), message)
}

// Info prints info message
func (c *Console) Info(message string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(color.FgCyan, "[pharpub]"), message)
}

// Error prints error message
func (c *Console) Error(message string) {
	fmt.Fprintf(c.errOut, "%s %s\n", c.paint(color.FgRed, "[pharpub]"), message)
}

// Warn prints warning message
func (c *Console) Warn(message string) {
	fmt.Fprintf(c.out, "%s %s\n", c.paint(color.FgYellow, "[pharpub]"), message)
}

// Success prints success message
func (c *Console) Success(message string) {
	fmt.Fprintf(c.out, "%s ✅ %s\n", c.paint(color.FgGreen, "[pharpub]"), message)
}
