package cmd

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// useColor reports whether w is a terminal that should get ANSI colors.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// paint renders text with c when enabled.
func paint(enabled bool, c *color.Color, text string) string {
	if !enabled {
		return text
	}
	return c.Sprint(text)
}
