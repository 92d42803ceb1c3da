// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package progressmon

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ConsoleSink renders the progress line to a terminal, overwriting the
// previous line with a carriage return when attached to a real tty, or
// printing one line per tick otherwise (e.g. when redirected to a log
// file), grounded on the teacher's StatusProgressIndicator line-clearing
// convention.
type ConsoleSink struct {
	out        io.Writer
	isTTY      bool
	lastLength int
}

// NewConsoleSink creates a ConsoleSink writing to out. If out is an
// *os.File attached to a terminal, output overwrites in place.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return &ConsoleSink{out: out, isTTY: tty}
}

// Render implements Sink.
func (s *ConsoleSink) Render(line string) {
	styled := color.New(color.FgCyan).Sprint(line)
	if s.isTTY {
		fmt.Fprintf(s.out, "\r%-*s", s.lastLength, "")
		fmt.Fprintf(s.out, "\r%s", styled)
		s.lastLength = len(line)
		return
	}
	fmt.Fprintln(s.out, styled)
}

// Close implements Sink, clearing the current line on a tty.
func (s *ConsoleSink) Close() {
	if s.isTTY && s.lastLength > 0 {
		fmt.Fprintf(s.out, "\r%-*s\r", s.lastLength, "")
	}
}
