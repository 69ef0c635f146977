package cli

import (
	"fmt"
	"io"
)

// Icons prefix each line when emoji output is enabled.
const (
	iconSuccess    = "✅"
	iconInfo       = "🔍"
	iconKey        = "🔑"
	iconCycle      = "🔄"
	iconProduction = "🏭"
	iconWarn       = "⚠️"
	iconError      = "❌"
)

// Printer writes human-oriented command output. Informational lines go to
// out and are dropped in quiet mode; warnings and errors go to err and are
// always written.
type Printer struct {
	out   io.Writer
	err   io.Writer
	emoji bool
	quiet bool
}

// NewPrinter creates a printer over out and err.
func NewPrinter(out, err io.Writer, emoji, quiet bool) *Printer {
	return &Printer{out: out, err: err, emoji: emoji, quiet: quiet}
}

// Informational lines, suppressed in quiet mode.
func (p *Printer) Success(format string, args ...interface{}) { p.info(iconSuccess, format, args...) }
func (p *Printer) Info(format string, args ...interface{})    { p.info(iconInfo, format, args...) }
func (p *Printer) Key(format string, args ...interface{})     { p.info(iconKey, format, args...) }
func (p *Printer) Cycle(format string, args ...interface{})   { p.info(iconCycle, format, args...) }

func (p *Printer) Production(format string, args ...interface{}) {
	p.info(iconProduction, format, args...)
}

func (p *Printer) Warn(format string, args ...interface{}) {
	p.write(p.err, iconWarn, fmt.Sprintf(format, args...))
}

func (p *Printer) Error(format string, args ...interface{}) {
	p.write(p.err, iconError, fmt.Sprintf(format, args...))
}

// Bullet prints an indented list item under the previous line.
func (p *Printer) Bullet(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	marker := "-"
	if p.emoji {
		marker = "•"
	}
	fmt.Fprintf(p.out, "   %s %s\n", marker, fmt.Sprintf(format, args...))
}

func (p *Printer) info(icon, format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.write(p.out, icon, fmt.Sprintf(format, args...))
}

func (p *Printer) write(w io.Writer, icon, msg string) {
	if p.emoji {
		fmt.Fprintf(w, "%s %s\n", icon, msg)
		return
	}
	fmt.Fprintln(w, msg)
}
