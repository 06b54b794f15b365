// Package ui renders previews and asks for confirmation on the terminal.
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// ErrAborted is returned when the user declines a prompt.
var ErrAborted = errors.New("aborted")

var (
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Printer writes user-facing output, colored when the target is a terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter returns a Printer for out. Color is enabled when out is a
// terminal and NO_COLOR is unset.
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok && IsTerminal(f) && os.Getenv("NO_COLOR") == "" {
		color = true
	}
	return &Printer{out: out, color: color}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Printf writes formatted text.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Println writes a line.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Diff writes every preview line and returns how many were written.
func (p *Printer) Diff(lines iter.Seq[string]) int {
	n := 0
	for line := range lines {
		_, _ = fmt.Fprintln(p.out, p.diffLine(line))
		n++
	}
	return n
}

func (p *Printer) diffLine(line string) string {
	if !p.color {
		return line
	}
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return headerStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return hunkStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return addStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return removeStyle.Render(line)
	}
	return line
}

// Table writes rows under headers with aligned columns.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		Rows(rows...)
	if p.color {
		t = t.StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})
	}
	_, _ = fmt.Fprintln(p.out, t.Render())
}

// Confirm asks a yes/no question. On a terminal it uses an interactive
// prompt; otherwise it reads a "y" or "n" answer line from in.
func Confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if f, ok := in.(*os.File); ok && IsTerminal(f) {
		var confirmed bool
		err := huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed).
			Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, ErrAborted
			}
			return false, err
		}
		return confirmed, nil
	}
	return confirmPlain(in, out, question)
}

func confirmPlain(in io.Reader, out io.Writer, question string) (bool, error) {
	reader := bufio.NewReader(in)
	for {
		_, _ = fmt.Fprintf(out, "%s (y/n) ", question)
		answer, err := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, ErrAborted
			}
			return false, err
		}
	}
}
