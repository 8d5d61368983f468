// Package output renders command results for terminals, markdown consumers
// and machines.
//
// ModeAuto resolves to ModeText on a TTY and ModeMarkdown otherwise, so piping
// a command into a file or an agent yields plain markdown without ANSI codes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how output is rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode validates a mode name. Empty selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON:
		return m, nil
	case "md":
		return ModeMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected auto, text, markdown or json)", s)
	}
}

// Renderer writes styled output to stdout and diagnostics to stderr.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lr),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// EffectiveMode resolves ModeAuto against the TTY state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether stdout is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the stdout writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the stderr writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Styles returns the styles bound to this renderer.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to stdout.
func (r *Renderer) Println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// Printf writes formatted text to stdout.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Header writes a header of the given level.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() != ModeText {
		r.Println(FormatHeader(level, text))
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(text))
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() != ModeText {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Println(r.styles.Bold.Render(key+":") + " " + value)
}

// Muted writes secondary text.
func (r *Renderer) Muted(text string) {
	r.Println(r.styles.Muted.Render(text))
}

// Success writes a success line.
func (r *Renderer) Success(text string) {
	r.Println(r.styles.Success.Render(r.symbol("✓", "OK") + " " + text))
}

// Warning writes a warning line to stderr.
func (r *Renderer) Warning(text string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render(r.symbol("!", "WARN")+" "+text))
}

// Error writes an error line to stderr.
func (r *Renderer) Error(text string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render(r.symbol("✗", "ERROR")+" "+text))
}

func (r *Renderer) symbol(tty, plain string) string {
	if r.EffectiveMode() == ModeText {
		return tty
	}
	return plain
}

// JSON writes v as indented JSON to stdout.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
