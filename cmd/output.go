package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kass/go-aqi-viz/internal/logging"
	"github.com/kass/go-aqi-viz/pkg/models"
)

// printer writes CLI output, styled only when the destination is a terminal
type printer struct {
	w      io.Writer
	styled bool
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	muted  lipgloss.Style
	r      *lipgloss.Renderer
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		styled: logging.IsTerminal(w),
		r:      r,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")),
		label:  r.NewStyle().Foreground(lipgloss.Color("#94A3B8")).Width(16),
		value:  r.NewStyle().Bold(true),
		muted:  r.NewStyle().Faint(true),
	}
}

func (p *printer) Title(s string) {
	if !p.styled {
		fmt.Fprintf(p.w, "\n%s\n%s\n", s, strings.Repeat("=", len(s)))
		return
	}
	fmt.Fprintf(p.w, "\n%s\n", p.title.Render(s))
}

func (p *printer) Field(label string, format string, args ...any) {
	v := fmt.Sprintf(format, args...)
	if !p.styled {
		fmt.Fprintf(p.w, "%-16s%s\n", label+":", v)
		return
	}
	fmt.Fprintf(p.w, "%s%s\n", p.label.Render(label), p.value.Render(v))
}

func (p *printer) Note(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if p.styled {
		s = p.muted.Render(s)
	}
	fmt.Fprintln(p.w, s)
}

// Swatch renders a colour sample followed by its hex code
func (p *printer) Swatch(c models.RGB) string {
	hex := fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	if !p.styled {
		return hex
	}
	return p.r.NewStyle().Background(lipgloss.Color(hex)).Render("    ") + " " + hex
}

func formatAQI(aqi *int) string {
	if aqi == nil {
		return "no reading"
	}
	return fmt.Sprintf("%d", *aqi)
}
