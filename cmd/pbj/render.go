package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"pbjrag/internal/orchestrator"
)

const renderWidth = 100

var sectionStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("63")).
	Padding(0, 1)

// renderReport renders the Markdown report with glamour. The style follows
// the terminal background and falls back to plain text off a TTY.
func renderReport(w io.Writer, r *orchestrator.Report) error {
	var md strings.Builder
	if err := r.WriteMarkdown(&md); err != nil {
		return err
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// section boxes a titled list of lines.
func section(title string, lines []string) string {
	body := header("%s", title) + "\n" + strings.Join(lines, "\n")
	return sectionStyle.Render(body)
}
