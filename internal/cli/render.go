package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report rendering constants.
const (
	boxWidth         = 64
	boxTitlePadding  = 4
	tabPadding       = 2
	warningSymbol    = "!"
	plainTitleMarker = "="
)

// boxBorderColor returns the Lip Gloss color used for report box borders.
func boxBorderColor() lipgloss.Color { return lipgloss.Color("240") }

// boxTitleColor returns the Lip Gloss color used for report box titles.
func boxTitleColor() lipgloss.Color { return lipgloss.Color("39") }

// colorWarning returns the Lip Gloss color used for degradation warnings.
func colorWarning() lipgloss.Color { return lipgloss.Color("214") }

// report is a titled block of key/value facts, an optional table and warnings.
type report struct {
	title    string
	facts    [][2]string
	header   []string
	rows     [][]string
	warnings []string
}

// render writes the report as a styled box on terminals and as plain text otherwise.
func (r report) render(w io.Writer) error {
	if isWriterTerminal(w) {
		return r.renderStyled(w)
	}
	return r.renderPlain(w)
}

func (r report) renderPlain(w io.Writer) error {
	var b strings.Builder
	b.WriteString(r.title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat(plainTitleMarker, len(r.title)))
	b.WriteString("\n")
	r.writeBody(&b, func(s string) string { return s })
	for _, warn := range r.warnings {
		fmt.Fprintf(&b, "Warning: %s\n", warn)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r report) renderStyled(w io.Writer) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(boxTitleColor())
	headerStyle := lipgloss.NewStyle().Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(colorWarning())
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(boxBorderColor()).
		Padding(0, 1).
		Width(boxWidth)

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(r.title)))
	content.WriteString("\n")
	content.WriteString(strings.Repeat("═", boxWidth-boxTitlePadding))
	content.WriteString("\n")
	r.writeBody(&content, func(s string) string { return headerStyle.Render(s) })
	if len(r.warnings) > 0 {
		content.WriteString("\n")
		for _, warn := range r.warnings {
			content.WriteString(warnStyle.Render(fmt.Sprintf("%s %s", warningSymbol, warn)))
			content.WriteString("\n")
		}
	}

	box := borderStyle.Render(strings.TrimRight(content.String(), "\n"))
	_, err := fmt.Fprintln(w, box)
	return err
}

// writeBody writes the facts, aligned with tabwriter, and the table. Table
// columns are measured on unstyled text and padded outside the styling so
// escape sequences do not count toward column widths.
func (r report) writeBody(b *strings.Builder, header func(string) string) {
	tw := tabwriter.NewWriter(b, 0, 0, tabPadding, ' ', 0)
	for _, f := range r.facts {
		fmt.Fprintf(tw, "%s:\t%s\n", f[0], f[1])
	}
	_ = tw.Flush()

	if len(r.header) == 0 {
		return
	}
	if len(r.facts) > 0 {
		b.WriteString("\n")
	}

	widths := make([]int, len(r.header))
	for i, h := range r.header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range r.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	writeRow := func(cells []string, style func(string) string) {
		for i, cell := range cells {
			b.WriteString(style(cell))
			if i < len(cells)-1 && i < len(widths) {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+tabPadding))
			}
		}
		b.WriteString("\n")
	}
	writeRow(r.header, header)
	for _, row := range r.rows {
		writeRow(row, func(s string) string { return s })
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// formatPrice formats a price per ton with thousands separators.
func formatPrice(p *message.Printer, v float64) string {
	return p.Sprintf("%.2f", v)
}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
