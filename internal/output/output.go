// Package output renders CLI results as styled text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"gopkg.in/yaml.v3"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/optimistic"
)

var (
	// Styles
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle  = lipgloss.NewStyle().Faint(true)
	deletingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Faint(true)
)

// Format selects how results are written. It implements pflag.Value so it
// can back the --output flag directly.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// String returns the format name.
func (f *Format) String() string {
	if *f == "" {
		return string(FormatText)
	}
	return string(*f)
}

// Set parses a format name.
func (f *Format) Set(s string) error {
	switch Format(strings.ToLower(s)) {
	case FormatText, FormatJSON, FormatYAML:
		*f = Format(strings.ToLower(s))
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Type names the flag value in help output.
func (f *Format) Type() string { return "format" }

// Success prints a success message
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Render writes v in format f. text produces the human-readable form and is
// only called for FormatText.
func Render(w io.Writer, f Format, v any, text func() string) error {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, text())
		return err
	}
}

// ErrorPayload is the structured form of a CLI error.
type ErrorPayload struct {
	Code    string              `json:"code" yaml:"code"`
	Message string              `json:"message" yaml:"message"`
	Issues  map[string][]string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// RenderError writes an error in format f. Text output goes through Error,
// with one line per field issue.
func RenderError(w io.Writer, f Format, e ErrorPayload) error {
	if f == FormatText {
		Error(w, "%s", e.Message)
		for _, field := range slices.Sorted(maps.Keys(e.Issues)) {
			for _, msg := range e.Issues[field] {
				fmt.Fprintf(w, "  %s: %s\n", field, msg)
			}
		}
		return nil
	}
	return Render(w, f, map[string]ErrorPayload{"error": e}, nil)
}

// RowStyle returns the style for a list row: faint while a create or update
// is pending and red while a delete is pending.
func RowStyle(id string) lipgloss.Style {
	switch id {
	case optimistic.SentinelOptimistic:
		return pendingStyle
	case optimistic.SentinelDelete:
		return deletingStyle
	default:
		return lipgloss.NewStyle()
	}
}

// maxCellWidth caps a table column; longer cells are truncated.
const maxCellWidth = 40

// AlignRows pads cells into columns separated by two spaces, truncating
// cells wider than maxCellWidth. Trailing spaces are trimmed.
func AlignRows(rows [][]string) []string {
	var widths []int
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(row))
		for i, c := range row {
			c = ansi.Truncate(c, maxCellWidth, "…")
			cells[r][i] = c
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := ansi.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, len(cells))
	for r, row := range cells {
		var sb strings.Builder
		for i, c := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(c)
			sb.WriteString(strings.Repeat(" ", widths[i]-ansi.StringWidth(c)))
		}
		lines[r] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}

// table renders a header and rows. The first cell of each row is the
// entity id and selects the row style.
func table(header []string, rows [][]string) string {
	lines := AlignRows(append([][]string{header}, rows...))
	for i := range lines {
		if i == 0 {
			lines[i] = titleStyle.Render(lines[i])
		} else {
			lines[i] = RowStyle(rows[i-1][0]).Render(lines[i])
		}
	}
	return strings.Join(lines, "\n")
}

// AuthorsTable formats authors as an aligned table.
func AuthorsTable(authors []models.Author) string {
	if len(authors) == 0 {
		return subtleStyle.Render("No authors.")
	}
	rows := make([][]string, len(authors))
	for i, a := range authors {
		rows[i] = []string{a.ID, a.Name, a.Location}
	}
	return table([]string{"ID", "NAME", "LOCATION"}, rows)
}

// BooksTable formats books as an aligned table. Books without a joined
// author show the author id.
func BooksTable(books []models.CompleteBook) string {
	if len(books) == 0 {
		return subtleStyle.Render("No books.")
	}
	rows := make([][]string, len(books))
	for i, b := range books {
		author := b.AuthorName()
		if author == "" {
			author = b.AuthorID
		}
		rows[i] = []string{b.ID, b.Title, author}
	}
	return table([]string{"ID", "TITLE", "AUTHOR"}, rows)
}

// UserLine formats the signed-in user.
func UserLine(u models.User) string {
	line := fmt.Sprintf("%s %s", titleStyle.Render(u.Username), subtleStyle.Render("("+u.ID+")"))
	if u.Name != "" {
		line += " " + u.Name
	}
	if u.Email != "" {
		line += " <" + u.Email + ">"
	}
	return line
}
