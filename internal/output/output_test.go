package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/shelf/internal/models"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func fixtureAuthors() []models.Author {
	return []models.Author{
		{ID: "a_1", Name: "Ursula K. Le Guin", Location: "Portland", UserID: "u_1"},
		{ID: "a_2", Name: "Octavia Butler", UserID: "u_1"},
	}
}

func fixtureBooks() []models.CompleteBook {
	authors := fixtureAuthors()
	return []models.CompleteBook{
		{Book: models.Book{ID: "b_1", Title: "The Dispossessed", AuthorID: "a_1", UserID: "u_1"}, Author: &authors[0]},
		{Book: models.Book{ID: "optimistic", Title: "Kindred", AuthorID: "a_2", UserID: "u_1"}},
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderGolden(t *testing.T) {
	authors := fixtureAuthors()
	books := fixtureBooks()

	tests := []struct {
		name   string
		format Format
		v      any
		text   func() string
	}{
		{"authors_text", FormatText, authors, func() string { return AuthorsTable(authors) }},
		{"books_text", FormatText, books, func() string { return BooksTable(books) }},
		{"authors_json", FormatJSON, authors, nil},
		{"books_yaml", FormatYAML, books, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, tt.format, tt.v, tt.text))
			newGoldie(t).Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestEmptyTables(t *testing.T) {
	assert.Equal(t, "No authors.", AuthorsTable(nil))
	assert.Equal(t, "No books.", BooksTable(nil))
}

func TestTableTruncatesLongCells(t *testing.T) {
	long := strings.Repeat("x", 60)
	out := AuthorsTable([]models.Author{{ID: "a_1", Name: long}})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[1], long)
	assert.Contains(t, lines[1], "…")
}

func TestFormatFlagValue(t *testing.T) {
	var f Format
	assert.Equal(t, "text", f.String())
	assert.Equal(t, "format", f.Type())

	require.NoError(t, f.Set("YAML"))
	assert.Equal(t, FormatYAML, f)

	err := f.Set("xml")
	assert.ErrorContains(t, err, "unknown output format")
	assert.Equal(t, FormatYAML, f, "failed Set leaves the value unchanged")
}

func TestRenderErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	err := RenderError(&buf, FormatJSON, ErrorPayload{
		Code:    "validation",
		Message: "invalid input",
		Issues:  map[string][]string{"name": {"String must contain at least 5 character(s)"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"validation","message":"invalid input","issues":{"name":["String must contain at least 5 character(s)"]}}}`, buf.String())
}

func TestRenderErrorText(t *testing.T) {
	var buf bytes.Buffer
	err := RenderError(&buf, FormatText, ErrorPayload{
		Code:    "validation",
		Message: "invalid input",
		Issues: map[string][]string{
			"title":    {"Required"},
			"authorId": {"Required"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ERROR: invalid input\n  authorId: Required\n  title: Required\n", buf.String())
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Shelf\n\nTrack **authors** and books.", 40, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Shelf")
	assert.Contains(t, out, "authors")

	empty, err := RenderMarkdown("   ", 40, "notty")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTerminalWidthFallsBackToColumns(t *testing.T) {
	if IsTerminal() {
		t.Skip("stdout is a terminal")
	}
	t.Setenv("COLUMNS", "123")
	assert.Equal(t, 123, TerminalWidth(80))
	t.Setenv("COLUMNS", "")
	assert.Equal(t, 80, TerminalWidth(80))
}
