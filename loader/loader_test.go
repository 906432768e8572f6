package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryFormats(t *testing.T) {
	r := NewRegistry()
	for _, f := range []string{"pdf", "txt", "md", "markdown", "xlsx", "PDF"} {
		_, err := r.Get(f)
		assert.NoError(t, err, f)
	}
	_, err := r.Get("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadText(t *testing.T) {
	path := writeFile(t, "laws.md", "**1.** **Theft**\nTheft is punishable by hanging.\n")
	text, err := NewRegistry().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "**1.** **Theft**\nTheft is punishable by hanging.\n", text)
}

func TestLoadErrors(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	_, err := r.Load(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Load(ctx, writeFile(t, "laws.docx", "x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = r.Load(ctx, filepath.Join(t.TempDir(), "noext"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	dir := filepath.Join(t.TempDir(), "folder.txt")
	require.NoError(t, os.Mkdir(dir, 0o755))
	_, err = r.Load(ctx, dir)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorruptPDF(t *testing.T) {
	_, err := NewRegistry().Load(context.Background(), writeFile(t, "bad.pdf", "not a pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Section"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Rule"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "1.1."))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "Citizens may vote."))
	path := filepath.Join(t.TempDir(), "rules.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	text, err := NewRegistry().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "## Sheet1\n| Section | Rule |\n| 1.1. | Citizens may vote. |\n", text)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"newlines", "**1.** **Theft**\nTheft is bad.", "**1.** **Theft** Theft is bad."},
		{"tabs and controls", "a\tb\x00c\rd", "a bcd"},
		{"citations dropped", "Law text.Citations: [1] Old Book", "Law text."},
		{"first citations wins", "A Citations: B Citations: C", "A "},
		{"unicode kept", "Artículo 1 — vigencia", "Artículo 1 — vigencia"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestRenderRow(t *testing.T) {
	tests := []struct {
		name  string
		texts []pdf.Text
		want  string
	}{
		{
			name: "numbered bold header",
			texts: []pdf.Text{
				{Font: "Helvetica-Bold", FontSize: 12, X: 10, W: 12, S: "1."},
				{Font: "Helvetica-Bold", FontSize: 12, X: 26, W: 30, S: "Theft"},
				{Font: "Helvetica", FontSize: 12, X: 60, W: 40, S: "Theft is bad."},
			},
			want: "**1.** **Theft** Theft is bad.",
		},
		{
			name: "adjacent glyphs are not split",
			texts: []pdf.Text{
				{Font: "Times-Roman", FontSize: 10, X: 0, W: 5, S: "T"},
				{Font: "Times-Roman", FontSize: 10, X: 5, W: 5, S: "a"},
				{Font: "Times-Roman", FontSize: 10, X: 10, W: 5, S: "x"},
			},
			want: "Tax",
		},
		{
			name: "bold title without number",
			texts: []pdf.Text{
				{Font: "Arial-BoldMT", FontSize: 10, X: 0, W: 30, S: "Preamble"},
			},
			want: "**Preamble**",
		},
		{
			name: "whitespace only",
			texts: []pdf.Text{{Font: "Arial", S: "   "}, {Font: "Arial", S: ""}},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderRow(tt.texts))
		})
	}
}

func TestIsBoldFont(t *testing.T) {
	assert.True(t, isBoldFont("ABCDEF+Calibri-Bold"))
	assert.True(t, isBoldFont("Roboto-Black"))
	assert.False(t, isBoldFont("Helvetica"))
}
