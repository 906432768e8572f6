package loader

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLoader renders each text row of each page, marking bold runs.
type PDFLoader struct{}

func (l *PDFLoader) SupportedFormats() []string { return []string{"pdf"} }

func (l *PDFLoader) Load(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		for _, row := range rows {
			line := renderRow(row.Content)
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// run is a stretch of consecutive text with the same weight.
type run struct {
	bold bool
	text strings.Builder
}

// numberedRe splits "3. Title" inside a bold run.
var numberedRe = regexp.MustCompile(`^(\d+\.)\s+(.+)$`)

// renderRow joins the text fragments of one row. Bold fragments are wrapped
// in ** and a leading "N." in a bold run gets its own marker, giving
// "**N.** **Title**".
func renderRow(texts []pdf.Text) string {
	var runs []*run
	var prev *pdf.Text
	for i := range texts {
		t := &texts[i]
		if t.S == "" {
			continue
		}
		bold := isBoldFont(t.Font)
		if len(runs) == 0 || runs[len(runs)-1].bold != bold {
			runs = append(runs, &run{bold: bold})
		}
		cur := runs[len(runs)-1]
		if prev != nil && gapBetween(prev, t) && !strings.HasPrefix(t.S, " ") {
			cur.text.WriteByte(' ')
		}
		cur.text.WriteString(t.S)
		prev = t
	}

	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		s := collapseSpaces(r.text.String())
		if s == "" {
			continue
		}
		if !r.bold {
			parts = append(parts, s)
			continue
		}
		if m := numberedRe.FindStringSubmatch(s); m != nil {
			parts = append(parts, "**"+m[1]+"** **"+m[2]+"**")
			continue
		}
		parts = append(parts, "**"+s+"**")
	}
	return strings.Join(parts, " ")
}

// gapBetween reports whether there is visible horizontal space between two
// fragments on the same row.
func gapBetween(prev, next *pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") {
		return false
	}
	size := prev.FontSize
	if size <= 0 {
		size = 10
	}
	return next.X-(prev.X+prev.W) > size*0.15
}

func isBoldFont(font string) bool {
	f := strings.ToLower(font)
	return strings.Contains(f, "bold") || strings.Contains(f, "black") || strings.Contains(f, "heavy")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
