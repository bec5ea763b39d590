package extract

import (
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise creates a config directory under the user's home on first use.
	api.DisableConfigDir()
}

// LayoutStrategy places glyphs by their text-space position, keeping the visual line structure of each page.
type LayoutStrategy struct{}

func (LayoutStrategy) Name() string { return "layout" }

func (LayoutStrategy) Open(r io.ReaderAt, size int64) (Document, error) {
	return openPDF(r, size, layoutText)
}

// PlainStrategy reads the raw text stream of each page.
type PlainStrategy struct{}

func (PlainStrategy) Name() string { return "plain" }

func (PlainStrategy) Open(r io.ReaderAt, size int64) (Document, error) {
	return openPDF(r, size, func(p pdf.Page) (string, error) { return p.GetPlainText(nil) })
}

type pdfDocument struct {
	r    *pdf.Reader
	text func(pdf.Page) (string, error)
}

func openPDF(r io.ReaderAt, size int64, text func(pdf.Page) (string, error)) (Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return &pdfDocument{r: reader, text: text}, nil
}

func (d *pdfDocument) NumPage() int { return d.r.NumPage() }

func (d *pdfDocument) PageText(n int) (string, error) {
	page := d.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return d.text(page)
}

// layoutText rebuilds lines from glyph positions. Glyphs share a line when their
// baselines are within half a font size; lines run top to bottom, glyphs left to right.
func layoutText(p pdf.Page) (string, error) {
	glyphs := p.Content().Text
	if len(glyphs) == 0 {
		return "", nil
	}

	type line struct {
		y      float64
		glyphs []pdf.Text
	}
	var lines []*line
	for _, g := range glyphs {
		tol := max(g.FontSize/2, 1)
		var into *line
		for i := len(lines) - 1; i >= 0; i-- {
			if math.Abs(lines[i].y-g.Y) <= tol {
				into = lines[i]
				break
			}
		}
		if into == nil {
			into = &line{y: g.Y}
			lines = append(lines, into)
		}
		into.glyphs = append(into.glyphs, g)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		sort.SliceStable(l.glyphs, func(i, j int) bool { return l.glyphs[i].X < l.glyphs[j].X })
		var sb strings.Builder
		for i, g := range l.glyphs {
			if i > 0 {
				prev := l.glyphs[i-1]
				// fonts without width tables report zero widths, so gaps are unknown
				if prev.W > 0 && g.X-(prev.X+prev.W) > g.FontSize*0.2 &&
					!isSpace(prev.S) && !isSpace(g.S) {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(g.S)
		}
		if text := strings.Join(strings.Fields(sb.String()), " "); text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n"), nil
}

func isSpace(s string) bool { return strings.TrimSpace(s) == "" }

// CountPages returns the page count reported by pdfcpu in relaxed validation mode.
func CountPages(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(rs, conf)
}
