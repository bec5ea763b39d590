package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalease/internal/extract/extracttest"
)

type fakeDoc struct {
	pages   []string
	fail    map[int]error
	panicOn map[int]bool
}

func (d *fakeDoc) NumPage() int { return len(d.pages) }

func (d *fakeDoc) PageText(n int) (string, error) {
	if d.panicOn[n] {
		panic("broken content stream")
	}
	if err := d.fail[n]; err != nil {
		return "", err
	}
	return d.pages[n-1], nil
}

type fakeStrategy struct {
	name  string
	doc   Document
	err   error
	calls int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Open(io.ReaderAt, int64) (Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func newFake(opts ...Option) *Extractor {
	return New(append([]Option{WithPageCounter(nil)}, opts...)...)
}

var anyPDF = []byte("%PDF-1.4 stub")

func TestExtract_MarksPagesInOrder(t *testing.T) {
	a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"First page text", "Second page text"}}}
	e := newFake(WithStrategies(a))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)

	assert.Equal(t, "--- Page 1 ---\nFirst page text\n\n--- Page 2 ---\nSecond page text\n", res.Text)
	assert.Equal(t, "a", res.Strategy)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 2, res.PagesProcessed)
	assert.False(t, res.Truncated)
}

func TestExtract_FallsBackWhenFirstStrategyYieldsTooLittle(t *testing.T) {
	a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"tiny"}}}
	b := &fakeStrategy{name: "b", doc: &fakeDoc{pages: []string{"Plenty of readable text"}}}
	e := newFake(WithStrategies(a, b))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Strategy)
	assert.Contains(t, res.Text, "Plenty of readable text")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestExtract_FirstSufficientStrategyWins(t *testing.T) {
	a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"Enough text here"}}}
	b := &fakeStrategy{name: "b", doc: &fakeDoc{pages: []string{"Other text entirely"}}}
	e := newFake(WithStrategies(a, b))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Strategy)
	assert.Zero(t, b.calls)
}

func TestExtract_SkipsFailingAndPanickingPages(t *testing.T) {
	doc := &fakeDoc{
		pages:   []string{"Page one content", "unused", "unused", "Page four content"},
		fail:    map[int]error{2: errors.New("bad xobject")},
		panicOn: map[int]bool{3: true},
	}
	e := newFake(WithStrategies(&fakeStrategy{name: "a", doc: doc}))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nPage one content\n\n--- Page 4 ---\nPage four content\n", res.Text)
	assert.Equal(t, 2, res.PagesProcessed)
	assert.Equal(t, 4, res.TotalPages)
}

func TestExtract_EmptyPagesGetNoMarker(t *testing.T) {
	doc := &fakeDoc{pages: []string{"", "  \n ", "Only this page has text"}}
	e := newFake(WithStrategies(&fakeStrategy{name: "a", doc: doc}))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, "--- Page 3 ---\nOnly this page has text\n", res.Text)
}

func TestExtract_CapsPages(t *testing.T) {
	doc := &fakeDoc{pages: extracttest.Pages(55)}
	e := newFake(WithStrategies(&fakeStrategy{name: "a", doc: doc}))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, 50, strings.Count(res.Text, "--- Page "))
	assert.Contains(t, res.Text, "--- Page 50 ---")
	assert.NotContains(t, res.Text, "--- Page 51 ---")
	assert.True(t, res.Truncated)
	assert.Equal(t, 55, res.TotalPages)
	assert.Equal(t, 50, res.PagesProcessed)
}

func TestExtract_CustomPageCap(t *testing.T) {
	doc := &fakeDoc{pages: extracttest.Pages(5)}
	e := newFake(WithStrategies(&fakeStrategy{name: "a", doc: doc}), WithMaxPages(2))

	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(res.Text, "--- Page "))
}

func TestExtract_ThresholdIgnoresMarkers(t *testing.T) {
	// nine characters of content across two pages, markers excluded
	doc := &fakeDoc{pages: []string{"abcd", "efghi"}}
	e := newFake(WithStrategies(&fakeStrategy{name: "a", doc: doc}))

	_, err := e.ExtractBytes(anyPDF)
	assert.ErrorIs(t, err, ErrNoText)

	doc.pages[1] = "efghij"
	res, err := e.ExtractBytes(anyPDF)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Strategy)
}

func TestExtract_NoStrategyCanOpen(t *testing.T) {
	a := &fakeStrategy{name: "a", err: errors.New("malformed xref")}
	b := &fakeStrategy{name: "b", err: errors.New("missing trailer")}
	e := newFake(WithStrategies(a, b))

	_, err := e.ExtractBytes(anyPDF)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.Contains(t, err.Error(), "missing trailer")
}

func TestExtract_ZeroPagesIsNoText(t *testing.T) {
	e := newFake(WithStrategies(&fakeStrategy{name: "a", doc: &fakeDoc{}}))

	_, err := e.ExtractBytes(anyPDF)
	assert.ErrorIs(t, err, ErrNoText)
	assert.NotEmpty(t, err.Error())
}

func TestExtract_EmptyInput(t *testing.T) {
	_, err := New().ExtractBytes(nil)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestExtract_InvalidBytes(t *testing.T) {
	_, err := New().ExtractBytes([]byte("this is not a pdf at all"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.NotEmpty(t, err.Error())
}

func TestExtractReader_RewindsSource(t *testing.T) {
	a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"Readable content"}}}
	e := newFake(WithStrategies(a))

	src := bytes.NewReader(anyPDF)
	_, err := src.Seek(5, io.SeekStart)
	require.NoError(t, err)

	_, err = e.ExtractReader(src)
	require.NoError(t, err)

	pos, err := src.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestExtractReader_NilSource(t *testing.T) {
	_, err := New().ExtractReader(nil)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestExtract_PageCounterPanicIsIgnored(t *testing.T) {
	a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"Readable content"}}}
	e := New(WithStrategies(a), WithPageCounter(func(io.ReadSeeker) (int, error) { panic("page tree") }))

	_, err := e.ExtractBytes(anyPDF)
	assert.NoError(t, err)
}

func TestExtract_PageCountCorrectsUnderReportingReader(t *testing.T) {
	counter := func(n int) PageCounter {
		return func(io.ReadSeeker) (int, error) { return n, nil }
	}

	t.Run("higher structural count wins", func(t *testing.T) {
		a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"Readable content"}}}
		res, err := New(WithStrategies(a), WithPageCounter(counter(999))).ExtractBytes(anyPDF)
		require.NoError(t, err)
		assert.Equal(t, 999, res.TotalPages)
		assert.Equal(t, 1, res.PagesProcessed)
		assert.True(t, res.Truncated)
	})

	t.Run("reader count kept when it is not lower", func(t *testing.T) {
		a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"Readable content", "More content"}}}
		res, err := New(WithStrategies(a), WithPageCounter(counter(1))).ExtractBytes(anyPDF)
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalPages)
		assert.False(t, res.Truncated)
	})

	t.Run("failed count is ignored", func(t *testing.T) {
		a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"Readable content"}}}
		failing := func(io.ReadSeeker) (int, error) { return 0, errors.New("bad xref") }
		res, err := New(WithStrategies(a), WithPageCounter(failing)).ExtractBytes(anyPDF)
		require.NoError(t, err)
		assert.Equal(t, 1, res.TotalPages)
		assert.False(t, res.Truncated)
	})

	t.Run("no text still reports the structural count", func(t *testing.T) {
		a := &fakeStrategy{name: "a", doc: &fakeDoc{pages: []string{"", ""}}}
		res, err := New(WithStrategies(a), WithPageCounter(counter(4))).ExtractBytes(anyPDF)
		assert.ErrorIs(t, err, ErrNoText)
		assert.Equal(t, 4, res.TotalPages)
	})
}

func TestExtract_RealPDF(t *testing.T) {
	data := extracttest.PDF("Rent: $1200 per month", "", "Tenant shall keep the premises clean")

	for _, s := range []Strategy{LayoutStrategy{}, PlainStrategy{}} {
		t.Run(s.Name(), func(t *testing.T) {
			res, err := New(WithStrategies(s)).ExtractBytes(data)
			require.NoError(t, err)
			assert.Contains(t, res.Text, "--- Page 1 ---\n")
			assert.Contains(t, res.Text, "Rent: $1200")
			assert.NotContains(t, res.Text, "--- Page 2 ---")
			assert.Contains(t, res.Text, "--- Page 3 ---\n")
			assert.Contains(t, res.Text, "premises clean")
			assert.Equal(t, 3, res.TotalPages)
		})
	}
}

func TestExtract_RealPDFKeepsLines(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = fmt.Sprintf("Clause %02d applies", i+1)
	}
	data := extracttest.PDF(strings.Join(lines, "\n"))

	res, err := New().ExtractBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "layout", res.Strategy)
	assert.Equal(t, "--- Page 1 ---\n"+strings.Join(lines, "\n")+"\n", res.Text)
}

func TestLayoutStrategy_RowsFollowPosition(t *testing.T) {
	data := extracttest.PDF("Landlord: Acme Ltd\nTenant: J. Smith\nRent: $1200")

	doc, err := LayoutStrategy{}.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	text, err := doc.PageText(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Landlord: Acme Ltd", "Tenant: J. Smith", "Rent: $1200"}, strings.Split(text, "\n"))
}

func TestExtract_RealPDFPageMarkersAscending(t *testing.T) {
	data := extracttest.PDF(extracttest.Pages(7)...)

	res, err := New().ExtractBytes(data)
	require.NoError(t, err)
	last := -1
	for i := 1; i <= 7; i++ {
		idx := strings.Index(res.Text, fmt.Sprintf("--- Page %d ---", i))
		require.Greater(t, idx, last, "page %d", i)
		last = idx
	}
}

func TestExtract_RealPDFOverCap(t *testing.T) {
	data := extracttest.PDF(extracttest.Pages(52)...)

	res, err := New().ExtractBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 50, strings.Count(res.Text, "--- Page "))
	assert.True(t, res.Truncated)
}

func TestExtract_ImageOnlyPDF(t *testing.T) {
	data := extracttest.PDF("", "")

	_, err := New().ExtractBytes(data)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestCountPages(t *testing.T) {
	n, err := CountPages(bytes.NewReader(extracttest.PDF("a", "b", "c")))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
