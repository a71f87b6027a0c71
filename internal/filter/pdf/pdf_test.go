package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/reader"
)

// buildPDF writes a minimal PDF with one page per entry; each page shows its
// lines top to bottom in Helvetica.
func buildPDF(pages ...[]string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, lines := range pages {
		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 72 720 Td ")
		for j, line := range lines {
			if j > 0 {
				content.WriteString("0 -20 Td ")
			}
			fmt.Fprintf(&content, "(%s) Tj ", line)
		}
		content.WriteString("ET")

		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i))
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}
	objects = append(objects, "<< /Title (Sample IFilter document) >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, len(objects), xref)
	return buf.Bytes()
}

func newRegistry() *filter.Registry {
	reg := filter.NewRegistry(nil)
	reg.Register(New, Extensions...)
	return reg
}

func TestPDFFilterReadsPagesInOrder(t *testing.T) {
	doc := buildPDF([]string{"Hello IFilter", "second row"}, []string{"Next page"})

	lines, err := reader.CollectLines(reader.ReadAllLinesStream(context.Background(), newRegistry(), bytes.NewReader(doc), ".pdf"))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "IFilter")
	assert.Contains(t, lines[1], "second")
	assert.Contains(t, lines[2], "Next")
}

func TestPDFFilterIsDeterministic(t *testing.T) {
	doc := buildPDF([]string{"Repeatable text"})

	first, err := reader.ReadAllStream(context.Background(), newRegistry(), bytes.NewReader(doc), ".pdf")
	require.NoError(t, err)
	second, err := reader.ReadAllStream(context.Background(), newRegistry(), bytes.NewReader(doc), ".pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestPDFFilterTitleIsValueChunk(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.Load(ctx, bytes.NewReader(buildPDF([]string{"body"}))))
	defer f.Close()

	chunk, status, err := f.NextChunk(ctx)
	require.NoError(t, err)
	assert.Equal(t, filter.ChunkOK, status)
	assert.Equal(t, filter.ChunkValue, chunk.State)

	chunk, _, err = f.NextChunk(ctx)
	require.NoError(t, err)
	assert.Equal(t, filter.ChunkText, chunk.State)
	assert.Equal(t, filter.BreakNone, chunk.Break)
}

func TestPDFFilterRejectsGarbage(t *testing.T) {
	_, err := newRegistry().ResolveStream(context.Background(), strings.NewReader("not a pdf"), ".pdf")
	assert.ErrorIs(t, err, filter.ErrUnavailable)
}
