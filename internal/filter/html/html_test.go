package html

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/reader"
)

const page = `<!DOCTYPE html>
<html>
<head><title>IFilter sample</title>
<style>body { color: red; }</style>
<script>var x = 1;</script>
</head>
<body>
<h1>Heading</h1>
<p>Text extracted through an <b>IFilter</b>&nbsp;stream.</p>
<p>Second<br>line &amp; more</p>
<iframe src="https://example.com"></iframe>
<object data="movie.swf"></object>
<ul><li>one</li><li>two</li></ul>
</body>
</html>`

func extract(t *testing.T, doc string) string {
	t.Helper()
	reg := filter.NewRegistry(nil)
	reg.Register(New, Extensions...)
	got, err := reader.ReadAllStream(context.Background(), reg, strings.NewReader(doc), ".html", reader.WithNewline("\n"))
	require.NoError(t, err)
	return got
}

func TestHTMLFilterExtractsVisibleText(t *testing.T) {
	got := extract(t, page)

	assert.Equal(t, "IFilter sample\nHeading\nText extracted through an IFilter stream.\nSecond\nline & more\none\ntwo", got)
	assert.NotContains(t, got, "color")
	assert.NotContains(t, got, "var x")
}

func TestHTMLFilterInlineSpacing(t *testing.T) {
	assert.Equal(t, "a b c", extract(t, "<span>a</span> <span>b</span><span> c</span>"))
	assert.Equal(t, "ab", extract(t, "<span>a</span><span>b</span>"))
}

func TestHTMLFilterReportsUnavailableObjects(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.Load(ctx, strings.NewReader(`<p>x</p><iframe></iframe><embed src="a">`)))
	defer f.Close()

	var statuses []filter.ChunkStatus
	for {
		_, status, err := f.NextChunk(ctx)
		require.NoError(t, err)
		statuses = append(statuses, status)
		if status == filter.ChunkEndOfChunks {
			break
		}
	}
	assert.Equal(t, []filter.ChunkStatus{
		filter.ChunkOK,
		filter.ChunkLinkUnavailable,
		filter.ChunkEmbeddingUnavailable,
		filter.ChunkEndOfChunks,
	}, statuses)
}

func TestHTMLFilterSeparateReadersAgree(t *testing.T) {
	reg := filter.NewRegistry(nil)
	reg.Register(New, Extensions...)
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	ctx := context.Background()
	a, err := reader.Open(ctx, reg, path)
	require.NoError(t, err)
	defer a.Close()
	b, err := reader.Open(ctx, reg, path)
	require.NoError(t, err)
	defer b.Close()

	first, err := a.ReadToEnd()
	require.NoError(t, err)
	second, err := b.ReadToEnd()
	require.NoError(t, err)
	assert.Contains(t, first, "Heading")
	assert.Equal(t, first, second)
}
