package text

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

func TestTextFilterLines(t *testing.T) {
	reg := filter.NewRegistry(nil)
	reg.Register(New, Extensions...)

	doc := "Title line\r\nsecond line\n\n\n  indented paragraph\n"
	got, err := reader.ReadAllStream(context.Background(), reg, strings.NewReader(doc), ".txt", reader.WithNewline("\n"))
	require.NoError(t, err)
	assert.Equal(t, "Title line\nsecond line\n  indented paragraph", got)
}

func TestTextFilterEmpty(t *testing.T) {
	reg := filter.NewRegistry(nil)
	reg.Register(New, Extensions...)

	lines, err := reader.CollectLines(reader.ReadAllLinesStream(context.Background(), reg, strings.NewReader("\n\n"), ".txt"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTextFilterBreaks(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.Load(ctx, strings.NewReader("a\nb\n\nc")))
	defer f.Close()

	var breaks []filter.BreakType
	for {
		chunk, status, err := f.NextChunk(ctx)
		require.NoError(t, err)
		if status == filter.ChunkEndOfChunks {
			break
		}
		breaks = append(breaks, chunk.Break)
	}
	assert.Equal(t, []filter.BreakType{filter.BreakNone, filter.BreakEOS, filter.BreakEOP}, breaks)
}

func TestTextFilterSeparateReadersAgree(t *testing.T) {
	reg := filter.NewRegistry(nil)
	reg.Register(New, Extensions...)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("first line\nsecond line\n\nnext paragraph\n"), 0o644))

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
	assert.Contains(t, first, "next paragraph")
	assert.Equal(t, first, second)
}
