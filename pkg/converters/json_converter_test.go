package converters

import (
	"bytes"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/internal/models"
)

func seq(lines ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, l := range lines {
			if !yield(l, nil) {
				return
			}
		}
	}
}

func TestConvertCounts(t *testing.T) {
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &JSONConverter{now: func() time.Time {
		tick = tick.Add(5 * time.Millisecond)
		return tick
	}}

	doc, err := c.Convert("t1", models.DocumentMetadata{Filename: "a.txt", Extension: ".txt", FileSize: 30},
		seq("Read text with", "", "an IFilter façade"))
	require.NoError(t, err)

	assert.Equal(t, "t1", doc.TaskID)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 3, doc.Metadata.LineCount)
	assert.Equal(t, 6, doc.Metadata.WordCount)
	assert.Equal(t, 31, doc.Metadata.CharCount)
	assert.Equal(t, int64(5), doc.Metadata.ProcessingMs)
	assert.Equal(t, 3, doc.Lines[2].Position)
	assert.Equal(t, "Read text with\n\nan IFilter façade", doc.Text("\n"))
}

func TestConvertStopsOnError(t *testing.T) {
	boom := errors.New("filter failed")
	lines := func(yield func(string, error) bool) {
		if yield("ok", nil) {
			yield("", boom)
		}
	}

	_, err := NewJSONConverter().Convert("t1", models.DocumentMetadata{}, lines)
	assert.ErrorIs(t, err, boom)
}

func TestEncodeDecode(t *testing.T) {
	c := NewJSONConverter()
	doc, err := c.Convert("t2", models.DocumentMetadata{Filename: "b.md"}, seq("x"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, doc))
	assert.Contains(t, buf.String(), `"taskId": "t2"`)

	back, err := c.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Lines, back.Lines)
	assert.Equal(t, "b.md", back.Metadata.FileName)
}
