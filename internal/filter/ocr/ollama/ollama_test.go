package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/filter/ocr"
	"github.com/feichai0017/filter-reader/internal/reader"
)

func newServer(t *testing.T, handler func(req generateRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEngineTranscription(t *testing.T) {
	srv := newServer(t, func(req generateRequest) (int, any) {
		assert.Equal(t, "llava", req.Model)
		assert.Equal(t, DefaultPrompt, req.Prompt)
		assert.False(t, req.Stream)
		require.Len(t, req.Images, 1)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("scan")), req.Images[0])
		return http.StatusOK, generateResponse{
			Response: "Quarterly  report\nRevenue up\n\n\nSigned",
			Done:     true,
		}
	})

	reg := filter.NewRegistry(nil)
	reg.Register(ocr.New(New(Config{Endpoint: srv.URL + "/", Model: "llava"})), ocr.Extensions...)

	lines, err := reader.CollectLines(reader.ReadAllLinesStream(context.Background(), reg, bytes.NewReader([]byte("scan")), ".png"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Quarterly report", "Revenue up", "Signed"}, lines)
}

func TestEngineErrors(t *testing.T) {
	srv := newServer(t, func(generateRequest) (int, any) {
		return http.StatusNotFound, map[string]string{"error": "model not found"}
	})
	_, err := New(Config{Endpoint: srv.URL}).Recognize(context.Background(), []byte("scan"))
	assert.ErrorContains(t, err, "unexpected status code 404")

	srv = newServer(t, func(generateRequest) (int, any) {
		return http.StatusOK, generateResponse{Error: "out of memory"}
	})
	_, err = New(Config{Endpoint: srv.URL}).Recognize(context.Background(), []byte("scan"))
	assert.ErrorContains(t, err, "out of memory")
}

func TestEngineHonoursContext(t *testing.T) {
	e := New(Config{Endpoint: "http://127.0.0.1:1", MaxConcurrent: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Recognize(ctx, []byte("scan"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWords(t *testing.T) {
	got := words("a b\r\nc\n\nd")
	require.Len(t, got, 4)
	assert.Equal(t, ocr.Word{Text: "b", Confidence: 100, Paragraph: 0, Line: 1}, got[1])
	assert.Equal(t, 2, got[2].Line)
	assert.Equal(t, 1, got[3].Paragraph)
	assert.Empty(t, words("  \n\n"))
}
