package converters

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/filter-reader/internal/models"
)

// DocumentConverter turns a stream of extracted lines into a result document.
type DocumentConverter interface {
	Convert(taskID string, meta models.DocumentMetadata, lines iter.Seq2[string, error]) (*ExtractedDocument, error)
}

// ExtractedDocument is the stored result of a text extraction.
type ExtractedDocument struct {
	TaskID      string                  `json:"taskId"`
	Status      models.ProcessingStatus `json:"status"`
	Lines       []LineContent           `json:"lines"`
	Metadata    DocumentMetadata        `json:"metadata"`
	ProcessedAt time.Time               `json:"processedAt"`
}

// LineContent is one line of extracted text.
type LineContent struct {
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// DocumentMetadata summarises the source document and the extracted text.
type DocumentMetadata struct {
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	MimeType     string `json:"mimeType,omitempty"`
	FileSize     int64  `json:"fileSize"`
	Hash         string `json:"hash,omitempty"`
	LineCount    int    `json:"lineCount"`
	WordCount    int    `json:"wordCount"`
	CharCount    int    `json:"charCount"`
	ProcessingMs int64  `json:"processingMs"`
}

// Text joins the extracted lines with newline.
func (d *ExtractedDocument) Text(newline string) string {
	parts := make([]string, len(d.Lines))
	for i, l := range d.Lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, newline)
}

// JSONConverter builds ExtractedDocument values and encodes them as JSON.
type JSONConverter struct {
	now func() time.Time
}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{now: time.Now}
}

// Convert drains lines. The first error from the stream aborts the conversion.
func (c *JSONConverter) Convert(taskID string, meta models.DocumentMetadata, lines iter.Seq2[string, error]) (*ExtractedDocument, error) {
	start := c.now()
	doc := &ExtractedDocument{
		TaskID: taskID,
		Status: models.StatusCompleted,
		Lines:  make([]LineContent, 0),
		Metadata: DocumentMetadata{
			FileName: meta.Filename,
			FileType: meta.Extension,
			MimeType: meta.MimeType,
			FileSize: meta.FileSize,
			Hash:     meta.Hash,
		},
	}

	for line, err := range lines {
		if err != nil {
			return nil, fmt.Errorf("failed to read extracted text: %w", err)
		}
		doc.Lines = append(doc.Lines, LineContent{Text: line, Position: len(doc.Lines) + 1})
		doc.Metadata.WordCount += len(strings.FieldsFunc(line, unicode.IsSpace))
		doc.Metadata.CharCount += utf8.RuneCountInString(line)
	}

	doc.Metadata.LineCount = len(doc.Lines)
	doc.ProcessedAt = c.now()
	doc.Metadata.ProcessingMs = doc.ProcessedAt.Sub(start).Milliseconds()
	return doc, nil
}

// Encode writes doc as indented JSON.
func (c *JSONConverter) Encode(w io.Writer, doc *ExtractedDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}

// Decode reads a document written by Encode.
func (c *JSONConverter) Decode(r io.Reader) (*ExtractedDocument, error) {
	var doc ExtractedDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}
