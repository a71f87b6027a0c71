package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/filter-reader/internal/filter/builtin"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

func newValidator(max int64) *DocumentValidator {
	return NewDocumentValidator(logger.NewNop(), builtin.NewRegistry(), &ValidatorConfig{MaxFileSize: max})
}

func codes(res *ValidationResult) []string {
	var out []string
	for _, e := range res.Errors {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateAcceptsText(t *testing.T) {
	body := "plain text document\n"
	r := strings.NewReader(body)

	res, err := newValidator(1024).Validate("Notes.TXT", int64(len(body)), r)
	require.NoError(t, err)
	assert.True(t, res.IsValid, res.Errors)
	assert.Equal(t, ".txt", res.FileInfo.Extension)
	assert.Equal(t, "text/plain; charset=utf-8", res.FileInfo.MimeType)
	assert.Len(t, res.FileInfo.Hash, 64)

	pos, _ := r.Seek(0, 1)
	assert.Zero(t, pos, "reader is rewound")
}

func TestValidateRejections(t *testing.T) {
	v := newValidator(10)

	res, err := v.Validate("big.txt", 11, strings.NewReader("0123456789a"))
	require.NoError(t, err)
	assert.Equal(t, []string{CodeFileTooLarge}, codes(res))

	res, err = v.Validate("old.doc", 4, strings.NewReader("abcd"))
	require.NoError(t, err)
	assert.Equal(t, []string{CodeUnsupportedType}, codes(res))

	res, err = v.Validate("fake.pdf", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, []string{CodeInvalidMimeType}, codes(res))

	res, err = v.Validate("empty.txt", 0, strings.NewReader(""))
	require.NoError(t, err)
	assert.Contains(t, codes(res), CodeEmptyFile)
}

func TestValidateHTMLIsText(t *testing.T) {
	body := "<html><body><p>x</p></body></html>"
	res, err := newValidator(1024).Validate("page.html", int64(len(body)), strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, res.IsValid, res.Errors)
	assert.Equal(t, "page.html", res.FileInfo.Metadata().Filename)
}
