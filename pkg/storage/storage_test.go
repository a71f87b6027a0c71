package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "uploads/abc/report.pdf", UploadKey("abc", "report.pdf"))
	assert.Equal(t, "uploads/abc/report.pdf", UploadKey("abc", "../../report.pdf"))
	assert.Equal(t, "results/abc.json", ResultKey("abc"))
}
