package reader

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// Read implements io.Reader, encoding the text as UTF-8. When p cannot hold a
// whole rune the remaining bytes are returned by the next Read, and rune reads
// fail with ErrPartialRune until then.
func (r *Reader) Read(p []byte) (int, error) {
	var n int
	for n < len(p) {
		if len(r.spill) > 0 {
			k := copy(p[n:], r.spill)
			r.spill = r.spill[k:]
			n += k
			continue
		}
		c, _, err := r.ReadRune()
		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if utf8.RuneLen(c) <= len(p)-n && utf8.ValidRune(c) {
			n += utf8.EncodeRune(p[n:], c)
			continue
		}
		r.spill = utf8.AppendRune(r.spill[:0], c)
	}
	return n, nil
}

// ReadToEnd drains the stream into a string.
func (r *Reader) ReadToEnd() (string, error) {
	var sb strings.Builder
	_, err := r.WriteTo(&sb)
	return sb.String(), err
}

// WriteTo implements io.WriterTo.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if len(r.spill) > 0 {
		n, err := w.Write(r.spill)
		total += int64(n)
		r.spill = r.spill[n:]
		if err != nil {
			return total, err
		}
	}

	block := make([]rune, r.opts.pullSize)
	for {
		n, err := r.ReadBlock(block, 0, len(block))
		if n > 0 {
			written, werr := io.WriteString(w, string(block[:n]))
			total += int64(written)
			if werr != nil {
				return total, werr
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func runeLen(c rune) int {
	if n := utf8.RuneLen(c); n > 0 {
		return n
	}
	return utf8.RuneLen(utf8.RuneError)
}

var (
	_ io.Reader   = (*Reader)(nil)
	_ io.WriterTo = (*Reader)(nil)
)
