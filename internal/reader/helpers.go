package reader

import (
	"context"
	"errors"
	"io"
	"iter"
)

// AvailabilityChecker reports whether a filter exists for an extension.
type AvailabilityChecker interface {
	IsAvailable(ext string) bool
}

// IsFilterAvailable reports whether text can be extracted from files with ext.
func IsFilterAvailable(res AvailabilityChecker, ext string) bool {
	return res.IsAvailable(ext)
}

// ReadAllLines streams the lines of the document at path. The reader is
// closed when iteration ends, including on early break.
func ReadAllLines(ctx context.Context, res Resolver, path string, opts ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		rd, err := Open(ctx, res, path, opts...)
		if err != nil {
			yield("", err)
			return
		}
		defer rd.Close()
		yieldLines(rd, yield)
	}
}

// ReadAllLinesStream streams the lines of a document read from stream.
func ReadAllLinesStream(ctx context.Context, res Resolver, stream io.Reader, ext string, opts ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		rd, err := OpenStream(ctx, res, stream, ext, opts...)
		if err != nil {
			yield("", err)
			return
		}
		defer rd.Close()
		yieldLines(rd, yield)
	}
}

// yieldLines peeks for the end of the stream before each line, so a document
// that begins with a line terminator yields an empty first line.
func yieldLines(rd *Reader, yield func(string, error) bool) {
	for {
		if _, err := rd.Peek(); err != nil {
			if !errors.Is(err, io.EOF) {
				yield("", err)
			}
			return
		}
		line, err := rd.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				yield("", err)
			}
			return
		}
		if !yield(line, nil) {
			return
		}
	}
}

// ReadAll returns the whole text of the document at path.
func ReadAll(ctx context.Context, res Resolver, path string, opts ...Option) (text string, err error) {
	rd, err := Open(ctx, res, path, opts...)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := rd.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return rd.ReadToEnd()
}

// ReadAllStream returns the whole text of a document read from stream.
func ReadAllStream(ctx context.Context, res Resolver, stream io.Reader, ext string, opts ...Option) (text string, err error) {
	rd, err := OpenStream(ctx, res, stream, ext, opts...)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := rd.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return rd.ReadToEnd()
}

// CollectLines gathers every line from seq, stopping at the first error.
func CollectLines(seq iter.Seq2[string, error]) ([]string, error) {
	var lines []string
	for line, err := range seq {
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
