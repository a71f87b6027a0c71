package filter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/filter-reader/pkg/logger"
)

// sniffLimit is how many bytes are inspected to guess the type of an untyped stream.
const sniffLimit = 3072

var mimeToExt = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/html":  ".html",
	"text/plain": ".txt",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/tiff": ".tiff",
}

// Registry maps file extensions to filter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    log,
	}
}

// NormalizeExt lowercases ext and adds the leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register installs factory for every extension in exts, replacing earlier ones.
func (r *Registry) Register(factory Factory, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.factories[NormalizeExt(ext)] = factory
	}
}

// IsAvailable reports whether a filter is registered for ext.
func (r *Registry) IsAvailable(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[NormalizeExt(ext)]
	return ok
}

// Extensions lists registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.factories))
	for ext := range r.factories {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ResolvePath opens path and returns a filter loaded with its content. The file
// is closed together with the filter.
func (r *Registry) ResolvePath(ctx context.Context, path string) (Filter, error) {
	ext := NormalizeExt(filepath.Ext(path))
	factory, err := r.lookup(ext)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrUnavailable, path, err)
	}

	f, err := r.load(ctx, factory, ext, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &ownedFilter{Filter: f, owned: file}, nil
}

// ResolveStream returns a filter loaded from stream. When ext is empty the type
// is sniffed from the content.
func (r *Registry) ResolveStream(ctx context.Context, stream io.Reader, ext string) (Filter, error) {
	if stream == nil {
		return nil, fmt.Errorf("%w: nil stream", ErrUnavailable)
	}
	ext = NormalizeExt(ext)
	if ext == "" {
		var err error
		ext, stream, err = sniffExt(stream)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("Sniffed stream type", logger.String("ext", ext))
	}

	factory, err := r.lookup(ext)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, factory, ext, stream)
}

func (r *Registry) lookup(ext string) (Factory, error) {
	r.mu.RLock()
	factory, ok := r.factories[ext]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("No filter registered", logger.String("ext", ext))
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return factory, nil
}

func (r *Registry) load(ctx context.Context, factory Factory, ext string, src io.Reader) (Filter, error) {
	f := factory()
	if f == nil {
		return nil, fmt.Errorf("%w: factory for %s returned no filter", ErrUnavailable, ext)
	}
	if err := f.Load(ctx, src); err != nil {
		if cerr := f.Close(); cerr != nil {
			r.logger.Error("Failed to release filter after load error",
				logger.String("ext", ext),
				logger.Error(cerr),
			)
		}
		return nil, fmt.Errorf("%w: failed to load %s content: %w", ErrUnavailable, ext, err)
	}
	return f, nil
}

func sniffExt(stream io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(stream, sniffLimit)
	head, err := br.Peek(sniffLimit)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", nil, fmt.Errorf("%w: failed to sniff stream: %w", ErrUnavailable, err)
	}

	for mt := mimetype.Detect(head); mt != nil; mt = mt.Parent() {
		if ext, ok := mimeToExt[mt.String()]; ok {
			return ext, br, nil
		}
		base := strings.TrimSpace(strings.SplitN(mt.String(), ";", 2)[0])
		if ext, ok := mimeToExt[base]; ok {
			return ext, br, nil
		}
	}
	return "", nil, fmt.Errorf("%w: unrecognized stream type", ErrUnsupported)
}

// ownedFilter closes an input it owns after the filter itself.
type ownedFilter struct {
	Filter
	owned  io.Closer
	closed bool
}

func (f *ownedFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return errors.Join(f.Filter.Close(), f.owned.Close())
}
