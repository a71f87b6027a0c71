package reader

import (
	"context"

	"github.com/feichai0017/filter-reader/pkg/logger"
)

// DefaultPullSize is the number of runes requested per text pull.
const DefaultPullSize = 8192

// stallLimit bounds consecutive empty TextMore answers within one chunk.
const stallLimit = 64

type options struct {
	ctx      context.Context
	pullSize int
	newline  string
	logger   logger.Logger
}

// Option configures a Reader.
type Option func(*options)

// WithPullSize sets how many runes are requested from the filter per pull.
// Non-positive sizes are ignored.
func WithPullSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pullSize = n
		}
	}
}

// WithNewline overrides the separator inserted at sentence, paragraph and
// chapter breaks.
func WithNewline(nl string) Option {
	return func(o *options) {
		if nl != "" {
			o.newline = nl
		}
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithContext sets the context checked before every filter call.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		ctx:      context.Background(),
		pullSize: DefaultPullSize,
		newline:  defaultNewline,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
