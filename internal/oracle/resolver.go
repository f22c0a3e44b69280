package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/holiman/uint256"

	dErrors "tokenledger/pkg/domain-errors"
)

// Resolver maps oracle references to sources and reads their rates.
type Resolver struct {
	client *http.Client
	cache  *RedisCache
	logger *slog.Logger

	mu      sync.Mutex
	sources map[string]Source
}

type Option func(*Resolver)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithCache puts every lookup behind cache.
func WithCache(cache *RedisCache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:  http.DefaultClient,
		sources: make(map[string]Source),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds ref to src, overriding the built-in schemes.
func (r *Resolver) Register(ref string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[ref] = src
}

// ValidateRef reports whether ref names a source this resolver can read.
func (r *Resolver) ValidateRef(ref string) error {
	r.mu.Lock()
	_, registered := r.sources[ref]
	r.mu.Unlock()
	if registered {
		return nil
	}
	_, err := parseRef(ref)
	return err
}

// Rate returns the current rate for ref. Source failures and a zero rate are
// both reported as CodeInvalidRate.
func (r *Resolver) Rate(ctx context.Context, ref string) (*uint256.Int, error) {
	src, err := r.source(ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRate, "oracle reference cannot be resolved")
	}

	var rate *uint256.Int
	if r.cache != nil {
		rate, err = r.cache.Rate(ctx, ref, src.Rate)
	} else {
		rate, err = src.Rate(ctx)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidRate, "oracle rate unavailable")
	}
	if rate == nil || rate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidRate, "oracle returned a zero rate")
	}
	return rate, nil
}

func (r *Resolver) source(raw string) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.sources[raw]; ok {
		return src, nil
	}
	parsed, err := parseRef(raw)
	if err != nil {
		return nil, err
	}
	var src Source
	if parsed.static != nil {
		src = NewStaticSource(parsed.static)
	} else {
		src = NewHTTPSource(r.client, parsed.endpoint, parsed.path, r.logger)
	}
	r.sources[raw] = src
	return src, nil
}
