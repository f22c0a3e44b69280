// Package oracle resolves oracle references to exchange rates. A rate is the
// local-currency base units paid for one whole token (10^18 base units).
//
// Supported references:
//
//	static:<base units>           fixed rate, for development and tests
//	http(s)://host/path#<path>    JSON endpoint; <path> is a gjson path, default "rate"
package oracle

//go:generate mockgen -destination=mocks/mocks.go -package=mocks tokenledger/internal/oracle Source

import (
	"context"
	"net/url"
	"strings"

	"github.com/holiman/uint256"

	dErrors "tokenledger/pkg/domain-errors"
)

const (
	schemeStatic     = "static"
	defaultJSONPath  = "rate"
	maxResponseBytes = 1 << 20
)

// Source yields the current rate.
type Source interface {
	Rate(ctx context.Context) (*uint256.Int, error)
}

// StaticSource always returns the same rate.
type StaticSource struct {
	rate *uint256.Int
}

func NewStaticSource(rate *uint256.Int) *StaticSource {
	return &StaticSource{rate: new(uint256.Int).Set(rate)}
}

func (s *StaticSource) Rate(context.Context) (*uint256.Int, error) {
	return new(uint256.Int).Set(s.rate), nil
}

// ref is a parsed oracle reference.
type ref struct {
	static   *uint256.Int
	endpoint string
	path     string
}

func parseRef(raw string) (ref, error) {
	raw = strings.TrimSpace(raw)
	if v, ok := strings.CutPrefix(raw, schemeStatic+":"); ok {
		rate, err := uint256.FromDecimal(v)
		if err != nil {
			return ref{}, dErrors.Wrap(err, dErrors.CodeValidation, "static oracle rate must be a base-unit integer")
		}
		return ref{static: rate}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ref{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid oracle reference")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ref{}, dErrors.New(dErrors.CodeValidation, "oracle reference must be static:<rate> or an http(s) URL")
	}
	path := u.Fragment
	if path == "" {
		path = defaultJSONPath
	}
	u.Fragment = ""
	return ref{endpoint: u.String(), path: path}, nil
}
