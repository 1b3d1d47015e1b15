package apikey

import (
	"errors"
	"net/http"
	"strings"
)

// Common errors for API key extraction.
var (
	ErrNoAPIKeyFound       = errors.New("no API key found")
	ErrMissingAPIKeyHeader = errors.New("missing API key header")
	ErrMissingAPIKeyQuery  = errors.New("missing API key query parameter")
)

// Extractor defines the interface for extracting API keys from HTTP requests.
type Extractor interface {
	// Extract extracts an API key from the request.
	Extract(r *http.Request) (string, error)
}

// ExtractorFunc is a function type that implements Extractor.
type ExtractorFunc func(r *http.Request) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(r *http.Request) (string, error) {
	return f(r)
}

// HeaderExtractor extracts API keys from HTTP headers.
type HeaderExtractor struct {
	header string
}

// NewHeaderExtractor creates a new header extractor.
// If header is empty, it defaults to "X-API-Key".
func NewHeaderExtractor(header string) *HeaderExtractor {
	if header == "" {
		header = "X-API-Key"
	}
	return &HeaderExtractor{header: header}
}

// Extract extracts the API key from the header.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	value := r.Header.Get(e.header)
	if value == "" {
		return "", ErrMissingAPIKeyHeader
	}
	return value, nil
}

// QueryExtractor extracts API keys from query parameters.
type QueryExtractor struct {
	param string
}

// NewQueryExtractor creates a new query parameter extractor.
// If param is empty, it defaults to "apikey".
func NewQueryExtractor(param string) *QueryExtractor {
	if param == "" {
		param = "apikey"
	}
	return &QueryExtractor{param: param}
}

// Extract returns the raw, still-escaped value of the first argument named
// param, as nginx exposes it in $arg_<name>. Names match case-insensitively.
func (e *QueryExtractor) Extract(r *http.Request) (string, error) {
	key := rawQueryArg(r.URL.RawQuery, e.param)
	if key == "" {
		return "", ErrMissingAPIKeyQuery
	}
	return key, nil
}

func rawQueryArg(rawQuery, name string) string {
	for rawQuery != "" {
		var pair string
		pair, rawQuery, _ = strings.Cut(rawQuery, "&")
		k, v, ok := strings.Cut(pair, "=")
		if ok && strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ConcatExtractor joins the values of all its extractors in order.
// Sources that are absent contribute nothing, so a key split across
// several headers and query arguments is reassembled the same way the
// proxy builds it.
type ConcatExtractor struct {
	extractors []Extractor
}

// NewConcatExtractor creates a new concatenating extractor.
func NewConcatExtractor(extractors ...Extractor) *ConcatExtractor {
	return &ConcatExtractor{extractors: extractors}
}

// NewHeaderQueryExtractor builds a ConcatExtractor reading every header in
// headers followed by every query argument in query.
func NewHeaderQueryExtractor(headers, query []string) *ConcatExtractor {
	extractors := make([]Extractor, 0, len(headers)+len(query))
	for _, h := range headers {
		extractors = append(extractors, NewHeaderExtractor(h))
	}
	for _, q := range query {
		extractors = append(extractors, NewQueryExtractor(q))
	}
	return NewConcatExtractor(extractors...)
}

// Extract implements Extractor. It fails only when every source is absent
// or a source returns an error other than a missing value.
func (e *ConcatExtractor) Extract(r *http.Request) (string, error) {
	var b strings.Builder
	for _, extractor := range e.extractors {
		value, err := extractor.Extract(r)
		if err != nil {
			if isMissing(err) {
				continue
			}
			return "", err
		}
		b.WriteString(value)
	}
	if b.Len() == 0 {
		return "", ErrNoAPIKeyFound
	}
	return b.String(), nil
}

func isMissing(err error) bool {
	return errors.Is(err, ErrNoAPIKeyFound) ||
		errors.Is(err, ErrMissingAPIKeyHeader) ||
		errors.Is(err, ErrMissingAPIKeyQuery)
}
