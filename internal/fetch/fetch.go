// Package fetch turns a URL into plain text for extraction. Every failure
// degrades to an empty string.
package fetch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/ocr"
	"github.com/sells-group/catalog-updater/internal/resilience"
	"github.com/sells-group/catalog-updater/pkg/jina"
)

// Reader fetches a single URL and returns its text.
type Reader interface {
	Name() string
	Read(ctx context.Context, rawURL string) (*model.FetchedPage, error)
}

// Fetcher is the contract the pipeline consumes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) string
}

// Chain tries readers in order and returns the first non-empty page.
type Chain struct {
	readers []Reader
}

// NewChain creates a Chain.
func NewChain(readers ...Reader) *Chain {
	return &Chain{readers: readers}
}

// Name implements Reader.
func (c *Chain) Name() string { return "chain" }

// Read implements Reader.
func (c *Chain) Read(ctx context.Context, rawURL string) (*model.FetchedPage, error) {
	var lastErr error
	for _, r := range c.readers {
		page, err := r.Read(ctx, rawURL)
		if err == nil && page != nil && strings.TrimSpace(page.Text) != "" {
			return page, nil
		}
		if err == nil {
			err = eris.Errorf("%s: empty text", r.Name())
		}
		zap.L().Debug("fetch: reader failed, trying next",
			zap.String("reader", r.Name()),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = eris.New("fetch: no readers configured")
	}
	return nil, eris.Wrap(lastErr, "fetch: all readers failed")
}

// Service implements Fetcher over a Reader, pacing requests per host.
type Service struct {
	reader Reader
	pacer  *resilience.Pacer
}

// NewService creates a Service. pacer may be nil.
func NewService(reader Reader, pacer *resilience.Pacer) *Service {
	return &Service{reader: reader, pacer: pacer}
}

// Fetch returns the NFKC-normalized text of rawURL, or "" on any failure.
func (s *Service) Fetch(ctx context.Context, rawURL string) string {
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx, hostOf(rawURL)); err != nil {
			return ""
		}
	}

	page, err := s.reader.Read(ctx, rawURL)
	if err != nil {
		zap.L().Warn("fetch: failed", zap.String("url", rawURL), zap.Error(err))
		return ""
	}
	return Normalize(page.Text)
}

// Normalize applies NFKC and trims the text.
func Normalize(text string) string {
	return strings.TrimSpace(norm.NFKC.String(text))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Host)
}

// Options configures the standard fetch stack built by New.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	MaxBytes      int64
	RespectRobots bool
	// Delay is the minimum spacing between requests to one host.
	Delay    time.Duration
	Jina     jina.Client
	Store    PageStore
	CacheTTL time.Duration
	// OCR reads PDFs without a text layer. Optional.
	OCR ocr.Extractor
}

// New builds a Service that reads locally, falls back to the Jina reader
// when a client is configured and caches successful reads.
func New(opts Options) *Service {
	pacer := resilience.NewPacer(opts.Delay)

	localOpts := []LocalOption{
		WithUserAgent(opts.UserAgent),
		WithTimeout(opts.Timeout),
		WithMaxBytes(opts.MaxBytes),
	}
	if opts.OCR != nil {
		localOpts = append(localOpts, WithOCR(opts.OCR))
	}
	if opts.RespectRobots {
		ua := opts.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		localOpts = append(localOpts, WithRobots(NewRobotsChecker(ua, opts.Timeout), pacer))
	}

	readers := []Reader{NewLocalReader(localOpts...)}
	if opts.Jina != nil {
		readers = append(readers, NewJinaReader(opts.Jina))
	}

	return NewService(NewCachedReader(NewChain(readers...), opts.Store, opts.CacheTTL), pacer)
}
