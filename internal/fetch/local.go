package fetch

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-updater/internal/model"
	"github.com/sells-group/catalog-updater/internal/ocr"
	"github.com/sells-group/catalog-updater/internal/resilience"
)

// Defaults for direct HTTP fetching.
const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; CatalogUpdater/1.0)"
	DefaultMaxBytes  = 10 << 20
	DefaultTimeout   = 15 * time.Second
)

// LocalReader fetches pages directly over HTTP and converts HTML or PDF to
// plain text.
type LocalReader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	robots    *RobotsChecker
	pacer     *resilience.Pacer
	ocr       ocr.Extractor
}

// LocalOption configures a LocalReader.
type LocalOption func(*LocalReader)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalReader) {
		if ua != "" {
			l.userAgent = ua
		}
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) LocalOption {
	return func(l *LocalReader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) LocalOption {
	return func(l *LocalReader) {
		if d > 0 {
			l.client.Timeout = d
		}
	}
}

// WithRobots enforces robots.txt. Crawl delays found there are applied to
// pacer for the host when pacer is non-nil.
func WithRobots(r *RobotsChecker, pacer *resilience.Pacer) LocalOption {
	return func(l *LocalReader) {
		l.robots = r
		l.pacer = pacer
	}
}

// WithOCR sets the extractor used for PDFs without a text layer.
func WithOCR(e ocr.Extractor) LocalOption {
	return func(l *LocalReader) { l.ocr = e }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalReader) { l.client = hc }
}

// NewLocalReader creates a LocalReader.
func NewLocalReader(opts ...LocalOption) *LocalReader {
	l := &LocalReader{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBytes,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Name implements Reader.
func (l *LocalReader) Name() string { return "local_http" }

// Read implements Reader.
func (l *LocalReader) Read(ctx context.Context, rawURL string) (*model.FetchedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, eris.Errorf("local_http: unsupported url %q", rawURL)
	}

	if l.robots != nil {
		allowed, delay := l.robots.Check(ctx, rawURL)
		if !allowed {
			return nil, eris.Errorf("local_http: disallowed by robots.txt: %s", rawURL)
		}
		if delay > 0 && l.pacer != nil {
			l.pacer.SetInterval(strings.ToLower(u.Host), delay)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,text/plain;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		return nil, resilience.StatusError("local_http", resp.StatusCode, nil)
	}

	page := &model.FetchedPage{
		URL:       rawURL,
		Source:    l.Name(),
		FetchedAt: time.Now().UTC(),
	}

	switch kind := contentKind(resp.Header.Get("Content-Type"), u.Path, body); kind {
	case "pdf":
		page.ContentType = "application/pdf"
		page.Text, err = PDFText(body)
		if err != nil && l.ocr != nil {
			zap.L().Debug("local_http: pdf has no text layer, trying ocr", zap.String("url", rawURL), zap.Error(err))
			page.Text, err = l.ocr.ExtractText(ctx, body)
			if err == nil && strings.TrimSpace(page.Text) == "" {
				err = eris.New("ocr: no text recognized")
			}
		}
	case "html":
		page.ContentType = "text/html"
		page.Title, page.Text = HTMLText(string(body), u)
	case "text":
		page.ContentType = "text/plain"
		page.Text = string(body)
	default:
		return nil, eris.Errorf("local_http: unsupported content type %q", kind)
	}
	if err != nil {
		return nil, eris.Wrap(err, "local_http: extract text")
	}
	return page, nil
}

// contentKind classifies a response as pdf, html or text.
func contentKind(header, path string, body []byte) string {
	mt, _, _ := mime.ParseMediaType(header)
	switch {
	case mt == "application/pdf",
		strings.HasSuffix(strings.ToLower(path), ".pdf"),
		bytes.HasPrefix(body, []byte("%PDF")):
		return "pdf"
	case mt == "text/html", mt == "application/xhtml+xml":
		return "html"
	case mt == "text/plain":
		return "text"
	case mt == "":
		if http.DetectContentType(body) == "application/pdf" {
			return "pdf"
		}
		if strings.HasPrefix(http.DetectContentType(body), "text/html") {
			return "html"
		}
		return "text"
	default:
		return mt
	}
}

// HTMLText returns the title and main text of an HTML document. Readability
// is tried first; pages it cannot parse fall back to tag stripping.
func HTMLText(html string, pageURL *url.URL) (title, text string) {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err == nil {
		title = strings.TrimSpace(article.Title)
		text = strings.TrimSpace(article.TextContent)
	}
	if title == "" {
		title = extractTitle(html)
	}
	if len(strings.Fields(text)) < 20 {
		if stripped := stripHTML(html); stripped != "" {
			text = stripped
		}
	}
	return title, text
}

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	spaceRe    = regexp.MustCompile(`[ \t]+`)
	lineEdgeRe = regexp.MustCompile(` *\n *`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
	boilerRes  = func() []*regexp.Regexp {
		var out []*regexp.Regexp
		for _, tag := range []string{"head", "script", "style", "noscript", "header", "nav", "footer"} {
			out = append(out, regexp.MustCompile(`(?is)<`+tag+`\b[^>]*>.*?</`+tag+`>`))
		}
		return out
	}()
	entities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

func extractTitle(html string) string {
	if m := titleRe.FindStringSubmatch(html); len(m) > 1 {
		return strings.TrimSpace(entities.Replace(m[1]))
	}
	return ""
}

// stripHTML drops boilerplate blocks, strips the remaining tags and
// collapses whitespace.
func stripHTML(html string) string {
	for _, re := range boilerRes {
		html = re.ReplaceAllString(html, "")
	}
	html = tagRe.ReplaceAllString(html, " ")
	html = entities.Replace(html)
	html = spaceRe.ReplaceAllString(html, " ")
	html = lineEdgeRe.ReplaceAllString(html, "\n")
	html = newlinesRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
