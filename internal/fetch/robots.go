package fetch

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsChecker answers robots.txt questions per host, caching each host's
// rules for the life of the checker.
type RobotsChecker struct {
	mu        sync.RWMutex
	cache     map[string]*robotstxt.RobotsData
	client    *http.Client
	userAgent string
}

// NewRobotsChecker creates a RobotsChecker.
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RobotsChecker{
		cache:     make(map[string]*robotstxt.RobotsData),
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Check reports whether rawURL may be fetched and the host's crawl delay.
// Hosts whose robots.txt cannot be retrieved are allowed.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (bool, time.Duration) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, 0
	}

	data, err := r.rules(ctx, u)
	if err != nil {
		zap.L().Debug("robots: unavailable, allowing",
			zap.String("host", u.Host),
			zap.Error(err),
		)
		return true, 0
	}

	agent := productToken(r.userAgent)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var delay time.Duration
	if g := data.FindGroup(agent); g != nil {
		delay = g.CrawlDelay
	}
	return data.TestAgent(path, agent), delay
}

func (r *RobotsChecker) rules(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(u.Host)

	r.mu.RLock()
	data, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Scheme+"://"+u.Host+"/robots.txt", nil)
	if err != nil {
		return nil, eris.Wrap(err, "robots: create request")
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "robots: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		data, err = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	} else {
		data, err = robotstxt.FromResponse(resp)
	}
	if err != nil {
		return nil, eris.Wrap(err, "robots: parse")
	}

	r.mu.Lock()
	r.cache[host] = data
	r.mu.Unlock()
	return data, nil
}

// productToken returns the product name of a User-Agent, e.g. "Mozilla"
// for "Mozilla/5.0 (...)".
func productToken(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.SplitN(parts[0], "/", 2)[0]
}
