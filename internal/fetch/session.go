// Package fetch implements the fetch port on top of the Colly collector.
// A Session owns one cookie jar and one pacing schedule; the scheduler hands
// each worker its own Session and never shares one across workers.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// Config controls session behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MinDelay  time.Duration
	MaxDelay  time.Duration
	ProxyURL  string
}

// Session is a cookie-carrying Fetcher bound to one worker.
type Session struct {
	cfg       Config
	base      *colly.Collector
	jar       http.CookieJar
	transport http.RoundTripper
	pacer     *Pacer
	log       *zap.Logger
}

// NewSession builds a Session. The proxy URL, when set, routes every request
// of this session through that proxy for its whole lifetime.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	transport, err := newHTTPTransport(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetCookieJar(jar)
	c.WithTransport(transport)

	return &Session{
		cfg:       cfg,
		base:      c,
		jar:       jar,
		transport: transport,
		pacer:     NewPacer(cfg.MinDelay, cfg.MaxDelay),
		log:       logger,
	}, nil
}

// Do executes one request. The pacer inserts a randomized delay before the
// request goes out; cancellation is honored while waiting but an in-flight
// request is allowed to complete.
func (s *Session) Do(ctx context.Context, req registry.FetchRequest) (registry.FetchResponse, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return registry.FetchResponse{}, err
	}

	var (
		result   registry.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := s.buildCollector(req, start, &result, &fetchErr)

	done := make(chan error, 1)
	go func() {
		if req.Form != nil {
			done <- collector.Post(req.URL, flattenForm(req.Form))
		} else {
			done <- collector.Visit(req.URL)
		}
	}()

	select {
	case <-ctx.Done():
		return registry.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return registry.FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, err)
		}
		if fetchErr != nil {
			return registry.FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, fetchErr)
		}
		return result, nil
	}
}

// Warm primes the session's cookies by visiting a landing page. The registry
// rejects search POSTs from cookie-less clients.
func (s *Session) Warm(ctx context.Context, landingURL string, headers http.Header) error {
	_, err := s.Do(ctx, registry.FetchRequest{
		Method:  http.MethodGet,
		URL:     landingURL,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("warm session: %w", err)
	}
	return nil
}

// Rotate discards the session's cookies and re-warms against the landing
// page. Used when the server answers with an access-limit interstitial.
func (s *Session) Rotate(ctx context.Context, landingURL string, headers http.Header) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	s.jar = jar
	s.base.SetCookieJar(jar)
	s.log.Info("Rotated crawl session", zap.String("landing", landingURL))
	return s.Warm(ctx, landingURL, headers)
}

func (s *Session) buildCollector(
	req registry.FetchRequest,
	start time.Time,
	result *registry.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := s.base.Clone()
	collector.SetCookieJar(s.jar)
	collector.WithTransport(s.transport)

	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.cfg.Timeout
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range req.Headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		*result = registry.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector
}

func flattenForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for key := range form {
		out[key] = form.Get(key)
	}
	return out
}

var accessLimitMarkers = [][]byte{
	[]byte("访问过于频繁"),
	[]byte("请输入验证码"),
}

// IsAccessLimited reports whether a response body is the registry's
// rate-limit interstitial rather than real content.
func IsAccessLimited(body []byte) bool {
	for _, marker := range accessLimitMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func newHTTPTransport(proxyURL string) (*http.Transport, error) {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		t.Proxy = http.ProxyURL(u)
	}
	return t, nil
}
