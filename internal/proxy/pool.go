// Package proxy manages a shared pool of egress proxies with check-out /
// check-in semantics and independent health verification.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrExhausted is returned when every proxy is either leased or quarantined.
var ErrExhausted = errors.New("proxy pool exhausted")

// Pool hands out proxy URLs to workers. A worker must check a proxy back in
// on every exit path, healthy or not.
type Pool struct {
	mu          sync.Mutex
	free        []string
	leased      map[string]bool
	quarantined map[string]bool

	probeURL string
	client   *http.Client
	log      *zap.Logger
}

// NewPool builds a Pool over the given proxy URLs. probeURL is fetched
// through a proxy to verify its health; an empty probeURL disables probing.
func NewPool(proxyURLs []string, probeURL string, timeout time.Duration, logger *zap.Logger) *Pool {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Pool{
		free:        append([]string(nil), proxyURLs...),
		leased:      make(map[string]bool),
		quarantined: make(map[string]bool),
		probeURL:    probeURL,
		client:      &http.Client{Timeout: timeout},
		log:         logger,
	}
}

// Empty reports whether the pool was configured without proxies.
func (p *Pool) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) == 0 && len(p.leased) == 0 && len(p.quarantined) == 0
}

// Checkout leases the next healthy proxy. Unhealthy candidates are
// quarantined and the next one is tried.
func (p *Pool) Checkout(ctx context.Context) (string, error) {
	for {
		candidate, ok := p.takeFree()
		if !ok {
			return "", ErrExhausted
		}
		if err := p.verify(ctx, candidate); err != nil {
			p.log.Warn("Quarantining proxy",
				zap.String("proxy", candidate),
				zap.Error(err),
			)
			p.quarantine(candidate)
			continue
		}
		return candidate, nil
	}
}

// Checkin returns a leased proxy. An unhealthy return quarantines it instead
// of putting it back in rotation.
func (p *Pool) Checkin(proxyURL string, healthy bool) {
	if proxyURL == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.leased[proxyURL] {
		return
	}
	delete(p.leased, proxyURL)
	if healthy {
		p.free = append(p.free, proxyURL)
		return
	}
	p.quarantined[proxyURL] = true
}

func (p *Pool) takeFree() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return "", false
	}
	candidate := p.free[0]
	p.free = p.free[1:]
	p.leased[candidate] = true
	return candidate, true
}

func (p *Pool) quarantine(proxyURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leased, proxyURL)
	p.quarantined[proxyURL] = true
}

func (p *Pool) verify(ctx context.Context, proxyURL string) error {
	if p.probeURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}
	client := &http.Client{
		Timeout:   p.client.Timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.probeURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe through proxy: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned %s", resp.Status)
	}
	return nil
}
