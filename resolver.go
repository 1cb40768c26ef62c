package abacus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

type dnsConfig struct {
	enabled         bool
	cacheTTL        time.Duration
	refreshInterval time.Duration
	timeout         time.Duration
	udpServers      []string
	tlsServers      []string
	dohEndpoints    []string
}

type dnsCacheEntry struct {
	ips []string
	ttl time.Time
}

// resolver tracks the address set of the remote-write host. When custom
// servers are enabled it races them against the system resolver and keeps
// the first successful answer.
type resolver struct {
	cfg    dnsConfig
	logger *zap.Logger

	mu          sync.Mutex
	resolvedIPs []string
	lastResolve time.Time
	cache       map[string]dnsCacheEntry

	// lookupSystem is the fallback lookup; replaced in tests.
	lookupSystem func(ctx context.Context, host string) ([]string, error)
}

func newResolver(cfg dnsConfig, logger *zap.Logger) *resolver {
	return &resolver{
		cfg:          cfg,
		logger:       logger,
		cache:        make(map[string]dnsCacheEntry),
		lookupSystem: lookupSystem,
	}
}

// refresh resolves host and reports whether its address set changed. Unless
// forced, resolves are throttled to one per minute and served from cache
// while the cached entry is fresh. The lock is not held during the lookup.
func (r *resolver) refresh(ctx context.Context, host string, force bool) bool {
	if host == "" || net.ParseIP(host) != nil {
		return false
	}

	r.mu.Lock()
	if !force && time.Since(r.lastResolve) < time.Minute {
		r.mu.Unlock()
		return false
	}
	if ce, ok := r.cache[host]; ok && !force && time.Now().Before(ce.ttl) {
		r.lastResolve = time.Now()
		defer r.mu.Unlock()
		if slices.Equal(ce.ips, r.resolvedIPs) {
			return false
		}
		r.resolvedIPs = ce.ips
		r.logger.Info("dns cache hit, address set changed",
			zap.String("host", host), zap.Strings("ips", ce.ips))
		return true
	}
	// claim the throttle window so concurrent unforced refreshes skip
	r.lastResolve = time.Now()
	r.mu.Unlock()

	var (
		ips []string
		err error
	)
	if r.cfg.enabled {
		ips, err = r.resolveFastest(ctx, host)
	} else {
		ips, err = r.lookupSystem(ctx, host)
	}

	if err != nil || len(ips) == 0 {
		r.logger.Warn("dns lookup failed", zap.String("host", host), zap.Error(err))
		return false
	}
	slices.Sort(ips)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastResolve = time.Now()
	if r.cfg.enabled {
		r.cache[host] = dnsCacheEntry{ips: ips, ttl: time.Now().Add(r.cfg.cacheTTL)}
	}
	changed := !slices.Equal(ips, r.resolvedIPs)
	r.resolvedIPs = ips
	return changed || force
}

// addresses returns the last resolved address set.
func (r *resolver) addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.resolvedIPs)
}

// resolveFastest queries every configured resolver concurrently and returns
// the first non-empty answer.
func (r *resolver) resolveFastest(parent context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.timeout)
	defer cancel()

	var lookups []func(context.Context) ([]string, error)
	for _, s := range r.cfg.udpServers {
		lookups = append(lookups, func(ctx context.Context) ([]string, error) { return exchange(ctx, host, s, "udp") })
	}
	for _, s := range r.cfg.tlsServers {
		lookups = append(lookups, func(ctx context.Context) ([]string, error) { return exchange(ctx, host, s, "tcp-tls") })
	}
	for _, e := range r.cfg.dohEndpoints {
		lookups = append(lookups, func(ctx context.Context) ([]string, error) { return resolveDoH(ctx, host, e) })
	}
	lookups = append(lookups, func(ctx context.Context) ([]string, error) { return r.lookupSystem(ctx, host) })

	type result struct {
		ips []string
		err error
	}
	ch := make(chan result, len(lookups))
	for _, lookup := range lookups {
		go func() {
			ips, err := lookup(ctx)
			ch <- result{ips, err}
		}()
	}

	var firstErr error
	for range lookups {
		select {
		case res := <-ch:
			if res.err == nil && len(res.ips) > 0 {
				return res.ips, nil
			}
			if firstErr == nil {
				firstErr = res.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no dns result")
	}
	return nil, firstErr
}

func lookupSystem(ctx context.Context, host string) ([]string, error) {
	netIPs, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	ips := make([]string, 0, len(netIPs))
	for _, ip := range netIPs {
		ips = append(ips, ip.String())
	}
	return ips, nil
}

// exchange sends an A query to server over network ("udp" or "tcp-tls").
func exchange(ctx context.Context, host, server, network string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	c := &dns.Client{Net: network, Timeout: 800 * time.Millisecond}
	resp, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("%s dns query to %s: %w", network, server, err)
	}
	return answerIPs(resp)
}

func resolveDoH(ctx context.Context, host, endpoint string) ([]string, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(host), dns.TypeA)
	payload, err := q.Pack()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var msg dns.Msg
	if err := msg.Unpack(body); err != nil {
		return nil, err
	}
	return answerIPs(&msg)
}

func answerIPs(msg *dns.Msg) ([]string, error) {
	if msg == nil {
		return nil, errors.New("empty dns response")
	}
	if msg.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns rcode: %s", dns.RcodeToString[msg.Rcode])
	}
	ips := make([]string, 0, len(msg.Answer))
	for _, ans := range msg.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}
