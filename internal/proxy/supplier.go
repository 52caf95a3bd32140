package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ProxySupplier hands out egress proxies for the feed HTTP clients in
// round-robin order.
type ProxySupplier interface {
	Get() string
	Len() int
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewProxySupplier checks every proxy against testURL in parallel and keeps
// the ones that answer. An empty list yields a supplier that returns "".
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) ProxySupplier {
	if len(proxies) == 0 {
		return &proxySupplier{}
	}

	log.Infof("🔄 Testing %d feed proxies...", len(proxies))

	valid := make([]bool, len(proxies))
	semaphore := make(chan struct{}, 8)

	var wg sync.WaitGroup
	for i, proxyURL := range proxies {
		wg.Add(1)
		go func(index int, proxy string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			valid[index] = isProxyValid(ctx, proxy, testURL)
		}(i, proxyURL)
	}
	wg.Wait()

	// keep the configured order so rotation is predictable
	working := make([]string, 0, len(proxies))
	for i, ok := range valid {
		if ok {
			working = append(working, proxies[i])
		}
	}

	if len(working) == 0 {
		log.Warnf("⚠️ None of the %d feed proxies work, connecting directly", len(proxies))
	} else {
		log.Infof("✅ Using %d of %d feed proxies", len(working), len(proxies))
	}

	return &proxySupplier{proxies: working}
}

// Get returns the next proxy URL, or "" when there is none.
func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)
	return proxy
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Head(testURL)
	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	// any HTTP answer means the proxy forwarded the request
	if resp.StatusCode() >= 500 {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}
	return true
}
