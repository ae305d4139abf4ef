package imagefetch

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ProxySupplier hands out proxies round-robin for image downloads. The
// browser session itself is never proxied, only the image fetches are.
type ProxySupplier interface {
	Get() string
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewProxySupplier validates the configured proxies in parallel and keeps
// only the working ones. An empty list is fine: Get returns "" and fetches
// go direct.
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) (ProxySupplier, error) {
	if len(proxies) == 0 {
		return &proxySupplier{proxies: []string{}, current: 0}, nil
	}

	validProxies := make([]string, 0, len(proxies))
	validProxiesCh := make(chan string, len(proxies))

	log.Infof("testing %d proxies in parallel", len(proxies))

	semaphore := make(chan struct{}, 50)

	var wg sync.WaitGroup

	for i, proxyURL := range proxies {
		wg.Add(1)

		go func(index int, proxy string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			log.Debugf("testing proxy %d/%d: %s", index+1, len(proxies), proxy)

			if isProxyValid(ctx, proxy, testURL) {
				validProxiesCh <- proxy
			} else {
				log.Infof("proxy %s is not working, skipping", proxy)
			}
		}(i, proxyURL)
	}

	wg.Wait()
	close(validProxiesCh)

	for proxy := range validProxiesCh {
		validProxies = append(validProxies, proxy)
	}

	log.Infof("proxy supplier initialized with %d working proxies out of %d tested", len(validProxies), len(proxies))

	return &proxySupplier{
		proxies: validProxies,
		current: 0,
	}, nil
}

// Get returns the next proxy URL in round-robin fashion.
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

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)
	if err != nil {
		log.Debugf("proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
