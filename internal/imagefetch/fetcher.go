// Package imagefetch resolves the image references on a listing into local
// files the browser's file input can accept. Local paths pass through after
// an existence check; http(s) URLs are downloaded into a cache directory.
package imagefetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Fetcher resolves image references to local file paths.
type Fetcher interface {
	Resolve(ctx context.Context, images []string) ([]string, error)
}

type fetcher struct {
	rl            ratelimit.Limiter
	httpClient    *resty.Client
	proxySupplier ProxySupplier
	cacheDir      string
}

// Config tunes the downloader.
type Config struct {
	CacheDir             string
	MaxRequestsPerSecond int
}

// NewFetcher wires a downloading resolver. proxySupplier may be nil.
func NewFetcher(cfg Config, proxySupplier ProxySupplier) (Fetcher, error) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "autoposter-images")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image cache dir %s: %w", cfg.CacheDir, err)
	}
	if cfg.MaxRequestsPerSecond <= 0 {
		cfg.MaxRequestsPerSecond = 2
	}

	client := resty.New().
		SetTimeout(60*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "image/avif,image/webp,image/png,image/*;q=0.8,*/*;q=0.5")

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("image downloads using proxy %s", proxyURL)
		}
	}

	return &fetcher{
		rl:            ratelimit.New(cfg.MaxRequestsPerSecond),
		httpClient:    client,
		proxySupplier: proxySupplier,
		cacheDir:      cfg.CacheDir,
	}, nil
}

// Resolve maps each image reference to a local path, downloading remote
// ones. Any unreachable image fails the whole set: a listing published with
// a partial gallery is worse than one that fails loudly.
func (f *fetcher) Resolve(ctx context.Context, images []string) ([]string, error) {
	resolved := make([]string, 0, len(images))
	for _, image := range images {
		if isRemote(image) {
			local, err := f.download(ctx, image)
			if err != nil {
				return nil, fmt.Errorf("failed to download %s: %w", image, err)
			}
			resolved = append(resolved, local)
			continue
		}

		if _, err := os.Stat(image); err != nil {
			return nil, fmt.Errorf("image file %s is not readable: %w", image, err)
		}
		resolved = append(resolved, image)
	}
	return resolved, nil
}

func isRemote(image string) bool {
	return strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://")
}

func (f *fetcher) download(ctx context.Context, url string) (string, error) {
	target := filepath.Join(f.cacheDir, cacheName(url))
	if _, err := os.Stat(target); err == nil {
		log.Debugf("image %s already cached at %s", url, target)
		return target, nil
	}

	f.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	resp, err := f.httpClient.R().
		SetContext(reqCtx).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download cancelled: %w", ctx.Err())
		}
		return "", err
	}

	if resp.IsError() {
		retried := false
		if f.proxySupplier != nil {
			if newProxy := f.proxySupplier.Get(); newProxy != "" {
				log.Infof("download got HTTP %d, retrying via proxy %s", resp.StatusCode(), newProxy)
				f.httpClient.SetProxy(newProxy)

				retryResp, retryErr := f.httpClient.R().
					SetContext(reqCtx).
					Get(url)
				if retryErr == nil && !retryResp.IsError() {
					resp = retryResp
					retried = true
				}
			}
		}
		if !retried {
			return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
		}
	}

	if err := os.WriteFile(target, resp.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	log.Debugf("downloaded %s to %s", url, target)
	return target, nil
}

// cacheName keys the cache on the full URL but keeps the extension so the
// upload input recognizes the file type.
func cacheName(url string) string {
	sum := sha256.Sum256([]byte(url))
	ext := path.Ext(strings.SplitN(path.Base(url), "?", 2)[0])
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return hex.EncodeToString(sum[:8]) + ext
}
