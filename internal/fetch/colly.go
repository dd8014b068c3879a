package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyConfig controls collector behavior.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
}

// CollyFetcher implements Fetcher using the Colly collector. A base collector
// holds the shared pooled transport; each Fetch clones it so per-request
// callbacks never race.
type CollyFetcher struct {
	cfg           CollyConfig
	transport     *http.Transport
	baseCollector *colly.Collector
}

// NewCollyFetcher builds a CollyFetcher with a pooled transport.
func NewCollyFetcher(cfg CollyConfig) *CollyFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := newHTTPTransport()

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(transport)

	return &CollyFetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using a clone of the base collector.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Response, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	start := time.Now()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{resp: Response{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		res := fetchResult{err: err}
		if r != nil && r.StatusCode != 0 {
			// Keep the status so the retry driver can classify 4xx/5xx.
			res.resp = Response{
				URL:        rawURL,
				StatusCode: r.StatusCode,
				Duration:   time.Since(start),
			}
			res.err = nil
		}
		send(res)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	var visitErr error
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case visitErr = <-done:
	}

	// Visit reports an error for non-2xx statuses too; the OnError hook
	// preserved the status, so prefer the captured result when present.
	select {
	case res := <-resultCh:
		return res.resp, res.err
	default:
		if visitErr != nil {
			return Response{}, visitErr
		}
		return Response{}, errors.New("fetch produced no result")
	}
}

// Close releases idle connections held by the shared transport.
func (f *CollyFetcher) Close() {
	f.transport.CloseIdleConnections()
}

type fetchResult struct {
	resp Response
	err  error
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
