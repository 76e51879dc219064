package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/AngelCh415/disparos-etl/internal/utils"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

// Fetcher downloads both exports from fixed URLs.
type Fetcher struct {
	c             HTTPClient
	leadsURL      string
	dispatchesURL string
	bo            utils.Backoff
	maxBytes      int64
}

func NewFetcher(c HTTPClient, leadsURL, dispatchesURL string, bo utils.Backoff, maxBytes int64) *Fetcher {
	return &Fetcher{c: c, leadsURL: leadsURL, dispatchesURL: dispatchesURL, bo: bo, maxBytes: maxBytes}
}

func (f *Fetcher) Configured() bool { return f.leadsURL != "" && f.dispatchesURL != "" }

func (f *Fetcher) Fetch(ctx context.Context) (leads, dispatches NamedFile, err error) {
	if !f.Configured() {
		return leads, dispatches, errors.New("export urls not configured")
	}
	lb, err := f.getWithRetry(ctx, f.leadsURL)
	if err != nil {
		return leads, dispatches, fmt.Errorf("fetch leads export: %w", err)
	}
	db, err := f.getWithRetry(ctx, f.dispatchesURL)
	if err != nil {
		return leads, dispatches, fmt.Errorf("fetch dispatches export: %w", err)
	}
	return NamedFile{Name: fileName(f.leadsURL), Body: lb}, NamedFile{Name: fileName(f.dispatchesURL), Body: db}, nil
}

func (f *Fetcher) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	var body []byte
	err := f.bo.Do(ctx, func(int) error {
		b, err := f.get(ctx, u)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, utils.Permanent(err)
	}
	resp, err := f.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("non-2xx: %d body=%s", resp.StatusCode, string(b))
		// 4xx no se reintenta, salvo 429
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}
	r := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f.maxBytes > 0 && int64(len(b)) > f.maxBytes {
		return nil, utils.Permanent(fmt.Errorf("export larger than %d bytes", f.maxBytes))
	}
	return b, nil
}

func fileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return path.Base(u.Path)
}
