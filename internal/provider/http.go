package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
	"github.com/sells-group/urban-sprawl/internal/resilience"
)

// HTTPOptions configures HTTPProvider.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
	// RatePerSec limits requests; zero means one per second.
	RatePerSec float64
	// Breaker, when set, stops requests after repeated transient faults.
	Breaker *resilience.Breaker
}

// HTTPProvider fetches <BaseURL>/<region>/<YYYY-MM>.asc.
type HTTPProvider struct {
	BaseURL string
	SRID    int

	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPProvider builds a rate-limited provider.
func NewHTTPProvider(baseURL string, srid int, opts HTTPOptions) (*HTTPProvider, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, eris.Wrapf(err, "provider: base url %q", baseURL)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "urban-sprawl/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		SRID:    srid,
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}, nil
}

// URL returns the request URL for a period.
func (p *HTTPProvider) URL(region string, period model.Period) string {
	return p.BaseURL + "/" + url.PathEscape(region) + "/" + period.String() + ".asc"
}

// Raster implements Provider. 404 and 204 mean no imagery; 408, 429, 5xx and
// network failures are ProviderErrors.
func (p *HTTPProvider) Raster(ctx context.Context, region string, period model.Period) (*raster.ClassificationRaster, error) {
	if b := p.opts.Breaker; b != nil {
		if err := b.Allow(); err != nil {
			return nil, eris.Wrap(err, "provider: http")
		}
	}
	ras, err := p.fetch(ctx, region, period)
	if b := p.opts.Breaker; b != nil {
		b.Record(err)
	}
	return ras, err
}

func (p *HTTPProvider) fetch(ctx context.Context, region string, period model.Period) (*raster.ClassificationRaster, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "provider: rate limiter wait")
	}
	u := p.URL(region, period)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "provider: create request")
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "provider: request cancelled")
		}
		return nil, NewProviderError("get "+u, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, eris.Wrapf(ErrNoImageryAvailable, "%s %s", region, period)
	case resilience.TransientStatus(resp.StatusCode):
		zap.L().Warn("provider: transient status",
			zap.String("url", u), zap.Int("status", resp.StatusCode))
		return nil, NewProviderError("get "+u, resp.StatusCode, eris.Errorf("http %d", resp.StatusCode))
	default:
		return nil, eris.Errorf("provider: unexpected status %d from %s", resp.StatusCode, u)
	}
	name := u
	if resp.Header.Get("Content-Type") == "application/gzip" {
		name += ".gz"
	}
	return decode(resp.Body, name, p.SRID)
}
