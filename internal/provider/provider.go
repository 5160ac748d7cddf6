// Package provider fetches the classification raster for a region and
// period from a file tree, an HTTP endpoint or an FTP server.
package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
	"github.com/sells-group/urban-sprawl/internal/resilience"
)

// ErrNoImageryAvailable means the period has no usable scene. It is terminal
// for that period.
var ErrNoImageryAvailable = eris.New("provider: no imagery available")

// Provider supplies classification rasters.
type Provider interface {
	Raster(ctx context.Context, region string, period model.Period) (*raster.ClassificationRaster, error)
}

// ProviderError is a transient fault of the remote service. It unwraps to a
// resilience.TransientError so retry helpers pick it up.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

// NewProviderError wraps err as a retryable provider fault.
func NewProviderError(op string, status int, err error) *ProviderError {
	return &ProviderError{Op: op, StatusCode: status, Err: resilience.NewTransientError(err, status)}
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// decode parses an ASCII grid, transparently gunzipping names ending in .gz.
func decode(r io.Reader, name string, srid int) (*raster.ClassificationRaster, error) {
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, eris.Wrapf(err, "provider: gunzip %s", name)
		}
		defer zr.Close() //nolint:errcheck
		r = zr
	}
	ras, err := raster.ReadASCIIGrid(r, srid)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: decode %s", name)
	}
	return ras, nil
}

// Retrying wraps a provider so transient faults are retried with backoff.
type Retrying struct {
	Provider Provider
	Backoff  resilience.Backoff
}

// Raster implements Provider.
func (r Retrying) Raster(ctx context.Context, region string, period model.Period) (*raster.ClassificationRaster, error) {
	b := r.Backoff
	if b.OnRetry == nil {
		b.OnRetry = resilience.LogRetry("provider", "raster "+region+" "+period.String())
	}
	return resilience.Retry(ctx, b, func(ctx context.Context) (*raster.ClassificationRaster, error) {
		return r.Provider.Raster(ctx, region, period)
	})
}
