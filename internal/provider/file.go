package provider

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

// FileProvider reads <Root>/<region>/<YYYY_MM>.asc, or the same name with a
// .gz suffix.
type FileProvider struct {
	Root string
	// SRID of the grids; ASCII grids carry no CRS.
	SRID int
}

// Path returns the uncompressed file name for a period.
func (p *FileProvider) Path(region string, period model.Period) string {
	return filepath.Join(p.Root, region, period.Key()+".asc")
}

// Raster implements Provider.
func (p *FileProvider) Raster(ctx context.Context, region string, period model.Period) (*raster.ClassificationRaster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := p.Path(region, period)
	for _, name := range []string{base, base + ".gz"} {
		f, err := os.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "provider: open %s", name)
		}
		zap.L().Debug("provider: reading raster", zap.String("path", name))
		ras, err := decode(f, name, p.SRID)
		_ = f.Close()
		return ras, err
	}
	return nil, eris.Wrapf(ErrNoImageryAvailable, "%s %s", region, period)
}
