package provider

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"net/url"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
	"github.com/sells-group/urban-sprawl/internal/resilience"
)

// FTPProvider retrieves <dir>/<region>/<YYYY_MM>.asc.gz from an FTP server,
// the layout used by the export mirror.
type FTPProvider struct {
	host, dir  string
	user, pass string
	SRID       int
	Timeout    time.Duration
}

// NewFTPProvider parses ftp://[user:pass@]host[:port]/dir.
func NewFTPProvider(rawURL string, srid int) (*FTPProvider, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "provider: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return nil, eris.Errorf("provider: expected ftp scheme, got %q", u.Scheme)
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	p := &FTPProvider{host: host, dir: u.Path, user: "anonymous", pass: "anonymous@", SRID: srid, Timeout: 30 * time.Second}
	if u.User != nil {
		p.user = u.User.Username()
		p.pass, _ = u.User.Password()
	}
	return p, nil
}

// Path returns the remote file for a period.
func (p *FTPProvider) Path(region string, period model.Period) string {
	return path.Join("/", p.dir, region, period.Key()+".asc.gz")
}

// Raster implements Provider. A 550 reply means the file does not exist.
func (p *FTPProvider) Raster(ctx context.Context, region string, period model.Period) (*raster.ClassificationRaster, error) {
	remote := p.Path(region, period)
	op := "retr " + remote
	zap.L().Debug("provider: ftp connect", zap.String("host", p.host), zap.String("path", remote))

	conn, err := ftp.Dial(p.host, ftp.DialWithTimeout(p.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, NewProviderError(op, 0, err)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(p.user, p.pass); err != nil {
		return nil, replyError("login", err)
	}
	resp, err := conn.Retr(remote)
	if err != nil {
		var te *textproto.Error
		if errors.As(err, &te) && te.Code == ftp.StatusFileUnavailable {
			return nil, eris.Wrapf(ErrNoImageryAvailable, "%s %s", region, period)
		}
		return nil, replyError(op, err)
	}
	defer resp.Close() //nolint:errcheck
	return decode(resp, remote, p.SRID)
}

// replyError keeps 4xx replies and transport failures retryable and returns
// any other reply as a permanent error.
func replyError(op string, err error) error {
	var te *textproto.Error
	if errors.As(err, &te) {
		if resilience.TransientReply(te.Code) {
			return NewProviderError(op, te.Code, err)
		}
		return eris.Wrapf(err, "provider: ftp %s", op)
	}
	return NewProviderError(op, 0, err)
}
