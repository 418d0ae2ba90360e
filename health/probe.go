package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c360/dataprocessor/errors"
)

// Prober checks whether a site answers HTTP requests.
type Prober struct {
	client    *http.Client
	userAgent string
}

// NewProber creates a prober whose requests time out after timeout.
func NewProber(timeout time.Duration, userAgent string) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// WithTLS makes the prober use c for https URLs. A nil c keeps the defaults.
func (p *Prober) WithTLS(c *tls.Config) *Prober {
	if c != nil {
		p.client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: c,
		}
	}
	return p
}

// Check sends a HEAD request to rawURL, falling back to GET when the server
// rejects HEAD. Any response below 500 counts as reachable.
func (p *Prober) Check(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Prober", "Check", "empty url")
	}

	code, err := p.do(ctx, http.MethodHead, rawURL)
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = p.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return err
	}
	if code >= http.StatusInternalServerError {
		return errors.WrapTransient(fmt.Errorf("%w: status %d", errors.ErrIO, code), "Prober", "Check", "probe "+rawURL)
	}
	return nil
}

func (p *Prober) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, errors.WrapInvalid(err, "Prober", "Check", "build request")
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, errors.WrapTransient(err, "Prober", "Check", "probe "+rawURL)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// Probe checks rawURL and reports the result as a status.
func (p *Prober) Probe(ctx context.Context, name, rawURL string) Status {
	return FromError(name, p.Check(ctx, rawURL))
}
