package request

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/c360/dataprocessor/config"
	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/pkg/tlsutil"
)

const noConnectionMessage = "No internet connection."

type formFile struct {
	field string
	path  string
}

// HTTPBuilder assembles an HTTP request. Parts left unset come from the
// configuration: scheme, host, port and user agent.
//
//	req, err := request.NewGet(cfg).
//	    Path("news").
//	    Query("page", "2").
//	    Options(request.WithCacheFile("news.json")).
//	    Build()
type HTTPBuilder struct {
	cfg    *config.Config
	method string

	rawURL   string
	scheme   string
	user     *url.Userinfo
	host     string
	port     int
	path     string
	query    url.Values
	fragment string

	header   http.Header
	form     url.Values
	body     []byte
	bodyType string
	files    []formFile
	client   *http.Client
	opts     []Option
}

// NewGet starts a GET request.
func NewGet(cfg *config.Config) *HTTPBuilder { return newHTTPBuilder(cfg, http.MethodGet) }

// NewPost starts a POST request. Form fields are sent url-encoded unless a
// file is attached, which switches the body to multipart/form-data.
func NewPost(cfg *config.Config) *HTTPBuilder { return newHTTPBuilder(cfg, http.MethodPost) }

// NewDelete starts a DELETE request.
func NewDelete(cfg *config.Config) *HTTPBuilder { return newHTTPBuilder(cfg, http.MethodDelete) }

func newHTTPBuilder(cfg *config.Config, method string) *HTTPBuilder {
	return &HTTPBuilder{
		cfg:    cfg,
		method: method,
		query:  url.Values{},
		header: http.Header{},
		form:   url.Values{},
	}
}

// URL sets the full request URL; host, path and query settings are ignored.
func (b *HTTPBuilder) URL(u string) *HTTPBuilder {
	b.rawURL = u
	return b
}

// Scheme overrides the configured scheme.
func (b *HTTPBuilder) Scheme(scheme string) *HTTPBuilder {
	b.scheme = strings.ToLower(scheme)
	return b
}

// UserInfo adds credentials to the URL.
func (b *HTTPBuilder) UserInfo(username, password string) *HTTPBuilder {
	b.user = url.UserPassword(username, password)
	return b
}

// Host overrides the configured host.
func (b *HTTPBuilder) Host(host string) *HTTPBuilder {
	b.host = host
	return b
}

// Port overrides the configured port.
func (b *HTTPBuilder) Port(port int) *HTTPBuilder {
	b.port = port
	return b
}

// Path sets the request path; a leading slash is added when missing.
func (b *HTTPBuilder) Path(path string) *HTTPBuilder {
	b.path = path
	return b
}

// Query adds a query parameter.
func (b *HTTPBuilder) Query(key, value string) *HTTPBuilder {
	b.query.Add(key, value)
	return b
}

// Fragment sets the URL fragment.
func (b *HTTPBuilder) Fragment(fragment string) *HTTPBuilder {
	b.fragment = fragment
	return b
}

// Header adds a request header.
func (b *HTTPBuilder) Header(key, value string) *HTTPBuilder {
	b.header.Add(key, value)
	return b
}

// FormField adds a form field to the body.
func (b *HTTPBuilder) FormField(name, value string) *HTTPBuilder {
	b.form.Add(name, value)
	return b
}

// FormFile attaches a file to a multipart body.
func (b *HTTPBuilder) FormFile(field, path string) *HTTPBuilder {
	b.files = append(b.files, formFile{field: field, path: path})
	return b
}

// Body sets a raw body with its content type.
func (b *HTTPBuilder) Body(contentType string, body []byte) *HTTPBuilder {
	b.bodyType = contentType
	b.body = body
	return b
}

// Client replaces the HTTP client. The configured timeout is not applied to
// a caller-supplied client.
func (b *HTTPBuilder) Client(c *http.Client) *HTTPBuilder {
	b.client = c
	return b
}

// Options applies shared request options such as cache files and tags.
func (b *HTTPBuilder) Options(opts ...Option) *HTTPBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build validates the parts and returns a request ready to execute.
func (b *HTTPBuilder) Build() (*HTTP, error) {
	if b.cfg == nil || b.cfg.UserAgent == "" {
		return nil, errors.WrapInvalid(errors.ErrNotInitialized, "HTTPBuilder", "Build",
			"read configuration")
	}
	if b.body != nil && (len(b.form) > 0 || len(b.files) > 0) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: raw body cannot be combined with form data", errors.ErrInvalidArgument),
			"HTTPBuilder", "Build", "assemble body")
	}

	target, err := b.buildURL()
	if err != nil {
		return nil, err
	}

	client := b.client
	if client == nil {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(b.cfg.TLS)
		if err != nil {
			return nil, err
		}
		timeout := b.cfg.Timeout.Std()
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSClientConfig:       tlsConfig,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		}
	}

	h := &HTTP{
		method:   b.method,
		url:      target,
		header:   b.header.Clone(),
		form:     b.form,
		body:     b.body,
		bodyType: b.bodyType,
		files:    b.files,
		client:   client,
		escape:   b.cfg.CheckRequestString,
	}
	h.header.Set("User-Agent", b.cfg.UserAgent)
	h.init(b.opts)
	return h, nil
}

func (b *HTTPBuilder) buildURL() (string, error) {
	if b.rawURL != "" {
		u, err := url.Parse(b.rawURL)
		if err != nil || u.Host == "" {
			return "", errors.WrapInvalid(fmt.Errorf("%w: url %q", errors.ErrInvalidArgument, b.rawURL),
				"HTTPBuilder", "Build", "parse url")
		}
		return u.String(), nil
	}

	host := b.host
	if host == "" {
		host = b.cfg.Host
	}
	if host == "" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: no host configured", errors.ErrInvalidArgument),
			"HTTPBuilder", "Build", "build url")
	}
	// a configured host may carry a base path, e.g. "api.example.com/v2"
	var basePath string
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host, basePath = host[:i], host[i:]
	}

	port := b.port
	if port == 0 {
		port = b.cfg.Port
	}
	if port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(port))
	}

	scheme := b.scheme
	if scheme == "" {
		scheme = b.cfg.Scheme
	}
	if scheme == "" {
		scheme = config.DefaultScheme
	}

	path := b.path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{
		Scheme:   scheme,
		User:     b.user,
		Host:     host,
		Path:     basePath + path,
		RawQuery: b.query.Encode(),
		Fragment: b.fragment,
	}
	return u.String(), nil
}

// HTTP is a built GET, POST or DELETE request.
type HTTP struct {
	Base

	method   string
	url      string
	header   http.Header
	form     url.Values
	body     []byte
	bodyType string
	files    []formFile
	client   *http.Client
	escape   bool

	resp *http.Response
}

// Method returns the HTTP method.
func (h *HTTP) Method() string { return h.method }

// URL returns the unescaped request URL.
func (h *HTTP) URL() string { return h.url }

// String returns the URL, query-escaped when request string checking is on.
func (h *HTTP) String() string {
	if h.escape {
		return url.QueryEscape(h.url)
	}
	return h.url
}

// InputStream sends the request and returns the response body. Error
// responses still return their body; the status code tells them apart.
func (h *HTTP) InputStream(ctx context.Context) (io.ReadCloser, error) {
	h.markStarted()
	h.logCall(strings.ToLower(h.method), h.String())

	body, contentType, err := h.encodeBody()
	if err != nil {
		h.setStatus(StatusError, err.Error())
		return nil, errors.Wrap(err, "HTTP", "InputStream", "encode body")
	}

	req, err := http.NewRequestWithContext(ctx, h.method, h.url, body)
	if err != nil {
		h.setStatus(StatusError, err.Error())
		return nil, errors.WrapInvalid(err, "HTTP", "InputStream", "create request")
	}
	req.Header = h.header.Clone()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.setStatus(StatusNoConnection, noConnectionMessage)
		return nil, classifyTransportError(err, "HTTP")
	}

	h.resp = resp
	h.setStatus(resp.StatusCode, statusText(resp))
	if resp.StatusCode >= http.StatusBadRequest {
		h.logger.Warn("using error response body", "url", h.String(), "status", resp.StatusCode)
	}
	return resp.Body, nil
}

func (h *HTTP) encodeBody() (io.Reader, string, error) {
	switch {
	case h.body != nil:
		return bytes.NewReader(h.body), h.bodyType, nil
	case len(h.files) > 0:
		return h.encodeMultipart()
	case len(h.form) > 0:
		return strings.NewReader(h.form.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", nil
	}
}

func (h *HTTP) encodeMultipart() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, values := range h.form {
		for _, v := range values {
			if err := w.WriteField(name, v); err != nil {
				return nil, "", err
			}
		}
	}

	for _, ff := range h.files {
		if err := copyFormFile(w, ff); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func copyFormFile(w *multipart.Writer, ff formFile) error {
	f, err := os.Open(ff.path)
	if err != nil {
		return fmt.Errorf("%w: form file %s: %v", errors.ErrIO, ff.path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(ff.field, filepath.Base(ff.path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// Close releases the response body.
func (h *HTTP) Close() error {
	return h.closeWith(func() error {
		if h.resp == nil || h.resp.Body == nil {
			return nil
		}
		return h.resp.Body.Close()
	})
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// classifyTransportError maps a network failure to ErrConnectionTimeout or
// ErrNoConnection.
func classifyTransportError(err error, component string) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, err),
			component, "InputStream", "reach source")
	}
	return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrNoConnection, err),
		component, "InputStream", "reach source")
}

var _ Request = (*HTTP)(nil)
