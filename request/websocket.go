package request

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/dataprocessor/errors"
)

// WebSocket dials an endpoint, optionally sends one text message and reads
// the first message the server sends back.
type WebSocket struct {
	Base
	url     string
	message []byte
	header  http.Header
	timeout time.Duration
	dialer  *websocket.Dialer

	conn *websocket.Conn
}

// NewWebSocket returns a request for the ws:// or wss:// url. A zero timeout
// leaves reads unbounded.
func NewWebSocket(url string, message []byte, timeout time.Duration, opts ...Option) *WebSocket {
	w := &WebSocket{
		url:     url,
		message: message,
		header:  http.Header{},
		timeout: timeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}
	w.init(opts)
	return w
}

// SetHeader sets a handshake header.
func (w *WebSocket) SetHeader(key, value string) *WebSocket {
	w.header.Set(key, value)
	return w
}

// SetTLSConfig sets the TLS settings used for wss:// handshakes.
func (w *WebSocket) SetTLSConfig(c *tls.Config) *WebSocket {
	w.dialer.TLSClientConfig = c
	return w
}

// InputStream connects and returns a reader over the first message.
func (w *WebSocket) InputStream(ctx context.Context) (io.ReadCloser, error) {
	w.markStarted()
	w.logCall("websocket", w.url)

	conn, resp, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		if resp != nil {
			w.setStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
			return nil, errors.Wrap(fmt.Errorf("%w: handshake rejected: %v", errors.ErrIO, err),
				"WebSocket", "InputStream", "dial")
		}
		w.setStatus(StatusNoConnection, noConnectionMessage)
		return nil, classifyTransportError(err, "WebSocket")
	}
	w.conn = conn
	w.setStatus(resp.StatusCode, http.StatusText(resp.StatusCode))

	if w.message != nil {
		if err := conn.WriteMessage(websocket.TextMessage, w.message); err != nil {
			return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrIO, err),
				"WebSocket", "InputStream", "write message")
		}
	}

	if w.timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(w.timeout)); err != nil {
			return nil, errors.Wrap(err, "WebSocket", "InputStream", "set read deadline")
		}
	}

	_, reader, err := conn.NextReader()
	if err != nil {
		return nil, classifyTransportError(err, "WebSocket")
	}
	return io.NopCloser(reader), nil
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	return w.closeWith(func() error {
		if w.conn == nil {
			return nil
		}
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return w.conn.Close()
	})
}

// String returns the endpoint url.
func (w *WebSocket) String() string { return w.url }
