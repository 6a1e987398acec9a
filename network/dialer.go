package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"cellswarm/session"
)

const (
	DefaultOrigin         = "https://agar.io"
	DefaultAcceptEncoding = "gzip, deflate, br"
	DefaultAcceptLanguage = "es-419,es;q=0.9"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Dialer opens game connections, each through its own proxy. The header
// fields make the upgrade request look like a browser's; empty fields are
// not sent.
type Dialer struct {
	Origin         string
	UserAgent      string
	AcceptEncoding string
	AcceptLanguage string
	CacheControl   string
	Pragma         string
	// Host overrides the Host header, which otherwise comes from the address.
	Host string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
}

func NewDialer() *Dialer {
	return &Dialer{
		Origin:           DefaultOrigin,
		UserAgent:        DefaultUserAgent,
		AcceptEncoding:   DefaultAcceptEncoding,
		AcceptLanguage:   DefaultAcceptLanguage,
		CacheControl:     "no-cache",
		Pragma:           "no-cache",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        1 << 20, // 1MB
	}
}

// Dial implements session.Dialer. Certificates are not verified: game
// servers are reached by address and proxies may intercept TLS.
func (d *Dialer) Dial(ctx context.Context, address string, proxy *url.URL) (session.Transport, error) {
	wd := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
	}
	if proxy != nil {
		wd.Proxy = http.ProxyURL(proxy)
	}

	conn, resp, err := wd.DialContext(ctx, address, d.header())
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", address, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &Conn{ws: conn, writeTimeout: d.WriteTimeout}, nil
}

func (d *Dialer) header() http.Header {
	h := http.Header{}
	for _, kv := range [...][2]string{
		{"Host", d.Host},
		{"Origin", d.Origin},
		{"User-Agent", d.UserAgent},
		{"Accept-Encoding", d.AcceptEncoding},
		{"Accept-Language", d.AcceptLanguage},
		{"Cache-Control", d.CacheControl},
		{"Pragma", d.Pragma},
	} {
		if kv[1] != "" {
			h.Set(kv[0], kv[1])
		}
	}
	return h
}

// Conn adapts a websocket to session.Transport. Send is called from one
// goroutine and Receive from another; Close may race with both.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func (c *Conn) Send(b []byte) error {
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, b)
}

// Receive returns the next binary message. Text frames are skipped.
func (c *Conn) Receive() ([]byte, error) {
	for {
		mt, msg, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

func (c *Conn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}
