package twitter

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Conn is a worker-owned keep-alive connection to the API host. It is built
// lazily and only torn down by an explicit Reconnect.
type Conn struct {
	timeout time.Duration

	mu         sync.Mutex
	transport  *http.Transport
	client     *http.Client
	generation int
}

// NewConn creates an unopened connection; timeout bounds a whole request
func NewConn(timeout time.Duration) *Conn {
	return &Conn{timeout: timeout}
}

// Do sends req over the current connection, opening it if needed.
// Redirect responses are returned as-is.
func (c *Conn) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient().Do(req)
}

// Reconnect drops the current connection; the next Do opens a fresh one
func (c *Conn) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.transport = nil
	c.client = nil
}

// Generation counts how many times the connection has been opened
func (c *Conn) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Close releases idle sockets
func (c *Conn) Close() {
	c.Reconnect()
}

func (c *Conn) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client
	}

	c.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     90 * time.Second,
		// gzipped bodies are stored verbatim
		DisableCompression: true,
	}
	c.client = &http.Client{
		Transport: c.transport,
		Timeout:   c.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	c.generation++
	return c.client
}
