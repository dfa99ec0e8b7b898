package twitter

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Response is one successful fetch with its body exactly as received
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
	// Gzipped is set when Body is still gzip-encoded
	Gzipped bool
}

// Decoded returns the body with any gzip encoding removed
func (r *Response) Decoded() ([]byte, error) {
	if !r.Gzipped {
		return r.Body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("gzip body from %s: %w", r.URL, err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// HeaderBlob renders the headers as sorted "Name: Value" lines joined by CRLF
func (r *Response) HeaderBlob() []byte {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		for _, v := range r.Header[name] {
			lines = append(lines, name+": "+v)
		}
	}
	return []byte(strings.Join(lines, "\r\n"))
}
