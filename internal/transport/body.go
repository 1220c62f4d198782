package transport

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxBody bounds how much of a response is read into memory.
const maxBody = 64 << 20

// ReadBody reads and closes resp.Body, gunzipping it when the server set
// Content-Encoding: gzip. Go's transport only decompresses on its own when it
// added Accept-Encoding itself, so clients that ask for gzip explicitly rely
// on this.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	var r io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	b, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
