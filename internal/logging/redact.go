package logging

import (
	"bytes"
	"io"
	"regexp"
)

const (
	maskedURL = "http://*******"
	maskedIP  = "***.***.***.***"
)

var ipv4 = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)

// Redactor masks sensitive substrings before they reach dst: the torrent
// client URL and anything shaped like an IPv4 address.
type Redactor struct {
	dst     io.Writer
	secrets [][]byte
}

// NewRedactor wraps dst. Empty secrets are ignored.
func NewRedactor(dst io.Writer, secrets ...string) *Redactor {
	r := &Redactor{dst: dst}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, []byte(s))
		}
	}
	return r
}

// Write always reports len(p) on success so callers like zerolog do not treat
// a shortened line as a short write.
func (r *Redactor) Write(p []byte) (int, error) {
	out := p
	for _, s := range r.secrets {
		out = bytes.ReplaceAll(out, s, []byte(maskedURL))
	}
	out = ipv4.ReplaceAll(out, []byte(maskedIP))
	if _, err := r.dst.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
