package router

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/reqid"
)

const headerRequestID = "X-Request-ID"

// RequestID honors an incoming X-Request-ID or generates one, stores it in
// the request context and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := reqid.With(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Log writes one access line per request; scrapes of /metrics are logged at
// debug.
func Log(l zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &rwLogger{ResponseWriter: w}
			next.ServeHTTP(rw, r)
			if rw.status == 0 {
				rw.status = http.StatusOK
			}

			ev := l.Info()
			switch {
			case rw.status >= 500:
				ev = l.Error()
			case r.URL.Path == "/metrics":
				ev = l.Debug()
			}
			if id, ok := reqid.From(r.Context()); ok {
				ev = ev.Str("request_id", id)
			}
			ev.Str("method", r.Method).
				Str("url", r.URL.Path).
				Int("status", rw.status).
				Str("remote", r.RemoteAddr).
				Str("ua", r.UserAgent()).
				Int64("dur_ms", time.Since(start).Milliseconds()).
				Int("bytes", rw.bytes).
				Send()
		})
	}
}
