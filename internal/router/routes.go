package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tinoosan/seedstat/internal/auth"
	"github.com/tinoosan/seedstat/internal/poller"
)

// Health is the view of the poller the HTTP endpoints need.
type Health interface {
	Ready() bool
	Status() poller.Status
}

type statusBody struct {
	LastCycle   *time.Time `json:"last_cycle,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Torrents    int        `json:"torrents"`
	Cycles      int64      `json:"cycles"`
	Ready       bool       `json:"ready"`
}

// New sets up the monitoring routes and middleware. A non-empty token is
// required as a bearer token on all routes except the health checks.
func New(logger zerolog.Logger, h Health, token string) *mux.Router {
	logger = logger.With().Str("component", "http").Logger()

	r := mux.NewRouter()
	r.Use(RequestID)
	r.Use(Log(logger))
	r.Use(auth.Middleware(token))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error().Err(err).Msg("write healthz response")
		}
	}).Methods("GET")

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !h.Ready() {
			http.Error(w, "no successful poll yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := h.Status()
		body := statusBody{
			LastCycle:   timePtr(st.LastCycle),
			LastSuccess: timePtr(st.LastSuccess),
			LastError:   st.LastError,
			Torrents:    st.Torrents,
			Cycles:      st.Cycles,
			Ready:       h.Ready(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error().Err(err).Msg("write status response")
		}
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
