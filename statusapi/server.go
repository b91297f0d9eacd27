// Package statusapi serves the bridge's read-only operational endpoints:
// liveness, Prometheus exposition, and a JSON dump of the current
// persisted cursor state, for an ops dashboard to scrape.
package statusapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/parity-relay/bridge/statedb"
)

// StateReader is the subset of *statedb.DB the status server needs.
type StateReader interface {
	Read() statedb.State
}

// Server is the bridge's status HTTP endpoint: /healthz, /metrics, /status.
type Server struct {
	addr string
	srv  *http.Server
}

// New builds a Server bound to addr (default "127.0.0.1:0" semantics are
// the caller's responsibility — statusapi doesn't pick a default so it's
// obvious in config/flag wiring where the bind address comes from). reg is
// the Prometheus registry to expose at /metrics; db is read for /status.
func New(addr string, reg *prometheus.Registry, db StateReader) *Server {
	router := httprouter.New()
	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(db.Read())
	})
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	corsWrapped := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: corsWrapped},
	}
}

// ListenAndServe blocks serving the status API until the listener fails or
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown(context.Background())
}
