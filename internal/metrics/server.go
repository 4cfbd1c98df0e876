package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/vendsim/internal/report"
	"github.com/temoto/vendsim/log2"
)

const shutdownTimeout = 5 * time.Second

// NewRouter serves /metrics for Prometheus and /status with the text report.
func NewRouter(m *Metrics, inv report.Snapshoter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.With(middleware.NoCache).Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, report.Status(inv))
	})
	return r
}

// Serve listens on addr until `a` is stopped. Bind errors are returned immediately.
func Serve(a *alive.Alive, log *log2.Log, addr string, h http.Handler) (net.Addr, error) {
	const tag = "metrics.serve"
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "%s listen=%s", tag, addr)
	}
	if !a.Add(1) {
		ln.Close()
		return nil, errors.Errorf("%s stopping", tag)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-a.StopChan()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("%s shutdown err=%v", tag, err)
		}
	}()
	go func() {
		defer a.Done()
		log.Infof("%s listen=%s", tag, ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("%s err=%v", tag, err)
		}
	}()
	return ln.Addr(), nil
}
