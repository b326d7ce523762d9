package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authapi "wishd/internal/auth/api"
	"wishd/internal/presence"
	"wishd/internal/ratelimit"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	limiter *ratelimit.Limiter,
	rateTC ratelimit.TransportConfig,
	auth *authapi.Handler,
	gateway *presence.Gateway,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	// Every /api route passes through the visitor rate limiter. The
	// websocket endpoint has its own admission checks and stays outside.
	api := http.NewServeMux()
	auth.Register(api)
	mux.Handle("/api/", ratelimit.Middleware(limiter, rateTC, log, api))

	mux.HandleFunc("/ws", gateway.HandleWS)
}
