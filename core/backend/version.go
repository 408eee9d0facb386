package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/apae-gestao/apae/core/logger"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

func (b *Backend) handleVersion() {
	logger.Default().Debugln("version")
	logger.Default().Debugln("  handle version route: /api/version GET")
	b.router.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, r, http.StatusOK, map[string]string{"version": Version})
	}).Methods(http.MethodOptions, http.MethodGet)
}

type health struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

func (b *Backend) handleHealth() {
	logger.Default().Debugln("  handle health route: /api/health GET")
	b.router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		h := health{Status: "ok"}
		status := http.StatusOK
		if b.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			h.Database = "ok"
			if err := b.db.PingContext(ctx); err != nil {
				logger.FromContext(r.Context()).WithError(err).Errorln("Error 4010: database ping failed")
				h.Status, h.Database = "degraded", "unreachable"
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		WriteJSON(w, r, status, h)
	}).Methods(http.MethodOptions, http.MethodGet)
}
