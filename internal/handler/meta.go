package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/judgehub/internal/judge"
)

// LanguagesHandler lists the languages submissions may use.
//
// HTTP: GET /api/languages
func LanguagesHandler(languages judge.Languages) http.HandlerFunc {
	list := languages.List()
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, list)
	}
}

// Pinger is anything the health check should verify, e.g. the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports 200 when every dependency answers its ping and
// 503 with the failing names otherwise.
//
// HTTP: GET /healthz
func HealthHandler(deps map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		status := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("dependency", name), slog.String("error", err.Error()))
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}
