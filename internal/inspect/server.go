// Package inspect serves a small debug HTTP surface over a running mini
// cluster: live actors, the coordinator's registered workers, and archived
// job results.
package inspect

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/roles"
)

const askTimeout = 2 * time.Second

// NewRouter builds the inspector router for one mini cluster.
func NewRouter(sys actor.System, coordinator, archive actor.Ref) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/actors", func(w http.ResponseWriter, _ *http.Request) {
		names := sys.Names()
		sort.Strings(names)
		writeJSON(w, http.StatusOK, map[string]any{"actors": names})
	})

	r.Get("/workers", func(w http.ResponseWriter, req *http.Request) {
		reply, err := ask(req.Context(), sys, coordinator, roles.GetWorkers{})
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		set, ok := reply.(roles.WorkerSet)
		if !ok {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "unexpected reply"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workers": set.Workers})
	})

	r.Get("/jobs/{jobID}", func(w http.ResponseWriter, req *http.Request) {
		jobID := chi.URLParam(req, "jobID")
		reply, err := ask(req.Context(), sys, archive, roles.FetchJob{JobID: jobID})
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		archived, ok := reply.(roles.ArchivedJob)
		if !ok {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "unexpected reply"})
			return
		}
		if !archived.Found {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSON(w, http.StatusOK, archived.Result)
	})

	return r
}

func ask(ctx context.Context, sys actor.System, to actor.Ref, msg any) (any, error) {
	return sys.Ask(ctx, to, msg, askTimeout)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
