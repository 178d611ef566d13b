package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/archive"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Results serves the read-only snapshot of a finished game.
func Results(archiver *archive.Archiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pin := chi.URLParam(r, "pin")
		snap, ok := archiver.Results(pin)
		if !ok {
			http.Error(w, "no results for pin", http.StatusNotFound)
			return
		}
		writeJSON(w, snap)
	}
}

func History(archiver *archive.Archiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := archiver.History(r.Context())
		if err != nil {
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		writeJSON(w, recs)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
