package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/archive"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/ws"
)

func SetupRoutes(gw *ws.Gateway, archiver *archive.Archiver) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", gw.Handler())
	r.Get("/healthz", Healthz)

	// Post-game queries served from the archiver.
	r.Get("/results/{pin}", Results(archiver))
	r.Get("/history", History(archiver))
	return r
}
