package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/username/nestegg/backend/src/utils"
)

type RouterConfig struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter mounts every API route behind the shared middleware stack.
func NewRouter(cfg RouterConfig, importHandler *ImportHandler, institutionHandler *InstitutionHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"message": "Statement import backend is running"}, http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerTokenMiddleware)

		r.Get("/institutions", institutionHandler.HandleListInstitutions)
		r.Post("/classify", institutionHandler.HandleClassify)
		r.Post("/map", institutionHandler.HandleMap)

		r.Route("/import", func(r chi.Router) {
			r.Post("/preview", importHandler.HandlePreview)
			r.Get("/history", importHandler.HandleHistory)
			r.Post("/{sessionID}/confirm", importHandler.HandleConfirm)
			r.Delete("/{sessionID}", importHandler.HandleCancel)
		})
	})
	return r
}
