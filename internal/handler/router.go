package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/tmercier/ecopanier-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса EcoPanier.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Get("/baskets", h.GetBaskets)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders", h.PlaceOrder)

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", h.GetProfile)
				r.Get("/orders", h.GetOrders)
				r.Get("/badges", h.GetBadges)
				r.Get("/challenges", h.GetChallenges)
				r.Get("/impact", h.GetImpact)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireAdmin)

				r.Get("/baskets", h.AdminGetBaskets)
				r.Post("/baskets", h.AdminCreateBasket)
				r.Get("/orders", h.AdminGetOrders)
				r.Get("/students", h.AdminGetStudents)
				r.Get("/stats", h.AdminGetStats)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
