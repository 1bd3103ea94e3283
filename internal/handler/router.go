package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkazancev/referral-system/internal/attribution"
	custommiddleware "github.com/mkazancev/referral-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware реферального сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(attribution.Capture(h.attributionStore, h.service, h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/referrer/register", h.RegisterReferrer)
		r.Post("/referrer/login", h.LoginReferrer)
		r.Post("/client/register", h.RegisterClient)
		r.Get("/attribution", h.GetAttribution)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/referrer", func(r chi.Router) {
				r.Get("/profile", h.GetProfile)
				r.Get("/referrals", h.GetReferrals)
				r.Get("/rewards", h.GetRewards)
				r.Get("/stats", h.GetStats)
				r.Get("/payments", h.GetPayments)

				r.Post("/payouts", h.RequestPayout)
				r.Get("/payouts", h.GetPayouts)

				r.Get("/notifications", h.GetNotifications)
				r.Post("/notifications/{id}/read", h.MarkNotificationRead)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommiddleware.AdminKey(h.adminKey))

			r.Get("/referrers", h.AdminListReferrers)
			r.Patch("/referrers/{id}/status", h.AdminUpdateReferrerStatus)
			r.Delete("/referrers/{id}", h.AdminDeleteReferrer)

			r.Get("/referrals", h.AdminListReferrals)
			r.Post("/referrals/{id}/status", h.AdminUpdateReferralStatus)

			r.Post("/payments", h.AdminCreatePayment)
			r.Patch("/payments/{id}/status", h.AdminUpdatePaymentStatus)
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
