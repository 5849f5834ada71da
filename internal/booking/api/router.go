package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-booking/internal/auth"
)

// Routes builds the booking gateway router. Intake, token resolution and
// login are public; everything that changes booking state is admin-only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// --- Public Routes ---
	r.Post("/api/v1/leads", h.CaptureLead)
	r.Post("/api/v1/auth/login", h.Login)
	r.Post("/api/v1/setup", h.Setup)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1/bookings", func(r chi.Router) {
		// Intake and the client portal deep link are public
		r.Post("/", h.Submit)
		r.Get("/token/{token}", h.GetByToken)

		// --- Admin Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Config.Bootstrap.AdminJWTSecret, "admin"))

			r.Get("/", h.ListBookings)
			r.Get("/{bookingID}", h.GetBooking)
			r.Post("/{bookingID}/approve", h.Approve)
			r.Post("/{bookingID}/counter", h.Counter)
			r.Post("/{bookingID}/reject", h.Reject)
			r.Post("/{bookingID}/archive", h.Archive)
			r.Get("/{bookingID}/provisioning", h.ProvisionSteps)
			r.Post("/{bookingID}/provisioning/retry", h.RetryProvisioning)
		})
	})

	return r
}
