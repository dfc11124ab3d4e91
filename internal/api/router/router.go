package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicore/clinic-platform/internal/appointments"
	"github.com/clinicore/clinic-platform/internal/booking"
	httpmiddleware "github.com/clinicore/clinic-platform/internal/http/middleware"
	"github.com/clinicore/clinic-platform/internal/payments"
	"github.com/clinicore/clinic-platform/internal/realtime"
	"github.com/clinicore/clinic-platform/internal/schedule"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	BookingHandler      *booking.Handler
	ScheduleHandler     *schedule.Handler
	AppointmentsHandler *appointments.Handler
	PaymentWebhook      *payments.WebhookHandler
	RealtimeHub         *realtime.Hub
	MetricsHandler      http.Handler
	AuthJWTSecret       string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health, metrics). The webhook reads the raw
	// body for signature verification, so nothing may buffer it first.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		if cfg.PaymentWebhook != nil {
			public.Post("/webhooks/stripe", cfg.PaymentWebhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated API
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.UserJWT(cfg.AuthJWTSecret))

		if cfg.RealtimeHub != nil {
			api.Get("/ws", cfg.RealtimeHub.ServeWS)
		}

		api.Route("/api", func(r chi.Router) {
			if cfg.BookingHandler != nil {
				r.Post("/bookings/intent", cfg.BookingHandler.CreateIntent)
			}
			if cfg.ScheduleHandler != nil {
				r.Get("/doctors/{doctorID}/slots", cfg.ScheduleHandler.GetBookedSlots)
			}
			if cfg.AppointmentsHandler != nil {
				r.Route("/appointments/{appointmentID}", func(r chi.Router) {
					r.Patch("/status", cfg.AppointmentsHandler.UpdateStatus)
					r.Post("/call", cfg.AppointmentsHandler.StartConsultation)
					r.Get("/payment", cfg.AppointmentsHandler.GetPaymentStatus)
				})
			}
		})
	})

	return r
}
