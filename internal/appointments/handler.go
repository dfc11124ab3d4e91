package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	httpmiddleware "github.com/clinicore/clinic-platform/internal/http/middleware"
	"github.com/clinicore/clinic-platform/internal/identity"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

// Handler exposes the lifecycle operations over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/appointments/{id}/status. Only the doctor
// on the appointment may transition it.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := httpmiddleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if user.Role != identity.RoleDoctor {
		http.Error(w, "only the doctor may update appointment status", http.StatusForbidden)
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	appt, err := h.service.SetStatus(r.Context(), user.UserID, apptID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

type startCallRequest struct {
	Type string `json:"type"`
}

// StartConsultation handles POST /api/appointments/{id}/call. Either party
// may trigger the handoff.
func (h *Handler) StartConsultation(w http.ResponseWriter, r *http.Request) {
	user, ok := httpmiddleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	session, err := h.service.StartConsultation(r.Context(), user.UserID, apptID, req.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

type paymentStatusResponse struct {
	AppointmentID string `json:"appointment_id"`
	PaymentStatus string `json:"payment_status"`
	PaymentID     string `json:"payment_id,omitempty"`
}

// GetPaymentStatus handles GET /api/appointments/{id}/payment. Clients poll
// it while waiting for the asynchronous confirmation.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := httpmiddleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := h.service.GetForParty(r.Context(), user.UserID, apptID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(paymentStatusResponse{
		AppointmentID: appt.ID.String(),
		PaymentStatus: appt.PaymentStatus,
		PaymentID:     appt.PaymentID,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "not a party on this appointment", http.StatusForbidden)
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNotRemote):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStale), errors.Is(err, ErrTypeMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrSigningUnavailable):
		h.logger.Error("room token signing failed", "error", err)
		http.Error(w, "consultation unavailable", http.StatusInternalServerError)
	default:
		h.logger.Error("appointment operation failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
