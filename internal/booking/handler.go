package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	httpmiddleware "github.com/clinicore/clinic-platform/internal/http/middleware"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

// Handler exposes booking-intent creation.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the booking handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createIntentRequest struct {
	DoctorID  string  `json:"doctor_id"`
	Date      string  `json:"appointment_date"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Type      string  `json:"type"`
	Fee       float64 `json:"fee"`
	Symptoms  string  `json:"symptoms"`
}

// CreateIntent handles POST /api/bookings/intent for the authenticated
// patient.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	user, ok := httpmiddleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), Request{
		DoctorID:  doctorID,
		PatientID: user.UserID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Type:      req.Type,
		Fee:       req.Fee,
		Symptoms:  req.Symptoms,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(intent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidTime),
		errors.Is(err, ErrInvalidInterval), errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidFee), errors.Is(err, ErrPastDate),
		errors.Is(err, ErrPastTime):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrPatientNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrSlotUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrGateway):
		http.Error(w, "payment gateway unavailable", http.StatusBadGateway)
	default:
		h.logger.Error("booking intent failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
