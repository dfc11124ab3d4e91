package schedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

// Handler exposes the read-only availability projection.
type Handler struct {
	ledger *Ledger
	logger *logging.Logger
}

// NewHandler creates the availability handler.
func NewHandler(ledger *Ledger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ledger: ledger, logger: logger}
}

type bookedSlotsResponse struct {
	DoctorID string     `json:"doctor_id"`
	Date     string     `json:"date"`
	Booked   []Interval `json:"booked"`
}

// GetBookedSlots returns the occupied intervals for a doctor and date.
func (h *Handler) GetBookedSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}
	date := r.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	booked, err := h.ledger.BookedIntervals(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("booked intervals lookup failed", "error", err, "doctor_id", doctorID, "date", date)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if booked == nil {
		booked = []Interval{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bookedSlotsResponse{
		DoctorID: doctorID.String(),
		Date:     date,
		Booked:   booked,
	})
}
