package payments

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-platform/internal/schedule"
)

// ReservationIntent is the booking tuple carried through the gateway as intent
// metadata. It is never persisted: it either becomes a committed appointment
// in the webhook or vanishes with the abandoned payment.
type ReservationIntent struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string // YYYY-MM-DD
	StartTime string // HH:MM
	EndTime   string // HH:MM
	Type      string
	FeeCents  int64
	Symptoms  string
}

// Metadata flattens the reservation into the string map the gateway stores.
// Every field must be recoverable from this map alone.
func (ri ReservationIntent) Metadata() map[string]string {
	return map[string]string{
		"doctor_id":        ri.DoctorID.String(),
		"patient_id":       ri.PatientID.String(),
		"appointment_date": ri.Date,
		"start_time":       ri.StartTime,
		"end_time":         ri.EndTime,
		"type":             ri.Type,
		"fee_cents":        strconv.FormatInt(ri.FeeCents, 10),
		"symptoms":         ri.Symptoms,
	}
}

// reservationFromMetadata rebuilds the reservation from intent metadata.
// ok is false when the map was not written by this service, which the
// reconciler treats as "not ours": acknowledged and ignored.
func reservationFromMetadata(md map[string]string) (ReservationIntent, bool) {
	var ri ReservationIntent
	if md == nil {
		return ri, false
	}

	doctorID, err := uuid.Parse(md["doctor_id"])
	if err != nil {
		return ri, false
	}
	patientID, err := uuid.Parse(md["patient_id"])
	if err != nil {
		return ri, false
	}
	if _, err := schedule.ParseClock(md["start_time"]); err != nil {
		return ri, false
	}
	if _, err := schedule.ParseClock(md["end_time"]); err != nil {
		return ri, false
	}
	if md["appointment_date"] == "" || md["type"] == "" {
		return ri, false
	}
	feeCents, err := strconv.ParseInt(md["fee_cents"], 10, 64)
	if err != nil {
		return ri, false
	}

	ri.DoctorID = doctorID
	ri.PatientID = patientID
	ri.Date = md["appointment_date"]
	ri.StartTime = md["start_time"]
	ri.EndTime = md["end_time"]
	ri.Type = md["type"]
	ri.FeeCents = feeCents
	ri.Symptoms = md["symptoms"]
	return ri, true
}
