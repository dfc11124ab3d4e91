package payments

import (
	"testing"

	"github.com/google/uuid"
)

func TestReservationMetadataRoundTrip(t *testing.T) {
	ri := ReservationIntent{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      "2026-09-15",
		StartTime: "09:00",
		EndTime:   "09:30",
		Type:      "video",
		FeeCents:  5000,
		Symptoms:  "persistent cough",
	}

	got, ok := reservationFromMetadata(ri.Metadata())
	if !ok {
		t.Fatal("expected round-tripped metadata to parse")
	}
	if got != ri {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, ri)
	}
}

func TestReservationFromMetadataRejectsForeignIntents(t *testing.T) {
	valid := ReservationIntent{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      "2026-09-15",
		StartTime: "09:00",
		EndTime:   "09:30",
		Type:      "clinic",
		FeeCents:  2500,
	}

	corrupt := func(mutate func(md map[string]string)) map[string]string {
		md := valid.Metadata()
		mutate(md)
		return md
	}

	cases := []struct {
		name string
		md   map[string]string
	}{
		{"nil map", nil},
		{"empty map", map[string]string{}},
		{"bad doctor id", corrupt(func(md map[string]string) { md["doctor_id"] = "not-a-uuid" })},
		{"bad patient id", corrupt(func(md map[string]string) { md["patient_id"] = "" })},
		{"bad start time", corrupt(func(md map[string]string) { md["start_time"] = "9am" })},
		{"bad end time", corrupt(func(md map[string]string) { md["end_time"] = "25:00" })},
		{"missing date", corrupt(func(md map[string]string) { md["appointment_date"] = "" })},
		{"missing type", corrupt(func(md map[string]string) { md["type"] = "" })},
		{"bad fee", corrupt(func(md map[string]string) { md["fee_cents"] = "fifty" })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := reservationFromMetadata(tc.md); ok {
				t.Fatal("expected metadata to be rejected")
			}
		})
	}
}
