package notifications

import (
	"context"
	"testing"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

func TestNewSendGridSenderWithoutKey(t *testing.T) {
	if s := NewSendGridSender(SendGridConfig{}, logging.Default()); s != nil {
		t.Fatal("expected nil sender without an API key")
	}
}

func TestSendGridSenderNilReceiverErrors(t *testing.T) {
	var s *SendGridSender
	err := s.Send(context.Background(), EmailMessage{To: "ada@example.com"})
	if err == nil {
		t.Fatal("expected error from unconfigured sender")
	}
}

func TestNewSendGridSenderDefaultsFromName(t *testing.T) {
	s := NewSendGridSender(SendGridConfig{APIKey: "SG.test", FromEmail: "noreply@example.com"}, logging.Default())
	if s == nil {
		t.Fatal("expected sender with API key")
	}
	if s.fromName != "Clinicore" {
		t.Fatalf("fromName = %q, want Clinicore", s.fromName)
	}
}
