package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/corevida/leadflow/internal/twiliowhatsapp"
)

func TestTwilioServiceSendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+55 (11) 99999-0001", "oi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "5511999990001" {
		t.Errorf("recipient = %q, want canonicalized number", mock.SentMessages[0].To)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "5511999990001" {
			t.Errorf("receipt to = %q", receipt.To)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestTwilioServiceSendAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendMessage(context.Background(), "5511999990001", "oi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestTwilioWebhookHandler(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5511999990001")
	form.Set("Body", "oi, quero saber mais")
	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	svc.WebhookHandler(w, req)
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}

	select {
	case msg := <-svc.Responses():
		if msg.From != "whatsapp:+5511999990001" || msg.Body != "oi, quero saber mais" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Error("expected an inbound message")
	}
}

func TestTwilioWebhookMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader("From=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	svc.WebhookHandler(w, req)
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+55 11 99999-0001", "5511999990001", false},
		{"5511999990001", "5511999990001", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, tc := range cases {
		got, err := svc.ValidateAndCanonicalizeRecipient(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) err = %v", tc.in, err)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
