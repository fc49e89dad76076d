package whatsapp

import (
	"context"
	"testing"
)

func TestMockClientSendMessage(t *testing.T) {
	m := NewMockClient()
	if err := m.SendMessage(context.Background(), "+5511999990001", "oi"); err != nil {
		t.Errorf("MockClient.SendMessage: %v", err)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	c := &Client{}
	if err := c.SendMessage(context.Background(), "+5511999990001", "oi"); err == nil {
		t.Error("expected error for uninitialized client")
	}
}
