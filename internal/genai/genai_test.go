package genai

import (
	"os"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	orig, had := os.LookupEnv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer func() {
		if had {
			os.Setenv("OPENAI_API_KEY", orig)
		}
	}()

	if _, err := NewClient(); err == nil {
		t.Fatal("expected error when no API key is configured")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	c, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", c.model)
	}
}

func TestNewClientDefaultModel(t *testing.T) {
	c, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.model == "" {
		t.Error("expected a default model to be set")
	}
}
