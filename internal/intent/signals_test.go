package intent

import (
	"testing"

	"github.com/corevida/leadflow/internal/models"
)

func TestDetectConversationSignals(t *testing.T) {
	cases := []struct {
		message string
		want    []models.Signal
	}{
		{"Quanto custa o kit?", []models.Signal{models.SignalAskedPrice}},
		{"como começar?", []models.Signal{models.SignalAskedHowToStart}},
		{"não consigo emagrecer, já tentei de tudo", []models.Signal{models.SignalSharedPain}},
		{"me fala da renda extra", []models.Signal{models.SignalAskedBusiness}},
		{"bom dia", nil},
	}
	for _, c := range cases {
		got := DetectConversationSignals(c.message)
		if len(got) != len(c.want) {
			t.Errorf("DetectConversationSignals(%q) = %v, want %v", c.message, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("DetectConversationSignals(%q)[%d] = %s, want %s", c.message, i, got[i], c.want[i])
			}
		}
	}
}

func TestDetectConversationSignals_OrderStable(t *testing.T) {
	msg := "quanto custa? tenho interesse, quero saber mais"
	first := DetectConversationSignals(msg)
	for i := 0; i < 10; i++ {
		again := DetectConversationSignals(msg)
		if len(again) != len(first) {
			t.Fatalf("signal count varied between runs")
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("signal order varied between runs: %v vs %v", again, first)
			}
		}
	}
	if len(first) == 0 || first[0] != models.SignalAskedPrice {
		t.Errorf("expected asked_price first, got %v", first)
	}
}

func TestCalculateHandoffScore(t *testing.T) {
	score := CalculateHandoffScore(0, []models.Signal{
		models.SignalAskedPrice,
		models.SignalAskedHowToStart,
	})
	if score != 35 {
		t.Errorf("score = %d, want 35", score)
	}
}

func TestCalculateHandoffScore_RejectionClampsToZero(t *testing.T) {
	for _, base := range []int{0, 10, 25, 40} {
		if got := CalculateHandoffScore(base, []models.Signal{models.SignalRejected}); got != 0 {
			t.Errorf("base %d with rejection = %d, want 0", base, got)
		}
	}
}

func TestCalculateHandoffScore_RejectionDropsBelowThreshold(t *testing.T) {
	// A hot lead that rejects must fall back below the handoff threshold.
	got := CalculateHandoffScore(90, []models.Signal{models.SignalRejected})
	if ShouldHandoff(got) {
		t.Errorf("score %d after rejection should not trigger handoff", got)
	}
}

func TestCalculateHandoffScore_ClampsHigh(t *testing.T) {
	signals := []models.Signal{
		models.SignalAskedPrice,
		models.SignalAskedHowToStart,
		models.SignalExpressedInterest,
	}
	if got := CalculateHandoffScore(95, signals); got != 100 {
		t.Errorf("score = %d, want clamped 100", got)
	}
}

func TestShouldHandoff(t *testing.T) {
	if ShouldHandoff(74) {
		t.Error("74 should not trigger handoff")
	}
	if !ShouldHandoff(75) {
		t.Error("75 should trigger handoff")
	}
	if !ShouldHandoff(100) {
		t.Error("100 should trigger handoff")
	}
}
