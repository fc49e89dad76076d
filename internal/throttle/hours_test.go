package throttle

import (
	"strings"
	"testing"
	"time"
)

func TestIsWithinAllowedHours(t *testing.T) {
	// 12:00 UTC.
	noon := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		offset int
		want   bool
	}{
		{0, true},   // 12:00 local
		{-3, true},  // 09:00 local (São Paulo)
		{-5, false}, // 07:00 local, before window
		{9, false},  // 21:00 local, window end is exclusive
		{8, true},   // 20:00 local
	}

	for _, c := range cases {
		if got := isWithinAllowedHoursAt(c.offset, noon); got != c.want {
			t.Errorf("offset %+d at noon UTC = %v, want %v", c.offset, got, c.want)
		}
	}
}

func TestIsWithinAllowedHours_Boundaries(t *testing.T) {
	base := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	start := base.Add(8 * time.Hour) // 08:00
	if !isWithinAllowedHoursAt(0, start) {
		t.Error("08:00 should be allowed (inclusive start)")
	}
	end := base.Add(21 * time.Hour) // 21:00
	if isWithinAllowedHoursAt(0, end) {
		t.Error("21:00 should be denied (exclusive end)")
	}
}

func TestVaryText(t *testing.T) {
	variations := map[string][]string{
		"greeting": {"Oi", "Olá", "E aí"},
		"name":     {"Ana"},
	}
	out := VaryText("{greeting}, {name}! Tudo bem?", variations)

	if strings.Contains(out, "{greeting}") || strings.Contains(out, "{name}") {
		t.Errorf("placeholders not substituted: %q", out)
	}
	if !strings.Contains(out, "Ana") {
		t.Errorf("single-option key should always be used: %q", out)
	}

	found := false
	for _, g := range variations["greeting"] {
		if strings.HasPrefix(out, g) {
			found = true
		}
	}
	if !found {
		t.Errorf("greeting not drawn from options: %q", out)
	}
}

func TestVaryText_UnknownKeyLeftIntact(t *testing.T) {
	out := VaryText("hello {missing}", map[string][]string{})
	if out != "hello {missing}" {
		t.Errorf("unknown placeholder should be untouched, got %q", out)
	}
}
