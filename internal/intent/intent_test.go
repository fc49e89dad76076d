package intent

import (
	"testing"

	"github.com/corevida/leadflow/internal/models"
)

func TestScoreIntent_NoMatches(t *testing.T) {
	for _, text := range []string{"", "olá tudo bem", "bom dia!", "???"} {
		score := ScoreIntent(text)
		if score.Product != 0 || score.Business != 0 || score.Urgency != 0 {
			t.Errorf("ScoreIntent(%q) sub-scores = %d/%d/%d, want all zero", text, score.Product, score.Business, score.Urgency)
		}
		if score.Total != 0 {
			t.Errorf("ScoreIntent(%q) total = %d, want 0", text, score.Total)
		}
		if score.PrimaryProfile != models.ProfileNone {
			t.Errorf("ScoreIntent(%q) profile = %s, want none", text, score.PrimaryProfile)
		}
		if score.Priority != models.PriorityPassive {
			t.Errorf("ScoreIntent(%q) priority = %s, want passive", text, score.Priority)
		}
	}
}

func TestScoreIntent_DiacriticInsensitive(t *testing.T) {
	accented := ScoreIntent("Preciso de mais DISPOSIÇÃO e saúde")
	plain := ScoreIntent("preciso de mais disposicao e saude")
	if accented != plain {
		t.Errorf("accented and plain scores differ: %+v vs %+v", accented, plain)
	}
	if accented.Product == 0 {
		t.Error("expected product keywords to score")
	}
}

func TestScoreIntent_Clamping(t *testing.T) {
	// Stack enough distinct product keywords to exceed 100 before clamping.
	text := "quero emagrecer, perder peso, quero comprar o shake, mais energia, saude, nutricao, produto com resultado, dieta"
	score := ScoreIntent(text)
	if score.Product != 100 {
		t.Errorf("product score = %d, want clamped 100", score.Product)
	}
	for name, v := range map[string]int{"product": score.Product, "business": score.Business, "urgency": score.Urgency} {
		if v < 0 || v > 100 {
			t.Errorf("%s score %d outside [0,100]", name, v)
		}
	}
}

func TestScoreIntent_PrimaryProfile(t *testing.T) {
	cases := []struct {
		text string
		want models.Profile
	}{
		{"quero emagrecer e perder peso", models.ProfileProduct},
		{"quero uma renda extra e ganhar dinheiro", models.ProfileBusiness},
		{"quero emagrecer e tambem ter renda extra", models.ProfileBoth},
		{"oi", models.ProfileNone},
	}
	for _, c := range cases {
		if got := ScoreIntent(c.text).PrimaryProfile; got != c.want {
			t.Errorf("ScoreIntent(%q).PrimaryProfile = %s, want %s", c.text, got, c.want)
		}
	}
}

func TestScoreIntent_Priority(t *testing.T) {
	// Urgency alone can promote to immediate.
	urgent := ScoreIntent("preciso urgente para hoje")
	if urgent.Priority != models.PriorityImmediate {
		t.Errorf("urgent priority = %s, want immediate", urgent.Priority)
	}

	warm := ScoreIntent("quero emagrecer, perder peso e ter renda extra com esse negocio")
	if warm.Priority == models.PriorityPassive {
		t.Errorf("keyword-heavy message should not be passive, got %s", warm.Priority)
	}
}

func TestScoreIntent_TotalIsRoundedMean(t *testing.T) {
	score := ScoreIntent("quero emagrecer agora")
	want := int(float64(score.Product+score.Business+score.Urgency)/3.0 + 0.5)
	if score.Total != want {
		t.Errorf("total = %d, want rounded mean %d", score.Total, want)
	}
}
