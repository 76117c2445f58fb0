package router

import (
	"testing"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

func TestClassifyByLanguage(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	cases := []struct {
		name string
		text string
		want contractx.AgentType
	}{
		{"en track", "Where is my order?", contractx.AgentTypeAssistance},
		{"en browse", "Show me hoodies", contractx.AgentTypeTransactional},
		{"en refund", "I need a refund for this", contractx.AgentTypeAssistance},
		{"es browse", "Estoy buscando una camiseta roja", contractx.AgentTypeTransactional},
		{"es cancel", "Quiero cancelar mi pedido", contractx.AgentTypeAssistance},
		{"pt browse", "Estou procurando um moletom", contractx.AgentTypeTransactional},
		{"pt track", "Onde está meu pedido?", contractx.AgentTypeAssistance},
		{"de browse", "Ich suche einen Kapuzenpullover", contractx.AgentTypeTransactional},
		{"de cancel", "Ich will meine Bestellung stornieren", contractx.AgentTypeAssistance},
		{"fr browse", "Je cherche des baskets", contractx.AgentTypeTransactional},
		{"fr track", "Où est ma commande ?", contractx.AgentTypeAssistance},
		{"th browse", "อยากได้เสื้อสักตัว", contractx.AgentTypeTransactional},
		{"th track", "พัสดุของถึงไหนแล้ว", contractx.AgentTypeAssistance},
		{"th-rom browse", "mee mai suea sii daeng", contractx.AgentTypeTransactional},
		{"th-rom track", "phatsadu khong theung nai", contractx.AgentTypeAssistance},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := r.Classify(tc.text, History{})
			if got.Agent != tc.want {
				t.Fatalf("Classify(%q) routed to %s (%.2f, %v), want %s",
					tc.text, got.Agent, got.Confidence, got.MatchedPatternIDs, tc.want)
			}
		})
	}
}

func TestClassifyConfidenceOnClearIntent(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	track := r.Classify("Where is my order?", History{})
	if track.Confidence < 0.9 {
		t.Fatalf("track confidence %.2f, want >= 0.9", track.Confidence)
	}
	browse := r.Classify("Show me hoodies", History{})
	if browse.Confidence < 0.9 {
		t.Fatalf("browse confidence %.2f, want >= 0.9", browse.Confidence)
	}
}

func TestClassifyIsReferentiallyTransparent(t *testing.T) {
	t.Parallel()

	r := New(Config{})
	hist := History{HasRecentOrder: true}

	first := r.Classify("do you have sneakers in stock", hist)
	for i := 0; i < 50; i++ {
		again := r.Classify("do you have sneakers in stock", hist)
		if again.Agent != first.Agent || again.Confidence != first.Confidence {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
		if len(again.MatchedPatternIDs) != len(first.MatchedPatternIDs) {
			t.Fatalf("run %d matched ids diverged: %v vs %v", i, again.MatchedPatternIDs, first.MatchedPatternIDs)
		}
	}
}

func TestTieFavorsTransactional(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	// Higher weight wins: "refunds" (0.93) beats "i want" (0.92).
	got := r.Classify("i want a refunds update and i want hoodies", History{})
	if got.Agent != contractx.AgentTypeAssistance {
		t.Fatalf("routed to %s, want assistance on higher weight", got.Agent)
	}

	// Equal weights tie: "what sizes" and "warranty" both score 0.85, and the
	// tie goes to the transactional specialist.
	tie := r.Classify("what sizes does the warranty cover", History{})
	if tie.Agent != contractx.AgentTypeTransactional {
		t.Fatalf("tie routed to %s, want transactional", tie.Agent)
	}
	if tie.Confidence != 0.85 {
		t.Fatalf("tie confidence %.2f, want 0.85", tie.Confidence)
	}
}

func TestFallbackProductNoun(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	// "moletom" is in the noun fallback but its singular escapes the pattern
	// tables, so only the fallback chain can catch it.
	got := r.Classify("aquele moletom azul de ontem", History{})
	if got.Agent != contractx.AgentTypeTransactional {
		t.Fatalf("routed to %s, want transactional on product noun", got.Agent)
	}
	if got.Confidence != 0.6 {
		t.Fatalf("confidence %.2f, want 0.60 fallback score", got.Confidence)
	}
}

func TestFallbackShortMessage(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	got := r.Classify("ok thanks", History{})
	if got.Agent != contractx.AgentTypeAssistance {
		t.Fatalf("routed to %s, want assistance for short message", got.Agent)
	}
	if got.Confidence != 0.5 {
		t.Fatalf("confidence %.2f, want 0.50", got.Confidence)
	}
}

func TestFallbackRecentOrder(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	text := "about the thing from before please"
	withOrder := r.Classify(text, History{HasRecentOrder: true})
	if withOrder.Agent != contractx.AgentTypeAssistance {
		t.Fatalf("with recent order routed to %s, want assistance", withOrder.Agent)
	}
	if withOrder.Confidence != 0.45 {
		t.Fatalf("confidence %.2f, want 0.45", withOrder.Confidence)
	}

	without := r.Classify(text, History{})
	if without.Agent != contractx.AgentTypeTransactional {
		t.Fatalf("without recent order routed to %s, want transactional default", without.Agent)
	}
	if without.Confidence != 0.4 {
		t.Fatalf("confidence %.2f, want 0.40", without.Confidence)
	}
}

func TestFallbackChainOrderIsConfigurable(t *testing.T) {
	t.Parallel()

	// With short_message ahead of product_noun, a two-token message with a
	// product noun goes to assistance instead.
	r := New(Config{FallbackChain: []string{StepShortMessage, StepProductNoun, StepDefaultTransactional}})

	got := r.Classify("moletom azul", History{})
	if got.Agent != contractx.AgentTypeAssistance {
		t.Fatalf("routed to %s, want assistance via reordered chain", got.Agent)
	}
}

func TestMatchedPatternIDsAreSorted(t *testing.T) {
	t.Parallel()

	r := New(Config{})

	got := r.Classify("i want hoodies, how much", History{})
	for i := 1; i < len(got.MatchedPatternIDs); i++ {
		if got.MatchedPatternIDs[i-1] > got.MatchedPatternIDs[i] {
			t.Fatalf("pattern ids not sorted: %v", got.MatchedPatternIDs)
		}
	}
	if len(got.MatchedPatternIDs) < 2 {
		t.Fatalf("expected multiple matched patterns, got %v", got.MatchedPatternIDs)
	}
}
