package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"fraudechat/internal/service/ai"
)

type titleProvider struct {
	text string
	err  error
}

func (p titleProvider) Complete(context.Context, []ai.Turn) (*ai.Completion, error) {
	return nil, errors.New("not used")
}

func (p titleProvider) CompleteSimple(context.Context, string) (string, error) {
	return p.text, p.err
}

func TestGenerateUsesModelTitle(t *testing.T) {
	g := NewTitleGenerator(titleProvider{text: "Title: \"Moonlit Tides of Longing\"\nextra line"}, 0, nil)
	if got := g.Generate(context.Background(), "Why does the moon pull the sea?"); got != "Moonlit Tides of Longing" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestGenerateFallsBackToHeuristic(t *testing.T) {
	cases := []struct {
		provider titleProvider
		input    string
		want     string
	}{
		{titleProvider{err: errors.New("503 unavailable")}, "What is the meaning of freedom beyond the walls?", "Meaning Freedom Beyond"},
		{titleProvider{text: ""}, "Tell me about quantum entanglement", "Quantum Entanglement"},
		{titleProvider{text: "quantum entanglement"}, "Tell me about quantum entanglement", "Quantum Entanglement"},
		{titleProvider{err: errors.New("429")}, "Hello", "Hello"},
		{titleProvider{err: errors.New("429")}, "what is 2+2", "What Is 2+2"},
		{titleProvider{err: errors.New("429")}, "   ", UntitledChat},
	}
	for _, tc := range cases {
		g := NewTitleGenerator(tc.provider, 0, nil)
		if got := g.Generate(context.Background(), tc.input); got != tc.want {
			t.Fatalf("Generate(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGenerateIsAlwaysBounded(t *testing.T) {
	long := strings.Repeat("supercalifragilistic ", 10)
	inputs := []string{
		long,
		"?!?",
		"a b c",
		strings.Repeat("x", 200),
		"Sen kimsin ve neden buradasın?",
	}
	providers := []ai.Provider{
		titleProvider{err: errors.New("boom")},
		titleProvider{text: strings.Repeat("Endless ", 20)},
		nil,
	}
	for _, p := range providers {
		g := NewTitleGenerator(p, 0, nil)
		for _, in := range inputs {
			got := g.Generate(context.Background(), in)
			if got == "" || utf8.RuneCountInString(got) > maxTitleRunes {
				t.Fatalf("Generate(%q) = %q (%d runes)", in, got, utf8.RuneCountInString(got))
			}
		}
	}
}

func TestCleanModelTitle(t *testing.T) {
	if _, ok := CleanModelTitle("  \n", "hi"); ok {
		t.Fatalf("empty title must be rejected")
	}
	if _, ok := CleanModelTitle("The Moon", "tell me about the moon please"); ok {
		t.Fatalf("verbatim substring must be rejected")
	}
	got, ok := CleanModelTitle("**Title:** Desire and Its Discontents", "what do I want")
	if !ok || got != "Desire and Its Discontents" {
		t.Fatalf("CleanModelTitle = %q, %v", got, ok)
	}
	got, ok = CleanModelTitle(strings.Repeat("Word ", 30), "x")
	if !ok || utf8.RuneCountInString(got) > maxTitleRunes || !strings.HasSuffix(got, "...") {
		t.Fatalf("long title not truncated: %q", got)
	}
}
