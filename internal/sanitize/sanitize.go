// Package sanitize cleans model replies before they reach the user.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTrimThreshold is the reply length above which incomplete trailing
// sentences are trimmed.
const DefaultTrimThreshold = 100

// ApologyPhrases disqualify any line that contains one of them.
var ApologyPhrases = []string{
	"as an ai",
	"as a language model",
	"i cannot",
	"i can't",
	"i'm unable",
	"i am unable",
	"i couldn't",
	"sorry",
	"apologize",
	"apologise",
	"here you go",
}

const (
	terminalRunes  = ".!?…\"')]}"
	boundaryRunes  = ".!?"
	minFinalLine   = 10
	maxTrimmedFrac = 0.30
)

// RemoveApologies drops every line containing a disqualifying phrase and trims
// the surrounding whitespace. Surviving lines keep their order.
func RemoveApologies(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !containsApology(line) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func containsApology(line string) bool {
	lower := strings.ToLower(strings.ReplaceAll(line, "’", "'"))
	for _, phrase := range ApologyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// TrimIncompleteSentence drops a trailing sentence fragment, unless doing so
// would discard more than 30% of the text. The result is a fixed point.
func TrimIncompleteSentence(text string) string {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return text
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if strings.ContainsRune(terminalRunes, last) {
		return text
	}

	finalLine := trimmed[strings.LastIndex(trimmed, "\n")+1:]
	if utf8.RuneCountInString(strings.TrimSpace(finalLine)) <= minFinalLine {
		return text
	}

	cut := lastBoundary(trimmed)
	if cut < 0 {
		return text
	}
	kept := strings.TrimSpace(trimmed[:cut+1])
	if kept == "" {
		return text
	}
	if float64(len(text)-len(kept)) > maxTrimmedFrac*float64(len(text)) {
		return text
	}
	return kept
}

// lastBoundary returns the index of the final byte of the last run of
// sentence-ending punctuation that is followed by whitespace.
func lastBoundary(text string) int {
	for i := len(text) - 2; i >= 0; i-- {
		if strings.IndexByte(boundaryRunes, text[i]) < 0 {
			continue
		}
		next := text[i+1]
		if next == ' ' || next == '\n' || next == '\t' || next == '\r' {
			return i
		}
	}
	return -1
}

// HasCodeFence reports whether text contains a fenced code block marker.
func HasCodeFence(text string) bool {
	return strings.Contains(text, "```")
}

// Clean applies apology removal and, for long replies without code fences,
// incomplete-sentence trimming.
func Clean(text string, trimThreshold int) string {
	out := RemoveApologies(text)
	if HasCodeFence(out) || utf8.RuneCountInString(out) <= trimThreshold {
		return out
	}
	return TrimIncompleteSentence(out)
}
