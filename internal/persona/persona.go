// Package persona holds the static registry of conversational personas.
package persona

import (
	"sort"
	"strings"
	"unicode"
)

// Mode selects a persona. The set is closed; see ParseMode.
type Mode string

const (
	ModeFraude  Mode = "fraude"
	ModeLucifer Mode = "lucifer"
	ModeEren    Mode = "eren"

	DefaultMode = ModeFraude
)

var knownModes = []Mode{ModeFraude, ModeLucifer, ModeEren}

// ParseMode maps a free-form key onto a known Mode. Unknown and empty keys
// resolve to DefaultMode.
func ParseMode(key string) Mode {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, m := range knownModes {
		if string(m) == key {
			return m
		}
	}
	return DefaultMode
}

// Modes lists every known mode in display order.
func Modes() []Mode {
	out := make([]Mode, len(knownModes))
	copy(out, knownModes)
	return out
}

func (m Mode) String() string { return string(m) }

// Language tags an identity table.
type Language string

const (
	English Language = "en"
	Turkish Language = "tr"
)

// Category groups the pre-written lines used when no model text is available.
type Category int

const (
	CategoryGeneric Category = iota
	CategoryUnavailable
	CategoryBadRequest
	CategoryRateLimited
	CategoryEmptyReply
	CategorySpeechless
)

// DailyQuotaMessage answers every persona once the provider quota is spent.
const DailyQuotaMessage = "The stars have spoken their last words for today. The well of answers has run dry; " +
	"return when a new dawn refills it."

type identityTable struct {
	triggers []string
	answer   string
}

// Persona is an immutable response style.
type Persona struct {
	Mode            Mode
	Name            string
	Description     string
	Style           string
	Greeting        string
	Instructions    string
	Acknowledgement string

	identity  map[Language]identityTable
	fallbacks map[Category][]string
	fillers   map[string]struct{}
}

// Languages returns the languages this persona has identity tables for.
func (p *Persona) Languages() []Language {
	langs := make([]Language, 0, len(p.identity))
	for lang := range p.identity {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// IdentityTriggers returns the trigger phrases of one language table.
func (p *Persona) IdentityTriggers(lang Language) []string {
	table, ok := p.identity[lang]
	if !ok {
		return nil
	}
	out := make([]string, len(table.triggers))
	copy(out, table.triggers)
	return out
}

// IdentityReply returns the canned answer when text asks who the persona is.
// The answer comes from the language table whose trigger matched.
func (p *Persona) IdentityReply(text string) (string, Language, bool) {
	for _, lang := range p.Languages() {
		if reply, ok := p.identityReplyIn(lang, text); ok {
			return reply, lang, true
		}
	}
	return "", "", false
}

func (p *Persona) identityReplyIn(lang Language, text string) (string, bool) {
	table, ok := p.identity[lang]
	if !ok {
		return "", false
	}
	words := strings.Fields(normalize(text))
	if len(words) == 0 {
		return "", false
	}
	for _, trigger := range table.triggers {
		if p.matches(words, strings.Fields(normalize(trigger))) {
			return table.answer, true
		}
	}
	return "", false
}

// matches accepts the trigger as a contiguous run of words when every other
// word of the message is conversational filler.
func (p *Persona) matches(words, trigger []string) bool {
	if len(trigger) == 0 || len(trigger) > len(words) {
		return false
	}
	for start := 0; start+len(trigger) <= len(words); start++ {
		hit := true
		for i, w := range trigger {
			if words[start+i] != w {
				hit = false
				break
			}
		}
		if !hit {
			continue
		}
		rest := append(append([]string{}, words[:start]...), words[start+len(trigger):]...)
		if p.allFiller(rest) {
			return true
		}
	}
	return false
}

func (p *Persona) allFiller(words []string) bool {
	for _, w := range words {
		if _, ok := commonFillers[w]; ok {
			continue
		}
		if _, ok := p.fillers[w]; ok {
			continue
		}
		return false
	}
	return true
}

// Fallback returns one of the persona's lines for the category. pick chooses
// an index in [0, n); nil picks the first line.
func (p *Persona) Fallback(cat Category, pick func(n int) int) string {
	lines := p.fallbacks[cat]
	if len(lines) == 0 {
		lines = p.fallbacks[CategoryGeneric]
	}
	if len(lines) == 0 {
		return "Something went wrong. Please try again."
	}
	idx := 0
	if pick != nil {
		idx = pick(len(lines))
		if idx < 0 || idx >= len(lines) {
			idx = 0
		}
	}
	return lines[idx]
}

// FallbackLines returns every line of a category.
func (p *Persona) FallbackLines(cat Category) []string {
	out := make([]string, len(p.fallbacks[cat]))
	copy(out, p.fallbacks[cat])
	return out
}

var commonFillers = toSet(
	"hey", "hi", "hello", "so", "then", "tell", "me", "please", "really", "exactly", "again",
	"ok", "okay", "and", "but", "anyway", "now", "actually", "dear", "um", "uh", "oh",
	"merhaba", "selam", "peki", "bana", "söyle", "soyle", "ya", "acaba", "gerçekten", "gercekten", "lütfen", "lutfen",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// normalize lowercases, drops combining marks and turns punctuation into spaces.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
