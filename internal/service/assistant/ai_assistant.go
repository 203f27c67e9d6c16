package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"fraudechat/internal/logger"
	"fraudechat/internal/metrics"
	"fraudechat/internal/service/ai"
)

const (
	// UntitledChat is the last-resort session title.
	UntitledChat = "Untitled Chat"

	maxTitleRunes    = 50
	maxFallbackRunes = 40
	maxKeywords      = 3
	ellipsis         = "..."
	titleTimeout     = 15 * time.Second
)

const titlePrompt = "You are a conversation title generator. " +
	"Write a concise, creative title of 3 to 6 words for a chat that starts with the message below. " +
	"Output only the title; do not include quotes or any additional content.\n\nMessage: %s"

var titleStopwords = toSet(
	"a", "an", "the", "and", "or", "but", "if", "of", "to", "in", "on", "at", "for", "with", "by", "from",
	"is", "are", "was", "were", "be", "been", "am", "do", "does", "did", "can", "could", "would", "should",
	"will", "shall", "may", "might", "must", "have", "has", "had",
	"what", "who", "whom", "whose", "which", "when", "where", "why", "how",
	"i", "me", "my", "you", "your", "we", "our", "he", "she", "it", "its", "they", "them", "this", "that",
	"these", "those", "there", "here", "please", "tell", "about", "hello", "hi", "hey", "thanks", "thank",
	"just", "some", "any", "not", "also", "very", "really", "into", "than", "then", "so",
	"ne", "nasıl", "nedir", "neden", "kim", "bir", "bu", "şu", "ve", "ile", "için", "mi", "mı", "mu", "mü",
	"merhaba", "selam", "lütfen", "bana", "beni",
)

// TitleGenerator names sessions from their first user message.
type TitleGenerator struct {
	provider ai.Provider
	timeout  time.Duration
	log      *logger.Logger
}

// NewTitleGenerator builds a generator. A nil provider always uses the heuristic.
func NewTitleGenerator(provider ai.Provider, timeout time.Duration, log *logger.Logger) *TitleGenerator {
	if timeout <= 0 {
		timeout = titleTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TitleGenerator{provider: provider, timeout: timeout, log: log.Named("title")}
}

// Generate always returns a non-empty title of at most 50 runes.
func (g *TitleGenerator) Generate(ctx context.Context, firstMessage string) string {
	firstMessage = strings.TrimSpace(firstMessage)
	if firstMessage == "" {
		metrics.RecordTitle("untitled")
		return UntitledChat
	}
	if g.provider != nil {
		if title, ok := g.fromModel(ctx, firstMessage); ok {
			metrics.RecordTitle("model")
			return title
		}
	}
	title := HeuristicTitle(firstMessage)
	if title == UntitledChat {
		metrics.RecordTitle("untitled")
	} else {
		metrics.RecordTitle("heuristic")
	}
	return title
}

func (g *TitleGenerator) fromModel(ctx context.Context, firstMessage string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	raw, err := g.provider.CompleteSimple(ctx, fmt.Sprintf(titlePrompt, firstMessage))
	if err != nil {
		g.log.Info("model title failed, using heuristic", zap.String("kind", string(ai.Classify(err))), zap.Error(err))
		return "", false
	}
	title, ok := CleanModelTitle(raw, firstMessage)
	if !ok {
		g.log.Debug("model title rejected", zap.String("raw", raw))
	}
	return title, ok
}

// CleanModelTitle normalizes a model title. It is rejected when empty or when
// it merely repeats part of the input.
func CleanModelTitle(raw, input string) (string, bool) {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.Map(func(r rune) rune {
		switch r {
		case '"', '“', '”', '«', '»', '`':
			return -1
		}
		return r
	}, line)
	line = strings.Trim(line, " '‘’*#")
	if len(line) >= len("title:") && strings.EqualFold(line[:len("title:")], "title:") {
		line = strings.TrimSpace(line[len("title:"):])
	}
	line = strings.Trim(line, " '‘’*#")
	if line == "" {
		return "", false
	}
	if strings.Contains(strings.ToLower(input), strings.ToLower(line)) {
		return "", false
	}
	return truncate(line, maxTitleRunes), true
}

// HeuristicTitle builds a title from keywords of the message.
func HeuristicTitle(message string) string {
	var keywords []string
	for _, word := range strings.FieldsFunc(message, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		word = strings.Trim(word, "'")
		lower := strings.ToLower(word)
		if _, stop := titleStopwords[lower]; stop || utf8.RuneCountInString(word) <= 2 {
			continue
		}
		keywords = append(keywords, titleCase(lower))
		if len(keywords) == maxKeywords {
			break
		}
	}
	if len(keywords) > 0 {
		return truncate(strings.Join(keywords, " "), maxTitleRunes)
	}

	trimmed := strings.Join(strings.Fields(message), " ")
	if trimmed == "" {
		return UntitledChat
	}
	return truncate(titleCaseWords(trimmed), maxFallbackRunes+len(ellipsis))
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-len(ellipsis)])) + ellipsis
}

func titleCase(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToTitle(r)) + word[size:]
}

func titleCaseWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = titleCase(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
