package conversation

import (
	"regexp"
	"strings"
	"unicode"
)

// Reply shaping limits.
const (
	ReplyMaxSentences = 4
	ReplyMaxWords     = 90
)

// openingFillers are stock openings dropped from the first sentence of a reply.
var openingFillers = []string{
	"понимаю", "мне жаль", "хочу заверить", "важно помнить",
	"i understand", "i’m sorry", "i'm sorry", "i want to assure", "it’s important to remember",
	"capisco", "mi dispiace", "vorrei rassicurarti", "è importante ricordare",
}

var (
	italianKeywords = regexp.MustCompile(`(?:^|[^\p{L}])(come|stai|sto|va|grazie|perch[eè]|quest[oa]|aiuto|cosa|penso|sent[io])(?:$|[^\p{L}])`)
	whitespaceRun   = regexp.MustCompile(`\s+`)

	smalltalkPatterns = map[string]*regexp.Regexp{
		"ru": regexp.MustCompile(`как\s+дела( у тебя)?|как\s+ты|как\s+настроение|что\s+делаешь|чем\s+занимаешься`),
		"en": regexp.MustCompile(`how\s+are\s+you|how'?s\s+it\s+going|what'?s\s+up`),
		"it": regexp.MustCompile(`come\s+stai|come\s+va|che\s+fai|che\s+si\s+dice`),
	}
)

// detectLanguage guesses the language a message is written in.
func detectLanguage(text string) string {
	t := strings.ToLower(text)
	for _, r := range t {
		if r >= 0x0400 && r <= 0x04FF {
			return "ru"
		}
	}
	if italianKeywords.MatchString(t) {
		return "it"
	}
	return "en"
}

func isSmalltalk(text, lang string) bool {
	pattern, ok := smalltalkPatterns[lang]
	if !ok {
		pattern = smalltalkPatterns["en"]
	}
	return pattern.MatchString(strings.ToLower(text))
}

// shrinkReply drops a filler opening, removes repeated sentences and clips
// the reply to maxSentences sentences and maxWords words.
func shrinkReply(text string, maxSentences, maxWords int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	if len(sentences) > 1 && hasFillerOpening(sentences[0]) {
		sentences = sentences[1:]
	}

	seen := make(map[string]struct{}, len(sentences))
	kept := make([]string, 0, len(sentences))
	for _, s := range sentences {
		key := whitespaceRun.ReplaceAllString(strings.ToLower(s), " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, s)
	}
	if len(kept) > maxSentences {
		kept = kept[:maxSentences]
	}

	joined := strings.Join(kept, " ")
	words := strings.Fields(joined)
	if len(words) > maxWords {
		return strings.TrimRight(strings.Join(words[:maxWords], " "), ",.;:!—- ") + "…"
	}
	return strings.TrimSpace(joined)
}

func hasFillerOpening(sentence string) bool {
	first := strings.ToLower(sentence)
	for _, f := range openingFillers {
		if strings.HasPrefix(first, f) {
			return true
		}
	}
	return false
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(".!?", runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}
