package sanitizer

import (
	"regexp"
	"strings"
)

var (
	// Closed and unterminated reasoning blocks.
	thinkBlockRe   = regexp.MustCompile(`(?is)<think>.*?</think>\s*`)
	thinkOpenRe    = regexp.MustCompile(`(?is)<think>.*$`)
	thoughtBlockRe = regexp.MustCompile(`(?is)<thought>.*?</thought>\s*`)
	thoughtOpenRe  = regexp.MustCompile(`(?is)<thought>.*$`)

	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	tripleNLRe   = regexp.MustCompile(`\n{3,}`)
	rolePrefixRe = regexp.MustCompile(`(?i)^\s*(assistant|response)\s*:\s*`)
)

var residualTagReplacer = strings.NewReplacer(
	"<|im_start|>", "",
	"<|im_end|>", "",
	"<|endoftext|>", "",
)

var emphasisReplacer = strings.NewReplacer(
	"**", "",
	"__", "",
	"*", "",
)

// stripStreamMarkup removes decorative markup from a streamed slice.
// Cheap presence checks gate the replace passes so the common case of
// plain prose copies nothing.
func stripStreamMarkup(s string) string {
	if strings.Contains(s, "<|") {
		s = residualTagReplacer.Replace(s)
	}
	if strings.ContainsAny(s, "*_") {
		s = emphasisReplacer.Replace(s)
	}
	if strings.Contains(s, "#") {
		s = headingRe.ReplaceAllString(s, "")
	}
	return s
}

// CleanText fully cleans a complete (non-streamed) model response:
// reasoning blocks are removed even when unterminated, decorative
// markdown and emoji are stripped, runs of blank lines are collapsed,
// and a leading role label like "Assistant:" is dropped.
func CleanText(s string) string {
	s = thinkBlockRe.ReplaceAllString(s, "")
	s = thoughtBlockRe.ReplaceAllString(s, "")
	s = thinkOpenRe.ReplaceAllString(s, "")
	s = thoughtOpenRe.ReplaceAllString(s, "")

	s = residualTagReplacer.Replace(s)
	s = emphasisReplacer.Replace(s)
	s = headingRe.ReplaceAllString(s, "")
	s = stripEmoji(s)
	s = tripleNLRe.ReplaceAllString(s, "\n\n")
	s = rolePrefixRe.ReplaceAllString(s, "")

	return strings.TrimSpace(s)
}

// stripEmoji removes runes in the main emoji blocks.
func stripEmoji(s string) string {
	var hasEmoji bool
	for _, r := range s {
		if isEmoji(r) {
			hasEmoji = true
			break
		}
	}
	if !hasEmoji {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isEmoji(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // symbols, emoticons, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0xFE0F: // variation selector
		return true
	}
	return false
}
