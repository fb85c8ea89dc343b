// Package sanitizer filters a raw model token stream down to
// user-facing text. Reasoning blocks (<think>, <thought>) are
// suppressed, fenced code passes through verbatim, and decorative
// markdown is stripped from plain text. The sanitizer is stateful and
// handles tags that arrive split across stream fragments.
package sanitizer

import (
	"strings"
)

type mode int

const (
	modePlain mode = iota
	modeSuppressed
	modeFenced
)

var (
	openTags  = []string{"<think>", "<thought>"}
	closeTags = []string{"</think>", "</thought>"}
)

const fence = "```"

// StreamSanitizer incrementally cleans a model output stream. One
// instance per interaction; Flush resets it for reuse.
type StreamSanitizer struct {
	buf         strings.Builder
	mode        mode
	leadTrimmed bool
}

// New returns a fresh StreamSanitizer.
func New() *StreamSanitizer {
	return &StreamSanitizer{}
}

// Process appends fragment to the internal buffer and returns whatever
// text is provably safe to show the user. Text that could be the
// beginning of a control tag is held back until more input proves it
// isn't, or until Flush.
func (s *StreamSanitizer) Process(fragment string) string {
	if fragment == "" {
		return ""
	}
	s.buf.WriteString(fragment)

	var out strings.Builder
	buf := s.buf.String()

	for {
		var emitted string
		var progressed bool
		buf, emitted, progressed = s.step(buf)
		out.WriteString(emitted)
		if !progressed {
			break
		}
	}

	s.buf.Reset()
	s.buf.WriteString(buf)
	return out.String()
}

// step consumes as much of buf as the current mode allows. It returns
// the remaining buffer, the text to emit, and whether a mode switch
// happened (meaning the caller should loop).
func (s *StreamSanitizer) step(buf string) (rest, emitted string, progressed bool) {
	switch s.mode {
	case modeSuppressed:
		return s.stepSuppressed(buf)
	case modeFenced:
		return s.stepFenced(buf)
	default:
		return s.stepPlain(buf)
	}
}

// stepSuppressed discards text until a closing tag. Content before a
// possible partial closing tag at the tail is dropped immediately.
func (s *StreamSanitizer) stepSuppressed(buf string) (string, string, bool) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != '<' {
			continue
		}
		for _, tag := range closeTags {
			if matchFoldAt(buf, i, tag) {
				s.mode = modePlain
				return buf[i+len(tag):], "", true
			}
		}
		if isFoldPrefixOfAny(buf[i:], closeTags) {
			// Partial closing tag at the tail, wait for more input.
			return buf[i:], "", false
		}
	}
	// Everything is suppressed content.
	return "", "", false
}

// stepFenced passes code through verbatim until the closing fence.
func (s *StreamSanitizer) stepFenced(buf string) (string, string, bool) {
	if idx := strings.Index(buf, fence); idx >= 0 {
		s.mode = modePlain
		return buf[idx+len(fence):], s.emit(buf[:idx+len(fence)], true), true
	}
	// Hold a tail that could be a partial closing fence.
	hold := len(fence) - 1
	if len(buf) <= hold {
		return buf, "", false
	}
	return buf[len(buf)-hold:], s.emit(buf[:len(buf)-hold], true), false
}

// stepPlain emits text up to the next recognized opening tag or fence.
// A tail that is a prefix of a recognized token is held back.
func (s *StreamSanitizer) stepPlain(buf string) (string, string, bool) {
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if c != '<' && c != '`' {
			continue
		}

		if c == '<' {
			for _, tag := range openTags {
				if matchFoldAt(buf, i, tag) {
					s.mode = modeSuppressed
					return buf[i+len(tag):], s.emit(buf[:i], false), true
				}
			}
			if isFoldPrefixOfAny(buf[i:], openTags) {
				return buf[i:], s.emit(buf[:i], false), false
			}
			continue
		}

		// c == '`'
		if strings.HasPrefix(buf[i:], fence) {
			s.mode = modeFenced
			// The opening fence itself is emitted verbatim.
			return buf[i+len(fence):], s.emit(buf[:i], false) + s.emit(fence, true), true
		}
		if len(buf)-i < len(fence) && strings.HasPrefix(fence, buf[i:]) {
			return buf[i:], s.emit(buf[:i], false), false
		}
	}
	return "", s.emit(buf, false), false
}

// emit prepares a slice for the caller: the first non-whitespace
// emission of the stream has its leading whitespace trimmed once, and
// plain slices have decorative markup stripped. Verbatim slices (code)
// skip the markup pass.
func (s *StreamSanitizer) emit(text string, verbatim bool) string {
	if text == "" {
		return ""
	}
	if !verbatim {
		text = stripStreamMarkup(text)
	}
	if !s.leadTrimmed {
		trimmed := strings.TrimLeft(text, " \t\r\n")
		if trimmed == "" {
			return ""
		}
		s.leadTrimmed = true
		text = trimmed
	}
	return text
}

// Flush returns any remaining buffered text after full cleanup and
// resets the sanitizer. Text still inside a suppressed block is
// discarded, and a held partial tag prefix is dropped rather than
// leaked.
func (s *StreamSanitizer) Flush() string {
	buf := s.buf.String()
	suppressed := s.mode == modeSuppressed

	s.buf.Reset()
	s.mode = modePlain
	s.leadTrimmed = false

	if suppressed || buf == "" {
		return ""
	}
	if isFoldPrefixOfAny(buf, openTags) || (len(buf) < len(fence) && strings.HasPrefix(fence, buf)) {
		return ""
	}
	return CleanText(buf)
}

// matchFoldAt reports whether s[i:] starts with tag, case-insensitively.
func matchFoldAt(s string, i int, tag string) bool {
	return len(s)-i >= len(tag) && strings.EqualFold(s[i:i+len(tag)], tag)
}

// isFoldPrefixOfAny reports whether rest is a proper case-insensitive
// prefix of any of the tags, i.e. more input could complete a tag.
func isFoldPrefixOfAny(rest string, tags []string) bool {
	for _, tag := range tags {
		if len(rest) < len(tag) && strings.EqualFold(rest, tag[:len(rest)]) {
			return true
		}
	}
	return false
}
