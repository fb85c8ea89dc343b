package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessPlainText(t *testing.T) {
	s := New()
	assert.Equal(t, "Hello world", s.Process("Hello world"))
	assert.Equal(t, "", s.Flush())
}

func TestProcessSuppressesThinkBlock(t *testing.T) {
	s := New()
	out := s.Process("<think>internal reasoning</think>The answer is 4.")
	assert.Equal(t, "The answer is 4.", out)
}

func TestProcessSuppressesThoughtBlock(t *testing.T) {
	s := New()
	out := s.Process("<thought>hmm</thought>Sure.")
	assert.Equal(t, "Sure.", out)
}

func TestProcessTagCaseInsensitive(t *testing.T) {
	s := New()
	out := s.Process("<THINK>hidden</Think>visible")
	assert.Equal(t, "visible", out)
}

func TestProcessTagSplitAcrossFragments(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.Process("<thi"))
	assert.Equal(t, "", s.Process("nk>hidden</think>"))
	assert.Equal(t, "Answer", s.Process("Answer"))
}

func TestProcessClosingTagSplitAcrossFragments(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.Process("<think>secret</th"))
	assert.Equal(t, "done", s.Process("ink>done"))
}

func TestProcessHoldsPartialTagThenReleases(t *testing.T) {
	s := New()
	// "<the" starts like "<thought>" but the next fragment proves it
	// is literal text.
	assert.Equal(t, "a ", s.Process("a <tho"))
	assert.Equal(t, "<thorn> b", s.Process("rn> b"))
}

func TestProcessLeadingWhitespaceTrimmedOnce(t *testing.T) {
	s := New()
	assert.Equal(t, "Hello", s.Process("   Hello"))
	assert.Equal(t, "   World", s.Process("   World"))
}

func TestProcessLeadingWhitespaceAcrossFragments(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.Process("  \n"))
	assert.Equal(t, "Hi", s.Process("  Hi"))
}

func TestProcessFencedCodePassesVerbatim(t *testing.T) {
	s := New()
	out := s.Process("```go\nx := a * b // *not emphasis*\n```")
	assert.Equal(t, "```go\nx := a * b // *not emphasis*\n```", out)
}

func TestProcessThinkTagInsideFenceNotSuppressed(t *testing.T) {
	s := New()
	out := s.Process("```\n<think>literal</think>\n```after")
	assert.Equal(t, "```\n<think>literal</think>\n```after", out)
}

func TestProcessStripsEmphasis(t *testing.T) {
	s := New()
	assert.Equal(t, "bold and italic", s.Process("**bold** and *italic*"))
}

func TestProcessStripsResidualControlTags(t *testing.T) {
	s := New()
	assert.Equal(t, "hi", s.Process("<|im_start|>hi<|im_end|>"))
}

func TestFlushStripsUnterminatedBlock(t *testing.T) {
	s := New()
	assert.Equal(t, "Before. ", s.Process("Before. <think>never closed"))
	assert.Equal(t, "", s.Flush())
}

func TestFlushDropsHeldPartialTag(t *testing.T) {
	s := New()
	assert.Equal(t, "text ", s.Process("text <thi"))
	assert.Equal(t, "", s.Flush())
}

func TestFlushReturnsBufferedText(t *testing.T) {
	s := New()
	s.Process("<think>still open")
	// Flush resets state, instance is reusable.
	assert.Equal(t, "", s.Flush())
	assert.Equal(t, "fresh", s.Process("  fresh"))
}

func TestFlushCleansRemainder(t *testing.T) {
	s := New()
	// A held fence prefix shorter than the full fence is dropped.
	s.Process("done ``")
	assert.Equal(t, "", s.Flush())
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think block", "<think>reasoning</think>Answer", "Answer"},
		{"unterminated think", "Answer<think>never closed", "Answer"},
		{"thought block", "<thought>x</thought>ok", "ok"},
		{"role prefix", "Assistant: hello", "hello"},
		{"response prefix", "Response: hello", "hello"},
		{"emphasis", "**bold** and __under__ and *star*", "bold and under and star"},
		{"heading", "# Title\nbody", "Title\nbody"},
		{"newline collapse", "a\n\n\n\n\nb", "a\n\nb"},
		{"emoji", "done \U0001F389✅", "done"},
		{"whitespace", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestProcessLongStreamInSmallFragments(t *testing.T) {
	s := New()
	full := "<think>the user asked about weather, I should check</think>It is sunny in Paris today."
	var out string
	for _, r := range full {
		out += s.Process(string(r))
	}
	out += s.Flush()
	assert.Equal(t, "It is sunny in Paris today.", out)
}
