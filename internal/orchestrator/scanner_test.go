package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmoose/internal/types"
)

func TestParseToolArgumentsDirect(t *testing.T) {
	args, err := ParseToolArguments(`{"city": "Paris", "days": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "Paris", args["city"])
	assert.Equal(t, float64(3), args["days"])
}

func TestParseToolArgumentsEmpty(t *testing.T) {
	args, err := ParseToolArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestParseToolArgumentsConcatenatedObjects(t *testing.T) {
	args, err := ParseToolArguments(`{"a":1}{"b":2}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])
	assert.NotContains(t, args, "b")
}

func TestParseToolArgumentsLeadingProse(t *testing.T) {
	args, err := ParseToolArguments(`Here are the arguments: {"query": "go testing"} hope that helps`)
	require.NoError(t, err)
	assert.Equal(t, "go testing", args["query"])
}

func TestParseToolArgumentsTotalFailure(t *testing.T) {
	raw := "definitely not json"
	args, err := ParseToolArguments(raw)
	require.Error(t, err)
	assert.Equal(t, raw, args[types.RawArgsKey])
}

func TestFindJSONCandidatesBracesInsideStrings(t *testing.T) {
	// The brace inside the quoted value must not split the object.
	candidates := findJSONCandidates(`{"text":"a}{b"}`)
	require.Len(t, candidates, 1)
	assert.Equal(t, `{"text":"a}{b"}`, candidates[0])
}

func TestFindJSONCandidatesEscapedQuote(t *testing.T) {
	candidates := findJSONCandidates(`{"text":"she said \"hi}\" loudly"}{"n":1}`)
	require.Len(t, candidates, 2)
	assert.Equal(t, `{"n":1}`, candidates[1])
}

func TestFindJSONCandidatesNested(t *testing.T) {
	candidates := findJSONCandidates(`{"outer":{"inner":true}}`)
	require.Len(t, candidates, 1)
	assert.Equal(t, `{"outer":{"inner":true}}`, candidates[0])
}

func TestFindJSONCandidatesStrayCloser(t *testing.T) {
	candidates := findJSONCandidates(`} {"ok":true}`)
	require.Len(t, candidates, 1)
	assert.Equal(t, `{"ok":true}`, candidates[0])
}

func TestFindJSONCandidatesUnterminated(t *testing.T) {
	assert.Empty(t, findJSONCandidates(`{"never": "closed"`))
}
