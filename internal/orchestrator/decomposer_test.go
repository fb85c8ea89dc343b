package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldDecompose(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"length and conjunction", "check the weather and set a timer", true},
		{"then", "download the report then summarize it for me", true},
		{"also works", "look up the time in Tokyo, also the weather there", true},
		{"too short", "pizza and cola", false},
		{"no conjunction", "what is the weather like in Stockholm today", false},
		{"conjunction inside a word", "walking on sandy beaches near the grand hotel", false},
		{"case insensitive", "Open the file AND read the first line", true},
		{"additionally", "book the meeting room, additionally invite the whole team", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldDecompose(tt.message, 20))
		})
	}
}

func TestParseSubActionsJSONArray(t *testing.T) {
	actions := parseSubActions(`["check the weather", "set a timer"]`)
	assert.Equal(t, []string{"check the weather", "set a timer"}, actions)
}

func TestParseSubActionsArrayEmbeddedInProse(t *testing.T) {
	reply := "Sure! Here are the steps:\n[\"first thing\", \"second thing\"]\nDone."
	actions := parseSubActions(reply)
	assert.Equal(t, []string{"first thing", "second thing"}, actions)
}

func TestParseSubActionsLineSplitFallback(t *testing.T) {
	reply := "1. check the weather\n2. set a timer\n- say hello"
	actions := parseSubActions(reply)
	assert.Equal(t, []string{"check the weather", "set a timer", "say hello"}, actions)
}

func TestParseSubActionsBlankLinesDropped(t *testing.T) {
	actions := parseSubActions("one thing\n\n   \ntwo things\n")
	assert.Equal(t, []string{"one thing", "two things"}, actions)
}

func TestDecomposeCapsSubActions(t *testing.T) {
	fb := &fakeBrain{chatReplies: []string{`["a1","a2","a3","a4","a5","a6","a7"]`}}
	o := New(nil, fb, nil, nil, nil, Options{})

	actions, err := o.decompose(context.Background(), "many things and more", 5)
	require.NoError(t, err)
	assert.Len(t, actions, 5)
	assert.Equal(t, "a1", actions[0])
	assert.Equal(t, "a5", actions[4])
}

func TestDecomposeModelFailure(t *testing.T) {
	fb := &fakeBrain{chatErr: errModelDown}
	o := New(nil, fb, nil, nil, nil, Options{})

	_, err := o.decompose(context.Background(), "this and that", 5)
	require.Error(t, err)
}
