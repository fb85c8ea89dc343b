package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine embeds text as a bag-of-words vector with one dimension
// per distinct word, so identical texts have similarity 1.0 and
// similarities are exactly computable in tests.
type fakeEngine struct {
	mu         sync.Mutex
	index      map[string]int
	fail       bool
	batchCalls atomic.Int32
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{index: make(map[string]int)}
}

const fakeDims = 64

func (e *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	vec := make([]float32, fakeDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		i, ok := e.index[word]
		if !ok {
			i = len(e.index)
			e.index[word] = i
		}
		vec[i]++
	}
	return vec, nil
}

func (e *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEngine) Dimensions() int { return fakeDims }
func (e *fakeEngine) Name() string    { return "fake:words" }

func noopExecutor(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
	return "ok", nil
}

func TestRouteExactExampleHighConfidence(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "weather",
			Examples: []string{"what is the weather in paris"},
			Execute:  noopExecutor,
		}).
		Build()

	match, err := r.Route(context.Background(), "what is the weather in paris", 0.55)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "weather", match.Route.Name)
	assert.GreaterOrEqual(t, match.Confidence, 0.99)
	assert.LessOrEqual(t, match.Confidence, 1.0)
}

func TestRouteNoMatch(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "weather",
			Examples: []string{"what is the weather in paris"},
			Execute:  noopExecutor,
		}).
		Build()

	match, err := r.Route(context.Background(), "compile my project please", 0.55)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestRouteBestSingleExampleWins(t *testing.T) {
	engine := newFakeEngine()
	// "time" has one strong example and one unrelated one; the max,
	// not the average, must decide.
	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "time",
			Examples: []string{"what time is it", "completely unrelated utterance about gardening"},
			Execute:  noopExecutor,
		}).
		Register(&SkillRoute{
			Name:     "weather",
			Examples: []string{"what is the weather like"},
			Execute:  noopExecutor,
		}).
		Build()

	match, err := r.Route(context.Background(), "what time is it", 0.55)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "time", match.Route.Name)
}

func TestRouteTieGoesToFirstRegistered(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{Name: "first", Examples: []string{"do the thing"}, Execute: noopExecutor}).
		Register(&SkillRoute{Name: "second", Examples: []string{"do the thing"}, Execute: noopExecutor}).
		Build()

	match, err := r.Route(context.Background(), "do the thing", 0.55)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.Route.Name)
}

func TestReRegisterOverwritesKeepingPosition(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{Name: "a", Examples: []string{"alpha"}, Execute: noopExecutor}).
		Register(&SkillRoute{Name: "b", Examples: []string{"beta"}, Execute: noopExecutor}).
		Register(&SkillRoute{Name: "a", Examples: []string{"alpha prime"}, Execute: noopExecutor}).
		Build()

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "a", routes[0].Name)
	assert.Equal(t, []string{"alpha prime"}, routes[0].Examples)
}

func TestEmbeddingCacheBuiltOnce(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{Name: "weather", Examples: []string{"what is the weather"}, Execute: noopExecutor}).
		Build()

	ctx := context.Background()
	_, err := r.Route(ctx, "what is the weather", 0.55)
	require.NoError(t, err)
	_, err = r.Route(ctx, "what is the weather", 0.55)
	require.NoError(t, err)

	assert.Equal(t, int32(1), engine.batchCalls.Load())
}

func TestTryExecuteSuccess(t *testing.T) {
	engine := newFakeEngine()
	var gotArgs map[string]string
	var gotContext string

	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "greet",
			Examples: []string{"say hello to someone"},
			ExtractArgs: func(message string) map[string]string {
				return map[string]string{"source": message}
			},
			Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
				gotArgs = args
				gotContext = contextString
				return "hello!", nil
			},
		}).
		Build()

	res := r.TryExecute(context.Background(), "say hello to someone", "Say hi to Bob!", "earlier findings", nil)
	assert.True(t, res.Handled)
	assert.True(t, res.Success)
	assert.Equal(t, "hello!", res.Result)
	assert.Equal(t, "greet", res.SkillName)
	// Extraction sees the user's literal phrasing, not the routed text.
	assert.Equal(t, "Say hi to Bob!", gotArgs["source"])
	assert.Equal(t, "earlier findings", gotContext)
}

func TestTryExecuteNoMatch(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{Name: "weather", Examples: []string{"what is the weather in paris"}, Execute: noopExecutor}).
		Build()

	res := r.TryExecute(context.Background(), "compile my project please", "compile my project please", "", nil)
	assert.False(t, res.Handled)
	assert.False(t, res.Success)
}

func TestTryExecuteNearMissNotExecuted(t *testing.T) {
	engine := newFakeEngine()
	executed := false
	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "overlap",
			Examples: []string{"alpha beta gamma delta"},
			Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
				executed = true
				return "ran", nil
			},
		}).
		Build()

	// Three of four example words shared against a five-word message:
	// cosine = 3 / (2 * sqrt(5)) ~= 0.67, between 0.55 and 0.68.
	res := r.TryExecute(context.Background(), "alpha beta gamma epsilon zeta", "alpha beta gamma epsilon zeta", "", nil)
	assert.False(t, res.Handled)
	assert.False(t, executed)
	assert.InDelta(t, 0.6708, res.Confidence, 0.01)
}

func TestTryExecuteExecutorError(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "failing",
			Examples: []string{"trigger the failing skill"},
			Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
				return "", errors.New("upstream service unavailable")
			},
		}).
		Build()

	res := r.TryExecute(context.Background(), "trigger the failing skill", "trigger the failing skill", "", nil)
	assert.True(t, res.Handled)
	assert.False(t, res.Success)
	assert.Contains(t, res.Result, "upstream service unavailable")
}

func TestTryExecuteNeverPanics(t *testing.T) {
	engine := newFakeEngine()
	r := NewBuilder(engine).
		Register(&SkillRoute{
			Name:     "panicky",
			Examples: []string{"trigger the panicking skill"},
			Execute: func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error) {
				panic("executor blew up")
			},
		}).
		Build()

	var res TryResult
	assert.NotPanics(t, func() {
		res = r.TryExecute(context.Background(), "trigger the panicking skill", "trigger the panicking skill", "", nil)
	})
	assert.True(t, res.Handled)
	assert.False(t, res.Success)
	assert.Contains(t, res.Result, "executor blew up")
}

func TestTryExecuteEmbeddingFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.fail = true
	r := NewBuilder(engine).
		Register(&SkillRoute{Name: "weather", Examples: []string{"what is the weather"}, Execute: noopExecutor}).
		Build()

	res := r.TryExecute(context.Background(), "what is the weather", "what is the weather", "", nil)
	assert.False(t, res.Handled)
}
