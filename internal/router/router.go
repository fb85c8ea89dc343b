// Package router dispatches user messages to registered skills by
// embedding similarity. Each skill route carries example utterances;
// an incoming message is embedded once and compared against every
// cached example embedding, and the route with the highest single
// example similarity wins.
//
// Two thresholds govern dispatch: a route is considered at all only at
// or above the route threshold, and executed only at or above the
// stricter execute threshold. Matches in between are logged as
// near-misses and discarded.
package router

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"openmoose/internal/embedding"
	"openmoose/internal/logging"
	"openmoose/internal/types"
)

// ArgumentExtractor pulls named string arguments out of the user's
// literal message text.
type ArgumentExtractor func(message string) map[string]string

// Executor runs a skill. execCtx is the opaque capability bundle
// forwarded from the caller; the router never inspects it.
type Executor func(ctx context.Context, args map[string]string, contextString string, execCtx any) (string, error)

// SkillRoute is one registered skill. Immutable after Build.
type SkillRoute struct {
	Name                  string
	Description           string
	Examples              []string
	ExtractArgs           ArgumentExtractor // optional
	Execute               Executor
	RequiresElevatedTrust bool
}

// RouteMatch is the result of one routing attempt.
type RouteMatch struct {
	Route         *SkillRoute
	Confidence    float64 // in [0,1]
	ExtractedArgs map[string]string
}

// TryResult reports the outcome of TryExecute. Handled is false both
// for a routing miss and for a near-miss below the execute threshold.
type TryResult struct {
	Handled    bool
	Success    bool
	Result     string
	Confidence float64
	SkillName  string
}

// Router is the immutable published route table. Construct with a
// Builder; example embeddings are computed lazily on first use and
// cached for the process lifetime.
type Router struct {
	engine           embedding.Engine
	routes           []*SkillRoute // registration order, ties resolved first-wins
	routeThreshold   float64
	executeThreshold float64

	cacheOnce sync.Once
	cache     map[string][][]float32 // route name -> example vectors
	cacheErr  error
}

// Builder accumulates routes before publishing an immutable Router.
// Registration is expected to happen once at startup.
type Builder struct {
	engine           embedding.Engine
	routes           []*SkillRoute
	index            map[string]int
	routeThreshold   float64
	executeThreshold float64
}

// NewBuilder creates a Builder with the default thresholds.
func NewBuilder(engine embedding.Engine) *Builder {
	return &Builder{
		engine:           engine,
		index:            make(map[string]int),
		routeThreshold:   0.55,
		executeThreshold: 0.68,
	}
}

// WithThresholds overrides the route and execute thresholds.
func (b *Builder) WithThresholds(route, execute float64) *Builder {
	b.routeThreshold = route
	b.executeThreshold = execute
	return b
}

// Register adds a route. Re-registering a name overwrites the earlier
// route in place, keeping its registration position, and logs a
// warning.
func (b *Builder) Register(route *SkillRoute) *Builder {
	if i, exists := b.index[route.Name]; exists {
		logging.Get(logging.CategoryRouter).Warn("route %q re-registered, overwriting previous definition", route.Name)
		b.routes[i] = route
		return b
	}
	b.index[route.Name] = len(b.routes)
	b.routes = append(b.routes, route)
	return b
}

// Build publishes the immutable Router.
func (b *Builder) Build() *Router {
	routes := make([]*SkillRoute, len(b.routes))
	copy(routes, b.routes)
	logging.Router("route table published: %d routes (route>=%.2f, execute>=%.2f)",
		len(routes), b.routeThreshold, b.executeThreshold)
	return &Router{
		engine:           b.engine,
		routes:           routes,
		routeThreshold:   b.routeThreshold,
		executeThreshold: b.executeThreshold,
	}
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*SkillRoute {
	out := make([]*SkillRoute, len(r.routes))
	copy(out, r.routes)
	return out
}

// ExecuteThreshold returns the configured execute threshold.
func (r *Router) ExecuteThreshold() float64 {
	return r.executeThreshold
}

// ensureCache embeds every route's examples, once per process. Routes
// are embedded in parallel; a failure poisons the cache and surfaces
// on every routing attempt until the process restarts.
func (r *Router) ensureCache(ctx context.Context) error {
	r.cacheOnce.Do(func() {
		timer := logging.StartTimer(logging.CategoryRouter, "embedExamples")
		defer timer.Stop()

		cache := make(map[string][][]float32, len(r.routes))
		var mu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		for _, route := range r.routes {
			g.Go(func() error {
				vecs, err := r.engine.EmbedBatch(gctx, route.Examples)
				if err != nil {
					return fmt.Errorf("failed to embed examples for route %s: %w", route.Name, err)
				}
				mu.Lock()
				cache[route.Name] = vecs
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			r.cacheErr = err
			return
		}
		r.cache = cache
		logging.RouterDebug("example embedding cache built for %d routes", len(cache))
	})
	return r.cacheErr
}

// Route embeds the message and returns the best route whose strongest
// example similarity is at or above threshold, or nil for no match.
// A single strong example wins over a better average; ties go to the
// earlier-registered route.
func (r *Router) Route(ctx context.Context, message string, threshold float64) (*RouteMatch, error) {
	if len(r.routes) == 0 {
		return nil, nil
	}
	if err := r.ensureCache(ctx); err != nil {
		return nil, err
	}

	queryVec, err := r.engine.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed message: %w", err)
	}

	var best *SkillRoute
	bestScore := -1.0

	for _, route := range r.routes {
		score := -1.0
		for _, exampleVec := range r.cache[route.Name] {
			sim, err := embedding.CosineSimilarity(queryVec, exampleVec)
			if err != nil {
				continue
			}
			if sim > score {
				score = sim
			}
		}
		// Strict > keeps the first-registered route on ties.
		if score > bestScore {
			bestScore = score
			best = route
		}
	}

	confidence := clamp01(bestScore)
	if best == nil || confidence < threshold {
		logging.RouterDebug("no route at threshold %.2f (best=%.4f)", threshold, confidence)
		return nil, nil
	}

	logging.RouterDebug("routed %q -> %s (confidence=%.4f)", types.TruncateError(message, 60), best.Name, confidence)
	return &RouteMatch{Route: best, Confidence: confidence}, nil
}

// TryExecute routes message and, if the match clears the execute
// threshold, runs the skill. Arguments are extracted from
// originalMessage so extraction always sees the user's literal
// phrasing even when message has been rewritten (e.g. a decomposed
// sub-action). TryExecute never returns an error; executor failures
// and panics come back as Handled=true, Success=false.
func (r *Router) TryExecute(ctx context.Context, message, originalMessage, contextString string, execCtx any) TryResult {
	match, err := r.Route(ctx, message, r.routeThreshold)
	if err != nil {
		logging.Router("routing unavailable: %v", err)
		return TryResult{}
	}
	if match == nil {
		return TryResult{}
	}

	if match.Confidence < r.executeThreshold {
		logging.Router("near-miss: %s matched at %.4f, below execute threshold %.2f",
			match.Route.Name, match.Confidence, r.executeThreshold)
		return TryResult{Confidence: match.Confidence}
	}

	args := map[string]string{}
	if match.Route.ExtractArgs != nil {
		if extracted := match.Route.ExtractArgs(originalMessage); extracted != nil {
			args = extracted
		}
	}
	match.ExtractedArgs = args

	result, execErr := runExecutor(ctx, match.Route, args, contextString, execCtx)
	if execErr != nil {
		logging.Get(logging.CategoryRouter).Error("skill %s failed on %q: %v",
			match.Route.Name, types.TruncateError(originalMessage, 80), execErr)
		return TryResult{
			Handled:    true,
			Success:    false,
			Result:     execErr.Error(),
			Confidence: match.Confidence,
			SkillName:  match.Route.Name,
		}
	}

	return TryResult{
		Handled:    true,
		Success:    true,
		Result:     result,
		Confidence: match.Confidence,
		SkillName:  match.Route.Name,
	}
}

// runExecutor isolates executor panics.
func runExecutor(ctx context.Context, route *SkillRoute, args map[string]string, contextString string, execCtx any) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("skill %s panicked: %v", route.Name, rec)
		}
	}()
	return route.Execute(ctx, args, contextString, execCtx)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
