/*
Package orchestrator is the top-level coordinator of the query pipeline.

For each question it retrieves ranked knowledge entries, picks an engine
(A/B assignment, configured primary, or any available engine), dispatches
the query with infrastructure fallback to the remaining engines, boosts
confidence when the engine agrees with retrieval, and hands the result to
the escalation handler. Engine metrics, A/B tallies, observers and the
response cache are all owned by the Orchestrator instance.
*/
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/embedding"
	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/learning"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/prompt"
	"github.com/khanglvm/profile-qa/internal/search"
	"github.com/khanglvm/profile-qa/internal/storage"
)

// DefaultConfidenceBoost is added when the engine's matches include the
// retrieval top match.
const DefaultConfidenceBoost = 0.1

// Config tunes engine selection and scoring.
type Config struct {
	// Primary is the preferred engine. Empty means the first registered.
	Primary         string      `koanf:"primary"`
	FallbackEnabled bool        `koanf:"fallback_enabled"`
	ConfidenceBoost float64     `koanf:"confidence_boost" validate:"gte=0,lte=1"`
	AB              ABConfig    `koanf:"ab_testing"`
	Cache           CacheConfig `koanf:"cache"`
}

// DefaultConfig enables fallback and the response cache.
func DefaultConfig() Config {
	return Config{
		FallbackEnabled: true,
		ConfidenceBoost: DefaultConfidenceBoost,
		AB:              DefaultABConfig(),
		Cache:           DefaultCacheConfig(),
	}
}

// Deps are the collaborators of an Orchestrator. Engines, Retriever and
// Escalation are required.
type Deps struct {
	Engines    []engine.Engine
	Retriever  *search.Retriever
	Prompt     *prompt.Builder
	Escalation *escalation.Handler
	// Embedder enables the vector retrieval path when its size matches the
	// knowledge base vectors.
	Embedder embedding.Embedder
	Tracker  *learning.Tracker
	Storage  storage.Storage
	// Registerer receives the Prometheus collectors. Nil means a private registry.
	Registerer prometheus.Registerer
	Logger     logging.Logger
}

// HistorySource supplies conversation context related to retrieved topics.
// *conversation.Manager implements it.
type HistorySource interface {
	TopicContext(topicIDs []string) []conversation.Turn
}

// Query is one question from the caller.
type Query struct {
	Message string
	Style   knowledge.Style
	History HistorySource
}

// Outcome is the result of ProcessQuery.
type Outcome struct {
	// Answer is the engine answer, or the escalation message when Action is set.
	Answer       string              `json:"answer"`
	EngineAnswer string              `json:"engine_answer,omitempty"`
	Confidence   float64             `json:"confidence"`
	MatchedIDs   []string            `json:"matched_ids"`
	Matches      []engine.EntryScore `json:"matches,omitempty"`
	RetrievedIDs []string            `json:"retrieved_ids,omitempty"`

	// Engine answered the query; Selected was tried first.
	Engine       string `json:"engine"`
	Selected     string `json:"selected"`
	FallbackUsed bool   `json:"fallback_used"`
	// OriginalError is the selected engine's failure when FallbackUsed.
	OriginalError string `json:"original_error,omitempty"`
	// ABTest is set when Selected came from the session's A/B assignment,
	// whichever engine finally answered.
	ABTest bool `json:"ab_test"`

	Decision   escalation.Decision  `json:"decision"`
	Action     escalation.Action    `json:"action,omitempty"`
	Escalation *escalation.Response `json:"escalation,omitempty"`

	ProcessingTime time.Duration `json:"processing_time"`
	Cached         bool          `json:"cached"`
}

func (o Outcome) clone() Outcome {
	o.MatchedIDs = slices.Clone(o.MatchedIDs)
	o.Matches = slices.Clone(o.Matches)
	o.RetrievedIDs = slices.Clone(o.RetrievedIDs)
	if o.Escalation != nil {
		r := *o.Escalation
		r.Suggestions = slices.Clone(r.Suggestions)
		o.Escalation = &r
	}
	return o
}

// Orchestrator coordinates retrieval, engines and escalation for one session.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  logging.Logger

	engines map[string]engine.Engine
	names   []string

	mu        sync.RWMutex
	primary   string
	everReady map[string]bool
	sessionID string
	assigned  string

	bandit    *learning.EpsilonGreedy
	metrics   *metricsBook
	ab        *abTally
	observers *observerList
	cache     *responseCache
	prom      *collectors
}

// New validates deps and builds an Orchestrator. Engines are not started.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if len(deps.Engines) == 0 {
		return nil, ErrNoEngines
	}
	if deps.Retriever == nil || deps.Escalation == nil {
		return nil, errors.New("orchestrator needs a retriever and an escalation handler")
	}
	if deps.Prompt == nil {
		deps.Prompt = prompt.NewBuilder("", 0, 0)
	}
	if deps.Registerer == nil {
		deps.Registerer = prometheus.NewRegistry()
	}

	log := logging.OrDefault(deps.Logger).With("component", "orchestrator")

	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		log:       log,
		engines:   make(map[string]engine.Engine, len(deps.Engines)),
		everReady: make(map[string]bool),
		ab:        newABTally(),
		observers: newObserverList(log),
		cache:     newResponseCache(cfg.Cache),
		prom:      newCollectors(deps.Registerer),
	}

	for _, e := range deps.Engines {
		name := e.Name()
		if _, dup := o.engines[name]; dup {
			return nil, fmt.Errorf("duplicate engine %q", name)
		}
		o.engines[name] = e
		o.names = append(o.names, name)
	}

	o.primary = cfg.Primary
	if o.primary == "" {
		o.primary = o.names[0]
	}
	if _, ok := o.engines[o.primary]; !ok {
		return nil, fmt.Errorf("%w: primary %q", ErrUnknownEngine, o.primary)
	}

	if cfg.AB.Enabled && cfg.AB.Strategy == StrategyBandit {
		o.bandit = learning.NewEpsilonGreedy(cfg.AB.Epsilon, 0)
	}
	o.metrics = newMetricsBook(o.names)

	return o, nil
}

// Start starts every engine concurrently. It fails only when no engine
// became available.
func (o *Orchestrator) Start(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(o.names))

	for i, name := range o.names {
		g.Go(func() error {
			err := o.engines[name].Start(ctx)
			errs[i] = err
			o.markReady(name, err)
			return nil
		})
	}
	_ = g.Wait()

	var lastErr error
	available := 0
	for i, name := range o.names {
		if errs[i] != nil {
			o.log.Warn("engine failed to start", "engine", name, "error", errs[i])
			lastErr = errs[i]
			continue
		}
		available++
	}

	if available == 0 {
		return &AllEnginesFailedError{Attempted: slices.Clone(o.names), LastErr: lastErr}
	}
	return nil
}

func (o *Orchestrator) markReady(name string, err error) {
	if err == nil {
		o.mu.Lock()
		o.everReady[name] = true
		o.mu.Unlock()
		o.prom.available.WithLabelValues(name).Set(1)
	} else {
		o.prom.available.WithLabelValues(name).Set(0)
	}
	o.observers.emit(Event{Type: EventEngineReady, Engine: name, Err: err, SessionID: o.SessionID()})
}

// BeginSession resets escalation state for a new conversation session and,
// when A/B testing is on, fixes the session's engine assignment.
func (o *Orchestrator) BeginSession(sessionID string) {
	o.deps.Escalation.Reset()

	assigned := ""
	if o.cfg.AB.Enabled {
		assigned = o.assign(sessionID)
	}

	o.mu.Lock()
	o.sessionID = sessionID
	o.assigned = assigned
	o.mu.Unlock()

	if assigned != "" {
		o.log.Info("session assigned", "session", sessionID, "engine", assigned, "strategy", o.cfg.AB.Strategy)
	}
}

func (o *Orchestrator) assign(sessionID string) string {
	if o.deps.Storage != nil {
		if a, ok, err := o.deps.Storage.GetAssignment(sessionID); err == nil && ok {
			if _, known := o.engines[a.Engine]; known {
				return a.Engine
			}
		}
	}

	var name string
	switch o.cfg.AB.Strategy {
	case StrategyBandit:
		name, _ = o.bandit.SelectEngine(o.names, o.deps.Storage)
	default:
		name = splitAssign(sessionID, o.names, o.cfg.AB.Split)
	}

	if o.deps.Storage != nil {
		if err := o.deps.Storage.SaveAssignment(storage.Assignment{
			SessionID: sessionID,
			Engine:    name,
			Strategy:  o.cfg.AB.Strategy,
		}); err != nil {
			o.log.Warn("failed to save assignment", "error", err)
		}
	}
	return name
}

// SessionID returns the current session.
func (o *Orchestrator) SessionID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessionID
}

// Assignment returns the session's A/B engine, or "" when A/B testing is off.
func (o *Orchestrator) Assignment() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.assigned
}

// Primary returns the configured primary engine.
func (o *Orchestrator) Primary() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.primary
}

// SwitchPrimaryEngine makes name the primary engine. It fails when name
// was never registered as available.
func (o *Orchestrator) SwitchPrimaryEngine(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.engines[name]; !ok || !o.everReady[name] {
		return fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	o.primary = name
	o.log.Info("primary engine switched", "engine", name)
	return nil
}

// Engines returns the registered engine names in registration order.
func (o *Orchestrator) Engines() []string {
	return slices.Clone(o.names)
}

// Available returns the engines currently able to take queries.
func (o *Orchestrator) Available() []string {
	var out []string
	for _, n := range o.names {
		if o.engines[n].Available() {
			out = append(out, n)
		}
	}
	return out
}

// Escalation returns the session's escalation handler.
func (o *Orchestrator) Escalation() *escalation.Handler { return o.deps.Escalation }

// Retriever returns the retrieval engine.
func (o *Orchestrator) Retriever() *search.Retriever { return o.deps.Retriever }

// Subscribe registers an observer and returns a function removing it.
func (o *Orchestrator) Subscribe(fn Observer) func() { return o.observers.add(fn) }

// Metrics returns a snapshot of every engine's metrics.
func (o *Orchestrator) Metrics() []EngineMetrics { return o.metrics.snapshot() }

// ABSummary compares engines over A/B-assigned queries.
func (o *Orchestrator) ABSummary() ABSummary {
	engines := o.ab.summaries()
	return ABSummary{
		Enabled:    o.cfg.AB.Enabled,
		Strategy:   o.cfg.AB.Strategy,
		SessionID:  o.SessionID(),
		Assignment: o.Assignment(),
		Engines:    engines,
		Preferred:  learning.Preferred(engines),
	}
}

// CacheLen returns the number of cached answers.
func (o *Orchestrator) CacheLen() int { return o.cache.len() }

// ClearCache drops every cached answer.
func (o *Orchestrator) ClearCache() { o.cache.purge() }

// ResetMetrics clears engine metrics and A/B tallies.
func (o *Orchestrator) ResetMetrics() {
	o.metrics.reset()
	o.ab.reset()
}

// Close stops every engine. In-flight queries fail instead of hanging.
func (o *Orchestrator) Close() error {
	var errs []error
	for _, n := range o.names {
		if err := o.engines[n].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", n, err))
		}
		o.prom.available.WithLabelValues(n).Set(0)
	}
	o.cache.purge()
	return errors.Join(errs...)
}

// ProcessQuery answers q. Single-engine failures are absorbed by fallback;
// an error is returned only for invalid input, caller cancellation, or when
// every engine failed (AllEnginesFailedError).
func (o *Orchestrator) ProcessQuery(ctx context.Context, q Query) (*Outcome, error) {
	message := strings.TrimSpace(q.Message)
	if message == "" {
		return nil, errkind.InvalidInput("query is empty")
	}
	style := q.Style
	if !style.Valid() {
		style = knowledge.DefaultStyle
	}

	start := time.Now()
	sessionID := o.SessionID()
	o.observers.emit(Event{Type: EventQueryStart, SessionID: sessionID, Query: message})

	matches, err := o.deps.Retriever.Retrieve(message, o.queryVector(ctx, message))
	if err != nil {
		return nil, err
	}
	retrievedIDs := search.IDs(matches)

	key := cacheKey(message, style, retrievedIDs)
	if cached, ok := o.cache.get(key); ok {
		cached.Cached = true
		o.prom.cacheHits.Inc()
		o.observers.emit(Event{Type: EventQueryComplete, SessionID: sessionID, Query: message, Engine: cached.Engine, Outcome: cached})
		return cached, nil
	}

	var history []conversation.Turn
	if q.History != nil {
		history = q.History.TopicContext(retrievedIDs)
	}

	promptText, err := o.deps.Prompt.Build(message, matches, style, history)
	if err != nil {
		return nil, err
	}

	req := engine.Request{
		Message: message,
		Context: history,
		Style:   style,
		Prompt:  promptText,
		Matches: matchRefs(matches),
	}

	order, abTest := o.dispatchOrder()
	res, used, origErr, err := o.dispatch(ctx, req, order, sessionID, abTest)
	if err != nil {
		o.observers.emit(Event{Type: EventQueryComplete, SessionID: sessionID, Query: message, Err: err})
		return nil, err
	}

	out := &Outcome{
		EngineAnswer: res.Answer,
		Confidence:   o.boost(res, matches),
		MatchedIDs:   res.MatchedIDs(),
		Matches:      slices.Clone(res.Matches),
		RetrievedIDs: retrievedIDs,
		Engine:       used,
		Selected:     order[0],
		FallbackUsed: used != order[0],
		ABTest:       abTest,
	}
	if origErr != nil {
		out.OriginalError = origErr.Error()
	}

	decisionIDs := out.MatchedIDs
	if strings.TrimSpace(res.Answer) == "" {
		decisionIDs = nil
	}
	out.Decision = o.deps.Escalation.ShouldTriggerFallback(out.Confidence, message, decisionIDs)
	if out.Decision.ShouldFallback {
		out.Action = o.deps.Escalation.NextAction(message)
		resp := o.deps.Escalation.Response(out.Action, style)
		out.Escalation = &resp
		out.Answer = resp.Message
		o.prom.escalations.WithLabelValues(string(out.Action)).Inc()
	} else {
		out.Answer = res.Answer
	}
	out.ProcessingTime = time.Since(start)

	o.record(sessionID, message, style, out)

	if out.Action == escalation.ActionNone {
		o.cache.put(key, out)
	}

	o.observers.emit(Event{Type: EventQueryComplete, SessionID: sessionID, Query: message, Engine: used, Outcome: out})
	return out, nil
}

// queryVector embeds the question for the vector retrieval path, or
// returns nil when vectors are unavailable.
func (o *Orchestrator) queryVector(ctx context.Context, message string) []float32 {
	emb := o.deps.Embedder
	dims := o.deps.Retriever.Base().Dims()
	if emb == nil || dims == 0 || emb.Dims() != dims {
		return nil
	}
	vecs, err := emb.Embed(ctx, []string{message})
	if err != nil || len(vecs) != 1 || len(vecs[0]) != dims {
		o.log.Warn("query embedding unavailable, using keywords only", "error", err)
		return nil
	}
	return vecs[0]
}

// dispatchOrder lists engines to try: the selected one first, then, when
// fallback is enabled, every other available engine.
func (o *Orchestrator) dispatchOrder() (order []string, abTest bool) {
	o.mu.RLock()
	primary, assigned := o.primary, o.assigned
	o.mu.RUnlock()

	first := ""
	switch {
	case assigned != "" && o.engines[assigned].Available():
		first, abTest = assigned, true
	case o.engines[primary].Available():
		first = primary
	default:
		for _, n := range o.names {
			if o.engines[n].Available() {
				first = n
				break
			}
		}
	}
	if first == "" {
		// Nothing is ready; try the primary so the failure is reported.
		first = primary
	}

	order = []string{first}
	if o.cfg.FallbackEnabled {
		for _, n := range o.names {
			if n != first && o.engines[n].Available() {
				order = append(order, n)
			}
		}
	}
	return order, abTest
}

// dispatch tries engines in order until one answers. Every failed attempt is
// tracked against the engine that failed.
func (o *Orchestrator) dispatch(ctx context.Context, req engine.Request, order []string, sessionID string, abTest bool) (*engine.Success, string, error, error) {
	var firstErr, lastErr error

	for i, name := range order {
		started := time.Now()
		res, err := o.engines[name].Query(ctx, req)
		elapsed := time.Since(started)
		o.prom.duration.WithLabelValues(name).Observe(elapsed.Seconds())

		if err == nil {
			if verr := validateSuccess(res); verr != nil {
				err = &engine.EngineError{Engine: name, Message: verr.Error()}
			}
		}
		if err == nil {
			o.prom.queries.WithLabelValues(name, "success").Inc()
			o.metrics.recordSuccess(name, elapsed, res.Confidence, i > 0)
			return res, name, firstErr, nil
		}

		o.prom.queries.WithLabelValues(name, "error").Inc()
		if firstErr == nil {
			firstErr = err
		}
		lastErr = err

		if !engine.Recoverable(err) && ctx.Err() != nil {
			o.metrics.recordFailure(name, false)
			return nil, "", nil, err
		}

		if o.deps.Tracker != nil {
			o.deps.Tracker.Track(learning.NewFailureEvent(
				sessionID, req.Message, name, string(req.Style), elapsed, abTest && i == 0,
			))
		}

		hasNext := i+1 < len(order)
		o.metrics.recordFailure(name, hasNext)
		if hasNext {
			o.log.Warn("engine failed, falling back", "engine", name, "next", order[i+1], "error", err)
			o.prom.fallbacks.WithLabelValues(name).Inc()
			o.observers.emit(Event{Type: EventFallback, SessionID: sessionID, Query: req.Message, Engine: name, Next: order[i+1], Err: err})
		}
	}

	return nil, "", nil, &AllEnginesFailedError{Attempted: order, LastErr: lastErr}
}

// validateSuccess checks a result at the orchestration boundary.
func validateSuccess(res *engine.Success) error {
	if res == nil {
		return errors.New("empty result")
	}
	if math.IsNaN(res.Confidence) || res.Confidence < 0 || res.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", res.Confidence)
	}
	return nil
}

// boost raises confidence when the engine agrees with retrieval's top match.
func (o *Orchestrator) boost(res *engine.Success, matches []search.Match) float64 {
	c := res.Confidence
	if len(matches) == 0 || o.cfg.ConfidenceBoost <= 0 {
		return c
	}
	if slices.Contains(res.MatchedIDs(), matches[0].ID()) {
		c = math.Min(1, c+o.cfg.ConfidenceBoost)
	}
	return c
}

func (o *Orchestrator) record(sessionID, message string, style knowledge.Style, out *Outcome) {
	o.prom.confidence.WithLabelValues(out.Engine).Observe(out.Confidence)

	if o.cfg.AB.Enabled && out.ABTest {
		o.ab.add(out)
	}

	if o.deps.Tracker != nil {
		o.deps.Tracker.Track(learning.NewOutcomeEvent(
			sessionID, message, out.Engine, string(style),
			out.Confidence, out.ProcessingTime, out.FallbackUsed,
			actionLabel(out.Action), out.ABTest,
		))
	}
}

func actionLabel(a escalation.Action) string {
	if a == escalation.ActionNone {
		return "none"
	}
	return string(a)
}

func matchRefs(matches []search.Match) []engine.MatchRef {
	refs := make([]engine.MatchRef, len(matches))
	for i, m := range matches {
		refs[i] = engine.MatchRef{ID: m.ID(), Score: m.Score}
	}
	return refs
}
