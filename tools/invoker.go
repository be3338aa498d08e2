// ABOUTME: Invoker implements the hybrid tool-decision algorithm: a cheap rule pass against
// ABOUTME: declared triggers, falling back to a ModelClient decision prompt, with result caching.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Decider is the subset of modelclient.Client the invoker needs for the
// fallback decision prompt. Declared locally so tools does not import
// modelclient (which would create a cycle once modelclient starts depending
// on tool descriptors for prompts).
type Decider interface {
	Generate(ctx context.Context, messages []DeciderMessage, opts DeciderOptions) (string, error)
}

// DeciderMessage mirrors the minimal shape of a chat message needed to issue
// the decision prompt, decoupled from llm.Message so this package has no
// dependency on the llm package.
type DeciderMessage struct {
	Role    string
	Content string
}

// DeciderOptions carries the knobs the invoker sets on the decision call.
type DeciderOptions struct {
	MaxTokens *int
}

// Decision is the outcome of Decide: either no tool (Tool == "") or a
// resolved tool name plus the arguments to run it with.
type Decision struct {
	Tool       string
	Args       map[string]any
	Confidence float64
}

const (
	confidenceHigh = 0.7
	confidenceLow  = 0.4
)

type cachedResult struct {
	result    string
	err       error
	expiresAt time.Time
}

// Invoker resolves which tool (if any) a user utterance should invoke, runs
// it, and caches the result.
type Invoker struct {
	registry *Registry
	decider  Decider
	cache    *lru.Cache[string, cachedResult]
	ttl      time.Duration
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithCacheSize overrides the default cache capacity of 100 entries.
func WithCacheSize(size int) InvokerOption {
	return func(inv *Invoker) {
		cache, err := lru.New[string, cachedResult](size)
		if err == nil {
			inv.cache = cache
		}
	}
}

// WithCacheTTL overrides the default per-entry TTL of one hour.
func WithCacheTTL(ttl time.Duration) InvokerOption {
	return func(inv *Invoker) { inv.ttl = ttl }
}

// NewInvoker builds an Invoker backed by registry for tool lookup and decider
// for the model-assisted fallback decision.
func NewInvoker(registry *Registry, decider Decider, opts ...InvokerOption) *Invoker {
	cache, _ := lru.New[string, cachedResult](100)
	inv := &Invoker{
		registry: registry,
		decider:  decider,
		cache:    cache,
		ttl:      time.Hour,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Decide runs the hybrid algorithm against userText. candidates is the candidate
// set considered for the rule pass and the decision prompt; an empty slice
// short-circuits to "no tool".
func (inv *Invoker) Decide(ctx context.Context, userText string, candidates []Descriptor) (Decision, error) {
	if len(candidates) == 0 {
		return Decision{}, nil
	}

	ruled := rulePass(userText, candidates, inv.registry)
	if best, ok := topScore(ruled); ok && best.Confidence >= confidenceHigh {
		return best, nil
	}

	decided, err := inv.decidePrompt(ctx, userText, candidates)
	if err != nil {
		return Decision{}, nil
	}
	if decided.Confidence < confidenceLow {
		return Decision{}, nil
	}
	return decided, nil
}

// rulePass scores each candidate by substring/keyword match against its
// declared Triggers, yielding a confidence in [0,1]: any trigger match scores
// above confidenceHigh, rising to 1.0 as the share of the tool's distinct
// triggers that matched grows.
func rulePass(userText string, candidates []Descriptor, registry *Registry) []Decision {
	lower := strings.ToLower(userText)
	decisions := make([]Decision, 0, len(candidates))
	for _, d := range candidates {
		tool, _, err := registry.Get(d.Name, d.Version)
		if err != nil {
			continue
		}
		triggers := tool.Triggers()
		if len(triggers) == 0 {
			continue
		}
		matched := 0
		for _, trig := range triggers {
			if trig.MatchString(lower) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		confidence := confidenceHigh + (1-confidenceHigh)*float64(matched)/float64(len(triggers))
		if confidence > 1.0 {
			confidence = 1.0
		}
		decisions = append(decisions, Decision{Tool: d.Name, Confidence: confidence, Args: map[string]any{"text": userText}})
	}
	return decisions
}

// topScore picks the highest-confidence decision, breaking ties by
// lexicographic tool name. Chains get no priority over single tools in a tie.
func topScore(decisions []Decision) (Decision, bool) {
	if len(decisions) == 0 {
		return Decision{}, false
	}
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].Confidence != decisions[j].Confidence {
			return decisions[i].Confidence > decisions[j].Confidence
		}
		return decisions[i].Tool < decisions[j].Tool
	})
	return decisions[0], true
}

// decidePrompt asks the model which tool (if any) applies, with a small
// MaxTokens cap since only a compact {tool, args, confidence} JSON reply is
// expected. A malformed reply degrades to "no tool" rather than erroring.
func (inv *Invoker) decidePrompt(ctx context.Context, userText string, candidates []Descriptor) (Decision, error) {
	if inv.decider == nil {
		return Decision{}, nil
	}

	var b strings.Builder
	b.WriteString("Given the user message, decide if one of these tools should be invoked.\n")
	b.WriteString("Reply with JSON only: {\"tool\": \"<name or empty>\", \"args\": {...}, \"confidence\": <0..1>}\n\n")
	b.WriteString("Tools:\n")
	for _, d := range candidates {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", d.Name, d.Description, d.Usage)
	}
	fmt.Fprintf(&b, "\nUser message: %s\n", userText)

	maxTokens := 128
	reply, err := inv.decider.Generate(ctx, []DeciderMessage{
		{Role: "user", Content: b.String()},
	}, DeciderOptions{MaxTokens: &maxTokens})
	if err != nil {
		return Decision{}, err
	}

	var parsed struct {
		Tool       string         `json:"tool"`
		Args       map[string]any `json:"args"`
		Confidence float64        `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return Decision{}, nil
	}
	if parsed.Tool == "" {
		return Decision{}, nil
	}
	return Decision{Tool: parsed.Tool, Args: parsed.Args, Confidence: parsed.Confidence}, nil
}

// extractJSON trims any leading/trailing prose a model might add around the
// JSON object despite instructions.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// Run resolves name@version from the registry and executes it with args,
// serving a cached result when available and unexpired. A tool failure is
// never propagated as an invocation failure: the error text becomes the
// result string, matching the "never fail the outer request" policy.
func (inv *Invoker) Run(name, version string, args map[string]any) (string, error) {
	key, err := cacheKey(name, args)
	if err == nil && inv.cache != nil {
		if cached, ok := inv.cache.Get(key); ok {
			if time.Now().Before(cached.expiresAt) {
				return cached.result, cached.err
			}
			inv.cache.Remove(key)
		}
	}

	tool, _, err := inv.registry.Get(name, version)
	if err != nil {
		return fmt.Sprintf("[error] tool unavailable: %s", err), nil
	}

	result, runErr := tool.Run(args)
	if runErr != nil {
		result = fmt.Sprintf("[error] tool %q failed: %s", name, runErr)
		runErr = nil
	}

	if key != "" && inv.cache != nil {
		inv.cache.Add(key, cachedResult{result: result, err: nil, expiresAt: time.Now().Add(inv.ttl)})
	}
	return result, nil
}

// cacheKey canonicalizes args by marshaling a key-sorted copy, so argument
// order never fragments the cache.
func cacheKey(name string, args map[string]any) (string, error) {
	canon, err := json.Marshal(sortedArgs(args))
	if err != nil {
		return "", err
	}
	return name + "\x00" + string(canon), nil
}

func sortedArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
