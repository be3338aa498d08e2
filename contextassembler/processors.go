// ABOUTME: Processors renders callerContext into a human-readable prefix keyed by its "type"
// ABOUTME: field, defaulting unknown types to the general processor rather than erroring.

package contextassembler

import (
	"fmt"
	"sort"
	"strings"
)

// Processors maps a callerContext "type" value to the function that renders
// it into system-prompt text. Registered here so callers can add a custom
// type without touching Build.
var Processors = map[string]func(map[string]any) string{
	"general":      processGeneral,
	"user_profile": processUserProfile,
	"domain":       processDomain,
	"system":       processSystem,
	"location":     processLocation,
	"custom":       processCustom,
}

// processContext dispatches callerContext to the processor named by its
// "type" field, defaulting to general when the type is absent or
// unrecognized.
func processContext(callerContext map[string]any) string {
	typ, _ := callerContext["type"].(string)
	proc, ok := Processors[typ]
	if !ok {
		proc = processGeneral
	}
	return proc(callerContext)
}

func processGeneral(ctx map[string]any) string {
	return fmt.Sprintf("User context: %s.", flatten(ctx, "type"))
}

func processUserProfile(ctx map[string]any) string {
	name, _ := ctx["name"].(string)
	prefs := flatten(ctx, "type", "name")
	return fmt.Sprintf("User is %s. Preferences: %s.", orPlaceholder(name, "unknown"), prefs)
}

func processDomain(ctx map[string]any) string {
	facts, _ := ctx["facts"].([]any)
	if len(facts) == 0 {
		return fmt.Sprintf("Relevant domain knowledge: %s.", flatten(ctx, "type", "facts"))
	}
	var b strings.Builder
	b.WriteString("Relevant domain knowledge:")
	for _, f := range facts {
		fmt.Fprintf(&b, "\n- %v", f)
	}
	return b.String()
}

func processSystem(ctx map[string]any) string {
	return fmt.Sprintf("Current system state: %s.", flatten(ctx, "type"))
}

func processLocation(ctx map[string]any) string {
	place, _ := ctx["place"].(string)
	coords, _ := ctx["coords"].(string)
	return fmt.Sprintf("User is located at %s (coords %s).", orPlaceholder(place, "unknown"), orPlaceholder(coords, "unknown"))
}

func processCustom(ctx map[string]any) string {
	if text, ok := ctx["text"].(string); ok {
		return text
	}
	return flatten(ctx, "type")
}

// flatten renders ctx as a sorted "key=value, key=value" enumeration,
// omitting the given keys.
func flatten(ctx map[string]any, omit ...string) string {
	skip := make(map[string]bool, len(omit))
	for _, k := range omit {
		skip[k] = true
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, ctx[k]))
	}
	return strings.Join(pairs, ", ")
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
